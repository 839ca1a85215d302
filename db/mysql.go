package db

import (
	"context"
	"database/sql"

	"github.com/dailyyoga/studysync/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type mysqlDatabase struct {
	logger logger.Logger
	addr   string
	db     *gorm.DB
}

// NewMySQL connects to MySQL and verifies the connection
func NewMySQL(log logger.Logger, cfg *Config) (Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	d, err := open(log, cfg, mysql.Open(dsn), true)
	if err != nil {
		return nil, err
	}
	d.logger.Info("snapshot database connected",
		zap.String("addr", d.addr),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return d, nil
}

// FromConn wraps an existing connection pool. Only the logging and pool
// settings of cfg are used; cfg may be nil.
func FromConn(log logger.Logger, cfg *Config, conn *sql.DB) (Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.MergeDefaults()
	return open(log, cfg, mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), false)
}

func open(log logger.Logger, cfg *Config, dialector gorm.Dialector, ping bool) (*mysqlDatabase, error) {
	log = logger.Named(log, "db")
	addr := cfg.Addr()
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(log, cfg),
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, ErrOpen(addr, err)
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return nil, ErrPool(err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if ping {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		defer cancel()
		if err := sqldb.PingContext(ctx); err != nil {
			_ = sqldb.Close()
			return nil, ErrOpen(addr, err)
		}
	}
	return &mysqlDatabase{logger: log, addr: addr, db: gdb}, nil
}

func (d *mysqlDatabase) DB() (*gorm.DB, error) {
	if d.db == nil {
		return nil, ErrNotOpen
	}
	return d.db, nil
}

func (d *mysqlDatabase) Ping(ctx context.Context) error {
	sqldb, err := d.pool()
	if err != nil {
		return err
	}
	if err := sqldb.PingContext(ctx); err != nil {
		return ErrOpen(d.addr, err)
	}
	return nil
}

func (d *mysqlDatabase) Close() error {
	sqldb, err := d.pool()
	if err != nil {
		return err
	}
	d.logger.Info("snapshot database closed", zap.String("addr", d.addr))
	return sqldb.Close()
}

func (d *mysqlDatabase) pool() (*sql.DB, error) {
	if d.db == nil {
		return nil, ErrNotOpen
	}
	sqldb, err := d.db.DB()
	if err != nil {
		return nil, ErrPool(err)
	}
	return sqldb, nil
}
