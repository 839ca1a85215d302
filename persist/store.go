// Package persist keeps the query cache across restarts.
//
// Successful cache entries are dehydrated into the query_snapshots table on a
// schedule and loaded back at start. Loaded entries keep the time they were
// fetched, so anything older than the stale time is refetched on first read.
package persist

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/db"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/querykey"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Snapshot is one persisted cache entry
type Snapshot struct {
	CacheKey  string    `gorm:"column:cache_key;primaryKey;size:512"`
	Resource  string    `gorm:"column:resource;size:64;index"`
	Payload   []byte    `gorm:"column:payload;type:json"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

// TableName implements gorm's tabler
func (Snapshot) TableName() string {
	return "query_snapshots"
}

// Store reads and writes snapshots
type Store struct {
	log       logger.Logger
	db        *gorm.DB
	maxAge    time.Duration
	batchSize int
	now       func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store on d
func NewStore(log logger.Logger, d db.Database, cfg *Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.MergeDefaults()
	gdb, err := d.DB()
	if err != nil {
		return nil, err
	}
	s := &Store{
		log:       logger.Named(log, "persist"),
		db:        gdb,
		maxAge:    cfg.MaxAge,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate creates or updates the snapshot table
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Snapshot{})
}

// Save replaces the stored snapshot with items
func (s *Store) Save(ctx context.Context, items []cache.Dehydrated) (int, error) {
	rows := make([]Snapshot, 0, len(items))
	for _, it := range items {
		rows = append(rows, Snapshot{
			CacheKey:  it.Key.String(),
			Resource:  it.Key.Resource(),
			Payload:   it.Data,
			UpdatedAt: it.UpdatedAt,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Snapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, s.batchSize).Error
	})
	if err != nil {
		return 0, ErrSave(err)
	}
	s.log.Debug("snapshot saved", zap.Int("entries", len(rows)))
	return len(rows), nil
}

// Load returns snapshots younger than the configured max age.
// Rows whose key cannot be parsed are skipped.
func (s *Store) Load(ctx context.Context) ([]cache.Dehydrated, error) {
	var rows []Snapshot
	q := s.db.WithContext(ctx)
	if s.maxAge > 0 {
		q = q.Where("updated_at >= ?", s.now().Add(-s.maxAge))
	}
	if err := q.Order("cache_key").Find(&rows).Error; err != nil {
		return nil, ErrLoad(err)
	}

	items := make([]cache.Dehydrated, 0, len(rows))
	for _, r := range rows {
		key, err := querykey.Parse(r.CacheKey)
		if err != nil {
			s.log.Warn("skipping snapshot with invalid key", zap.String("cache_key", r.CacheKey), zap.Error(err))
			continue
		}
		if !json.Valid(r.Payload) {
			s.log.Warn("skipping snapshot with invalid payload", zap.String("cache_key", r.CacheKey))
			continue
		}
		items = append(items, cache.Dehydrated{
			Key:       key,
			Data:      json.RawMessage(r.Payload),
			UpdatedAt: r.UpdatedAt,
		})
	}
	return items, nil
}

// Purge deletes every snapshot
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Snapshot{})
	if res.Error != nil {
		return 0, ErrPurge(res.Error)
	}
	s.log.Info("snapshot purged", zap.Int64("entries", res.RowsAffected))
	return res.RowsAffected, nil
}

// Snapshot dehydrates qc and saves it
func (s *Store) Snapshot(ctx context.Context, qc cache.QueryCache) (int, error) {
	items, err := qc.Dehydrate()
	if err != nil {
		return 0, err
	}
	return s.Save(ctx, items)
}

// Restore loads the stored snapshot into qc and returns how many entries were restored
func (s *Store) Restore(ctx context.Context, qc cache.QueryCache) (int, error) {
	items, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := qc.Hydrate(items)
	s.log.Info("cache restored", zap.Int("entries", n), zap.Int("stored", len(items)))
	return n, nil
}
