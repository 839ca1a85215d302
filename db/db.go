// Package db opens the MySQL database that holds persisted query snapshots.
//
// It wraps gorm with the studysync logger, pool settings from Config and a
// small Database interface so stores can be tested on go-sqlmock connections
// through FromConn.
package db

import (
	"context"

	"gorm.io/gorm"
)

// Database is an open gorm connection
type Database interface {
	// DB returns the gorm handle; callers scope it with WithContext
	DB() (*gorm.DB, error)
	Ping(ctx context.Context) error
	Close() error
}
