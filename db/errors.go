package db

import "fmt"

// ErrNotOpen is returned by a Database whose gorm handle is missing
var ErrNotOpen = fmt.Errorf("db: snapshot database is not open")

// ErrInvalidConfig reports a rejected configuration field
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("db: invalid config: %s", msg)
}

// ErrOpen wraps a failure to open or reach the database at addr
func ErrOpen(addr string, err error) error {
	return fmt.Errorf("db: cannot open %s: %w", addr, err)
}

// ErrPool wraps a failure to access the underlying connection pool
func ErrPool(err error) error {
	return fmt.Errorf("db: connection pool unavailable: %w", err)
}
