package cache

import (
	"fmt"
	"time"
)

// Predefined errors
var (
	// ErrCacheClosed is returned when operations are attempted on a closed cache
	ErrCacheClosed = fmt.Errorf("cache: cache is closed")
	// ErrNilFetcher is returned when Fetch is called without a fetcher
	ErrNilFetcher = fmt.Errorf("cache: fetcher is nil")
)

// ErrInvalidDuration returns an error for an out of range duration setting
func ErrInvalidDuration(field string, d time.Duration) error {
	return fmt.Errorf("cache: invalid %s: %v", field, d)
}

// ErrInvalidRetry returns an error for invalid retry count
func ErrInvalidRetry(retry int) error {
	return fmt.Errorf("cache: invalid retry: %d (must be >= -1)", retry)
}

// ErrEncodeSnapshot wraps a failure to serialize an entry for persistence
func ErrEncodeSnapshot(key string, err error) error {
	return fmt.Errorf("cache: encode snapshot %s: %w", key, err)
}
