package query

import "fmt"

// ErrClientClosed is returned by operations on a closed client
var ErrClientClosed = fmt.Errorf("query: client is closed")

// ErrTypeMismatch returns an error for cached data that cannot be read as the query's type
func ErrTypeMismatch(key string, err error) error {
	return fmt.Errorf("query: cached data for %s has unexpected type: %w", key, err)
}

// ErrPublish wraps a failure to publish a change to other processes
func ErrPublish(err error) error {
	return fmt.Errorf("query: publish change: %w", err)
}
