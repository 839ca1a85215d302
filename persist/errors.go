package persist

import "fmt"

// ErrInvalidConfig is returned for an invalid persistence configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("persist: invalid config: %s", msg)
}

// ErrSave wraps a failed snapshot write
func ErrSave(err error) error {
	return fmt.Errorf("persist: save snapshot failed: %w", err)
}

// ErrLoad wraps a failed snapshot read
func ErrLoad(err error) error {
	return fmt.Errorf("persist: load snapshot failed: %w", err)
}

// ErrPurge wraps a failed snapshot delete
func ErrPurge(err error) error {
	return fmt.Errorf("persist: purge snapshot failed: %w", err)
}
