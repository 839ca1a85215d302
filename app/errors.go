package app

import "fmt"

// ErrNilConfig is returned by New without a configuration
var ErrNilConfig = fmt.Errorf("app: config is required")

// ErrClosed is returned when starting a closed app
var ErrClosed = fmt.Errorf("app: closed")

// ErrComponent wraps a failure to build one component
func ErrComponent(name string, err error) error {
	return fmt.Errorf("app: failed to create %s: %w", name, err)
}

// ErrStart wraps a failure while starting one component
func ErrStart(name string, err error) error {
	return fmt.Errorf("app: failed to start %s: %w", name, err)
}
