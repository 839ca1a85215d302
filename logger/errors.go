package logger

import "fmt"

// ErrNoOutputPaths is returned when a config has no output path after merging defaults
var ErrNoOutputPaths = fmt.Errorf("logger: at least one output path is required")

// ErrBuildLogger wraps a zap build failure
func ErrBuildLogger(err error) error {
	return fmt.Errorf("logger: failed to build logger: %w", err)
}

// ErrInvalidLevel represents an invalid log level error
func ErrInvalidLevel(level string, err error) error {
	return fmt.Errorf("logger: invalid level %q: %w", level, err)
}

// ErrInvalidEncoding represents an invalid encoding error
func ErrInvalidEncoding(encoding string) error {
	return fmt.Errorf("logger: invalid encoding %q, must be 'json' or 'console'", encoding)
}
