package broadcast

import "fmt"

var (
	// ErrClosed is returned when using a closed broadcaster
	ErrClosed = fmt.Errorf("broadcast: broadcaster is closed")

	// ErrDisabled is returned by New when no transport is configured
	ErrDisabled = fmt.Errorf("broadcast: disabled")
)

// ErrInvalidConfig is returned for an invalid transport configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("broadcast: invalid config: %s", msg)
}

// ErrInvalidMessage is returned for a message that cannot be applied
func ErrInvalidMessage(msg string) error {
	return fmt.Errorf("broadcast: invalid message: %s", msg)
}

// ErrDecode wraps a message parse failure
func ErrDecode(err error) error {
	return fmt.Errorf("broadcast: decode message failed: %w", err)
}

// ErrConnection wraps a transport connection failure
func ErrConnection(transport string, err error) error {
	return fmt.Errorf("broadcast: %s connection failed: %w", transport, err)
}

// ErrPublish wraps a send failure
func ErrPublish(transport string, err error) error {
	return fmt.Errorf("broadcast: %s publish failed: %w", transport, err)
}

// ErrSubscribe wraps a subscription failure
func ErrSubscribe(transport string, err error) error {
	return fmt.Errorf("broadcast: %s subscribe failed: %w", transport, err)
}
