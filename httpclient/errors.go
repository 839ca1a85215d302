package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request
type Kind int

const (
	// KindNetwork means no response was received
	KindNetwork Kind = iota
	// KindTimeout means the fixed deadline elapsed before a response arrived
	KindTimeout
	// KindServer means the backend answered with a non-2xx status
	KindServer
	// KindUnauthenticated means the backend answered 401 or the session ended
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Error is the normalized request failure.
// Status is 0 when no response was received.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Method  string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("httpclient: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("httpclient: %s %s: %s", e.Method, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same read could succeed.
// Client errors and authentication failures are final.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindServer:
		return e.Status >= http.StatusInternalServerError ||
			e.Status == http.StatusTooManyRequests ||
			e.Status == http.StatusRequestTimeout
	default:
		return false
	}
}

// AsError extracts the normalized error from err's chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUnauthenticated reports whether err is the distinguished unauthenticated error
func IsUnauthenticated(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindUnauthenticated
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status
	}
	return 0
}

// MessageOf returns the user-facing message of err
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := AsError(err); ok {
		return e.Message
	}
	return err.Error()
}

// ErrInvalidConfig invalid config
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("httpclient: invalid config: %s", msg)
}

// ErrInvalidPath is returned before sending when a path carries a query or fragment
func ErrInvalidPath(path string) error {
	return fmt.Errorf("httpclient: invalid path %q: use Request.Query for query parameters", path)
}

// ErrEncodeBody wraps a request body marshal failure
func ErrEncodeBody(err error) error {
	return fmt.Errorf("httpclient: encode request body: %w", err)
}

// ErrDecode wraps a failure to decode a successful response
func ErrDecode(err error) error {
	return fmt.Errorf("httpclient: decode response: %w", err)
}

// ErrEncodeQuery wraps a query parameter encoding failure
func ErrEncodeQuery(err error) error {
	return fmt.Errorf("httpclient: encode query: %w", err)
}
