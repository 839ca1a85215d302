package auth

import "fmt"

var (
	// ErrEmptyToken is returned when a session is started without a token
	ErrEmptyToken = fmt.Errorf("auth: empty token")

	// ErrSessionExpired is returned when the session token is past its exp claim
	ErrSessionExpired = fmt.Errorf("auth: session expired")
)
