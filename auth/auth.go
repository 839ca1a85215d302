// Package auth owns the session token.
//
// The Store is the only writer of the token. The HTTP client reads it right
// before every request through Current, and session teardown (logout, local
// expiry, or a 401 from the backend) cancels the session channel so that
// requests still in flight fail as unauthenticated.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/dailyyoga/studysync/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Reason says why a session ended
type Reason string

const (
	ReasonLogout       Reason = "logout"
	ReasonExpired      Reason = "expired"
	ReasonUnauthorized Reason = "unauthorized"
)

// Session is a read-only view of the current session
type Session struct {
	// Token is empty when nobody is logged in
	Token string
	// Done is closed when the session is torn down; nil without a session
	Done <-chan struct{}
	// ExpiresAt is zero for tokens without a readable exp claim
	ExpiresAt time.Time
}

// TeardownFunc is called after a session ends
type TeardownFunc func(reason Reason)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store holds the session token and its lifecycle
type Store struct {
	log logger.Logger
	now func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	listenersMu sync.Mutex
	listeners   map[int]TeardownFunc
	nextID      int
}

// NewStore creates an empty store
func NewStore(log logger.Logger, opts ...Option) *Store {
	s := &Store{
		log:       logger.Named(log, "auth"),
		now:       time.Now,
		listeners: make(map[int]TeardownFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init starts a session with the given token, replacing any current one
// without running teardown listeners.
func (s *Store) Init(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	expiresAt := tokenExpiry(token)
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		return ErrSessionExpired
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.token = token
	s.expiresAt = expiresAt
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	fields := []zap.Field{}
	if !expiresAt.IsZero() {
		fields = append(fields, zap.Time("expires_at", expiresAt))
	}
	s.log.Info("session started", fields...)
	return nil
}

// Current returns the session to use for the next request.
// An expired session is torn down and reported as ErrSessionExpired.
func (s *Store) Current() (Session, error) {
	s.mu.RLock()
	token, expiresAt, ctx := s.token, s.expiresAt, s.ctx
	s.mu.RUnlock()

	if token == "" {
		return Session{}, nil
	}
	if !expiresAt.IsZero() && !s.now().Before(expiresAt) {
		s.Expire(ReasonExpired)
		return Session{}, ErrSessionExpired
	}
	return Session{Token: token, Done: ctx.Done(), ExpiresAt: expiresAt}, nil
}

// Authenticated reports whether a session is active
func (s *Store) Authenticated() bool {
	sess, err := s.Current()
	return err == nil && sess.Token != ""
}

// Logout ends the session on user request
func (s *Store) Logout() {
	s.teardown(ReasonLogout)
}

// Expire ends the session because the token is no longer accepted
func (s *Store) Expire(reason Reason) {
	s.teardown(reason)
}

// OnTeardown registers fn to run after every session teardown.
// The returned function unregisters it.
func (s *Store) OnTeardown(fn TeardownFunc) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) teardown(reason Reason) {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.expiresAt = time.Time{}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.log.Info("session ended", zap.String("reason", string(reason)))

	s.listenersMu.Lock()
	listeners := make([]TeardownFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend verifies tokens, the client only needs to know when to stop
// sending one. Opaque tokens yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
