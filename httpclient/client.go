// Package httpclient is the single HTTP client used for every backend call.
//
// It prefixes the configured base URL, attaches the session bearer token when
// one exists, enforces a fixed deadline and normalizes every failure into an
// *Error. It never retries; retrying reads is the cache's job.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dailyyoga/studysync/auth"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Session is the token source consulted right before each request
type Session interface {
	Current() (auth.Session, error)
	Expire(reason auth.Reason)
}

// Request describes one backend call
type Request struct {
	Method string
	// Path is relative to the base URL and must not contain a query or fragment
	Path  string
	Query url.Values
	// Body is encoded as JSON when non-nil
	Body any
}

// Client sends requests to the backend
type Client interface {
	// Do sends req and decodes the response payload into out (which may be nil).
	// Every failure is returned as *Error except for local encode/decode problems.
	Do(ctx context.Context, req *Request, out any) error
}

// Option configures the client
type Option func(*client)

// WithHTTPClient replaces the underlying *http.Client; its Timeout is overwritten by the config
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

type client struct {
	log     logger.Logger
	cfg     *Config
	base    *url.URL
	http    *http.Client
	session Session
	limiter *rate.Limiter
}

// New creates a backend client. session may be nil for anonymous use.
func New(log logger.Logger, cfg *Config, session Session, opts ...Option) (Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, ErrInvalidConfig(err.Error())
	}

	c := &client{
		log:     logger.Named(log, "http"),
		cfg:     cfg,
		base:    base,
		http:    &http.Client{},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = cfg.Timeout

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	c.log.Info("http client created",
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
		zap.Float64("rate_limit", cfg.RateLimit),
	)
	return c, nil
}

func (c *client) Do(ctx context.Context, req *Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if strings.ContainsAny(req.Path, "?#") {
		return ErrInvalidPath(req.Path)
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return ErrEncodeBody(err)
		}
		body = bytes.NewReader(raw)
	}

	sess, err := c.currentSession()
	if err != nil {
		return &Error{Kind: KindUnauthenticated, Message: "Session expired", Method: method, Path: req.Path, Err: err}
	}

	// the request dies with the session so teardown fails it as unauthenticated
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if sess.Done != nil {
		go func() {
			select {
			case <-sess.Done:
				cancel()
			case <-reqCtx.Done():
			}
		}()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(reqCtx); err != nil {
			return c.transportError(method, req.Path, sess, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, c.url(req), body)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error(), Method: method, Path: req.Path, Err: err}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if sess.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveRequest(method, 0, time.Since(start))
		e := c.transportError(method, req.Path, sess, err)
		c.log.Warn("request failed",
			zap.String("method", method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.String("kind", e.Kind.String()),
			zap.Error(err),
		)
		return e
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes))
	elapsed := time.Since(start)
	metrics.ObserveRequest(method, resp.StatusCode, elapsed)
	if err != nil {
		return c.transportError(method, req.Path, sess, err)
	}

	c.log.Debug("request completed",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(method, req.Path, resp.StatusCode, raw)
	}
	return decode(raw, out)
}

func (c *client) currentSession() (auth.Session, error) {
	if c.session == nil {
		return auth.Session{}, nil
	}
	return c.session.Current()
}

func (c *client) url(req *Request) string {
	path := req.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// path is already escaped segment by segment
	target := c.base.String() + path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	return target
}

// transportError classifies a failure where no usable response arrived
func (c *client) transportError(method, path string, sess auth.Session, err error) *Error {
	if sessionEnded(sess) {
		return &Error{Kind: KindUnauthenticated, Message: "Session expired", Method: method, Path: path, Err: err}
	}
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("timeout of %dms exceeded", c.cfg.Timeout.Milliseconds()),
			Method:  method,
			Path:    path,
			Err:     err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetwork, Message: "Request canceled", Method: method, Path: path, Err: err}
	}
	return &Error{Kind: KindNetwork, Message: "Network Error", Method: method, Path: path, Err: err}
}

func (c *client) statusError(method, path string, status int, body []byte) error {
	e := &Error{
		Kind:    KindServer,
		Status:  status,
		Message: serverMessage(body, status),
		Method:  method,
		Path:    path,
	}
	if status == http.StatusUnauthorized {
		e.Kind = KindUnauthenticated
		if c.session != nil {
			c.session.Expire(auth.ReasonUnauthorized)
		}
		c.log.Warn("backend rejected session", zap.String("method", method), zap.String("path", path))
		return e
	}
	c.log.Warn("request returned error status",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("message", e.Message),
	)
	return e
}

func sessionEnded(sess auth.Session) bool {
	if sess.Done == nil {
		return false
	}
	select {
	case <-sess.Done:
		return true
	default:
		return false
	}
}

// serverMessage prefers the backend's message, then its error field
func serverMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, field := range []string{"message", "error"} {
			if m := gjson.GetBytes(body, field); m.Type == gjson.String && m.Str != "" {
				return m.Str
			}
		}
	}
	return fmt.Sprintf("Request failed with status code %d", status)
}

// decode unwraps the {status, statusCode, message, data} envelope when present
func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	payload := body
	if gjson.ValidBytes(body) {
		if data := gjson.GetBytes(body, "data"); data.Exists() {
			payload = []byte(data.Raw)
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return ErrDecode(err)
	}
	return nil
}
