// Package query binds reads and writes to the query cache.
//
// A Query reads one key through the cache and exposes {data, loading, error}
// snapshots; an Observer follows a key and refetches in the background when it
// is invalidated. A Mutation performs one write, then reconciles the cache by
// a declarative Table: the returned entity is patched into its detail key and
// the resource's lists are invalidated. Mutations are never retried and never
// touch the cache on failure.
package query

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/httpclient"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/notify"
	"github.com/dailyyoga/studysync/querykey"
	"github.com/dailyyoga/studysync/resource"
	"github.com/dailyyoga/studysync/routine"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Publisher forwards applied changes to other processes sharing the backend
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Option configures the client
type Option func(*Client)

// WithNotifier sets where user-facing notifications go
func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithTable replaces the reconciliation table
func WithTable(t Table) Option {
	return func(c *Client) { c.table = t }
}

// WithPublisher publishes every reconciliation
func WithPublisher(p Publisher) Option {
	return func(c *Client) { c.publisher = p }
}

// WithReadErrorNotifications also notifies failed reads; by default they only set error state
func WithReadErrorNotifications() Option {
	return func(c *Client) { c.notifyReadErrors = true }
}

// Client ties the cache, notifications and reconciliation together
type Client struct {
	log              logger.Logger
	cache            cache.QueryCache
	notifier         notify.Notifier
	table            Table
	publisher        Publisher
	notifyReadErrors bool
	runner           routine.Runner
	closed           atomic.Bool
}

// NewClient creates a client on qc
func NewClient(log logger.Logger, qc cache.QueryCache, opts ...Option) *Client {
	c := &Client{
		log:      logger.Named(log, "query"),
		cache:    qc,
		notifier: notify.Nop(),
		table:    DefaultTable(),
		runner:   routine.New(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the underlying cache
func (c *Client) Cache() cache.QueryCache {
	return c.cache
}

// Table returns the reconciliation table
func (c *Client) Table() Table {
	return c.table
}

// SetPublisher attaches a publisher after construction
func (c *Client) SetPublisher(p Publisher) {
	c.publisher = p
}

// Invalidate marks every entry under prefix stale and publishes it
func (c *Client) Invalidate(ctx context.Context, prefix querykey.Key) int {
	n := c.cache.Invalidate(prefix)
	c.publish(ctx, Change{Resource: prefix.Resource(), Invalidated: []querykey.Key{prefix}})
	return n
}

// Reconcile applies the table's rule for a successful mutation of name/op on
// entity id. entity is the confirmed value returned by the backend and may be nil.
// Resources without a declared rule are invalidated entirely.
func (c *Client) Reconcile(ctx context.Context, name string, op resource.Op, id string, entity any) Change {
	keys := querykey.For(name)
	change := Change{Resource: name, Op: op}

	rule, ok := c.table.Rule(name, op)
	if !ok {
		c.log.Warn("no reconciliation rule, invalidating resource",
			zap.String("resource", name),
			zap.String("op", string(op)),
		)
		c.cache.Invalidate(keys.All())
		change.Invalidated = append(change.Invalidated, keys.All())
		c.publish(ctx, change)
		return change
	}

	if id != "" {
		detail := keys.Detail(id)
		switch {
		case rule.DropDetail:
			c.cache.Remove(detail)
			change.Removed = append(change.Removed, detail)
		case rule.PatchDetail && entity != nil:
			c.cache.SetData(detail, entity)
			change.Patched = append(change.Patched, detail)
		case rule.PatchDetail:
			c.cache.Invalidate(detail)
			change.Invalidated = append(change.Invalidated, detail)
		}
	}
	if rule.InvalidateLists {
		c.cache.Invalidate(keys.Lists())
		change.Invalidated = append(change.Invalidated, keys.Lists())
	}
	for _, k := range rule.Also {
		c.cache.Invalidate(k)
		change.Invalidated = append(change.Invalidated, k)
	}

	c.log.Debug("reconciled mutation",
		zap.String("resource", name),
		zap.String("op", string(op)),
		zap.String("id", id),
		zap.Int("patched", len(change.Patched)),
		zap.Int("removed", len(change.Removed)),
		zap.Int("invalidated", len(change.Invalidated)),
	)
	c.publish(ctx, change)
	return change
}

func (c *Client) publish(ctx context.Context, change Change) {
	if c.publisher == nil || change.Empty() {
		return
	}
	if err := c.publisher.Publish(ctx, change); err != nil {
		c.log.Warn("failed to publish change", zap.Error(ErrPublish(err)), zap.String("resource", change.Resource))
	}
}

// Prefetcher warms the cache for one query
type Prefetcher interface {
	Prefetch(ctx context.Context) error
}

// Prefetch runs the given queries concurrently and returns the first error
func (c *Client) Prefetch(ctx context.Context, queries ...Prefetcher) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error {
			return q.Prefetch(gctx)
		})
	}
	return g.Wait()
}

// Refocus revalidates stale observed queries when the user returns to the app
func (c *Client) Refocus(ctx context.Context) (int, error) {
	n, err := c.cache.Refocus(ctx)
	if n > 0 {
		c.log.Debug("refocus revalidation", zap.Int("entries", n), zap.Error(err))
	}
	return n, err
}

// Close waits for background refetches started by observers
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.runner.Wait()
}

func (c *Client) notify(level notify.Level, name string, op resource.Op, message string) {
	c.notifier.Notify(notify.Notification{
		Level:    level,
		Message:  message,
		Resource: name,
		Op:       string(op),
		At:       time.Now(),
	})
}

// successMessage renders "Expense created" style messages
func successMessage(label string, op resource.Op) string {
	if label == "" {
		label = "Item"
	}
	verb := string(op)
	if strings.HasSuffix(verb, "e") {
		verb += "d"
	} else {
		verb += "ed"
	}
	return fmt.Sprintf("%s %s", label, verb)
}

// errorMessage is the normalized message shown for a failed operation
func errorMessage(err error) string {
	if m := httpclient.MessageOf(err); m != "" {
		return m
	}
	return "Something went wrong"
}
