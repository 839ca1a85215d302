// Package cache is the client-side query cache.
//
// Entries are keyed by querykey.Key and created lazily on first read. A read
// of a fresh entry is served without a network call; any other read moves the
// entry to loading and runs one shared fetch per key, retrying retryable
// failures with exponential backoff. Readers get Snapshots and may Subscribe
// to an entry's events. Entries nobody subscribes to are garbage-collected
// after GCTime without reads.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dailyyoga/studysync/querykey"
)

// Fetcher loads the value of one entry from the network.
// The context is detached from the reader that triggered the fetch.
type Fetcher func(ctx context.Context) (any, error)

// Status is the lifecycle state of an entry
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of an entry.
// Data is shared with the cache and must be treated as read-only.
type Snapshot struct {
	Key    querykey.Key
	Data   any
	Err    error
	Status Status
	// HasData is false until the first successful fetch or SetData
	HasData bool
	// UpdatedAt is the time of the last successful write
	UpdatedAt time.Time
	ErrorAt   time.Time
	Stale     bool
	Fetching  bool
	Observers int
}

// EventType names what happened to an entry
type EventType int

const (
	EventUpdated EventType = iota
	EventInvalidated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers of a key
type Event struct {
	Type     EventType
	Snapshot Snapshot
}

// Dehydrated is the persisted form of a successful entry
type Dehydrated struct {
	Key       querykey.Key
	Data      json.RawMessage
	UpdatedAt time.Time
}

// QueryCache stores query results by key
type QueryCache interface {
	// Fetch returns the entry for key, calling fetch when the entry is missing,
	// stale or invalidated. Concurrent calls for the same key share one fetch,
	// and a caller giving up via ctx does not cancel it. The fetch error is
	// returned unchanged; the snapshot then still carries the previous value.
	// A failed entry counts as fresh for its stale time after the failure, and
	// reading it again returns the cached error without a call.
	Fetch(ctx context.Context, key querykey.Key, fetch Fetcher, opts ...FetchOption) (Snapshot, error)

	// Peek returns the entry without fetching
	Peek(key querykey.Key) (Snapshot, bool)

	// SetData writes a confirmed value, marking the entry fresh
	SetData(key querykey.Key, data any) Snapshot

	// Invalidate marks every entry under prefix stale and returns how many matched.
	// A fetch in flight for such an entry completes but its result stays stale.
	Invalidate(prefix querykey.Key) int

	// Remove drops every entry under prefix
	Remove(prefix querykey.Key) int

	// Clear drops every entry
	Clear() int

	// Subscribe delivers events for key until the subscription is closed.
	// Subscribed entries are never garbage-collected.
	Subscribe(key querykey.Key) *Subscription

	// GC removes unsubscribed entries not read for GCTime
	GC() int

	// RefetchStale refetches stale entries that have been read at least once,
	// only subscribed ones when onlyActive is set.
	RefetchStale(ctx context.Context, onlyActive bool) (int, error)

	// Refocus runs RefetchStale for subscribed entries when refetch on focus is enabled
	Refocus(ctx context.Context) (int, error)

	// Dehydrate serializes successful entries
	Dehydrate() ([]Dehydrated, error)

	// Hydrate restores entries that are missing or older than the given ones.
	// Restored entries keep their original UpdatedAt.
	Hydrate(items []Dehydrated) int

	// Keys lists the keys of all entries
	Keys() []querykey.Key

	// Len returns the number of entries
	Len() int

	// Config returns the effective configuration
	Config() Config

	// Close ends all subscriptions and aborts in-flight fetches
	Close()
}

// FetchOption tunes a single Fetch
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	staleTime *time.Duration
	retry     *int
	force     bool
}

// WithStaleTime overrides the fresh window for this entry
func WithStaleTime(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.staleTime = &d }
}

// WithRetry overrides the retry count for this read, 0 disables retries
func WithRetry(n int) FetchOption {
	return func(o *fetchOptions) { o.retry = &n }
}

// Force fetches even when the entry is fresh
func Force() FetchOption {
	return func(o *fetchOptions) { o.force = true }
}
