package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/notify"
	"github.com/dailyyoga/studysync/querykey"
	"go.uber.org/zap"
)

// Func loads a query's value from the backend
type Func[T any] func(ctx context.Context) (T, error)

// Result is what a reader sees: the data, whether it is still loading and the last error.
// Data keeps the last good value when Err is set.
type Result[T any] struct {
	Data    T
	HasData bool
	Err     error
	Status  cache.Status
	// IsLoading is true while the first fetch runs and nothing can be shown yet
	IsLoading bool
	// IsFetching is true while any fetch runs, including background revalidation
	IsFetching bool
	IsStale    bool
	UpdatedAt  time.Time
}

// Query reads one key through the cache
type Query[T any] struct {
	client *Client
	key    querykey.Key
	fn     Func[T]
	opts   []cache.FetchOption
}

// New creates a query of key loaded by fn
func New[T any](c *Client, key querykey.Key, fn Func[T], opts ...cache.FetchOption) *Query[T] {
	return &Query[T]{client: c, key: key, fn: fn, opts: opts}
}

// Key returns the query key
func (q *Query[T]) Key() querykey.Key {
	return q.key
}

// Fetch returns the cached value when fresh, otherwise fetches it.
// Failures are reported in Result.Err; the previous value stays in Data.
func (q *Query[T]) Fetch(ctx context.Context) Result[T] {
	return q.fetch(ctx, q.opts...)
}

// Refetch fetches even when the cached value is fresh
func (q *Query[T]) Refetch(ctx context.Context) Result[T] {
	return q.fetch(ctx, append(q.opts[:len(q.opts):len(q.opts)], cache.Force())...)
}

// Prefetch warms the cache, returning only the error
func (q *Query[T]) Prefetch(ctx context.Context) error {
	return q.Fetch(ctx).Err
}

// State returns the cached state without fetching
func (q *Query[T]) State() Result[T] {
	snap, _ := q.client.cache.Peek(q.key)
	return q.result(snap, nil)
}

func (q *Query[T]) fetch(ctx context.Context, opts ...cache.FetchOption) Result[T] {
	snap, err := q.client.cache.Fetch(ctx, q.key, q.fetcher(), opts...)
	res := q.result(snap, err)
	if err != nil {
		q.client.log.Debug("query failed", zap.Stringer("key", q.key), zap.Error(err))
		if q.client.notifyReadErrors && ctx.Err() == nil {
			q.client.notify(notify.LevelError, q.key.Resource(), "read", errorMessage(err))
		}
	}
	return res
}

func (q *Query[T]) fetcher() cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		v, err := q.fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func (q *Query[T]) result(snap cache.Snapshot, err error) Result[T] {
	res := Result[T]{
		HasData:    snap.HasData,
		Err:        err,
		Status:     snap.Status,
		IsFetching: snap.Fetching,
		IsLoading:  snap.Fetching && !snap.HasData,
		IsStale:    snap.Stale,
		UpdatedAt:  snap.UpdatedAt,
	}
	if res.Err == nil {
		res.Err = snap.Err
	}
	if snap.HasData {
		data, derr := decode[T](snap.Data)
		if derr != nil {
			res.HasData = false
			if res.Err == nil {
				res.Err = ErrTypeMismatch(q.key.String(), derr)
			}
		} else {
			res.Data = data
		}
	}
	return res
}

// decode reads cached data as T; hydrated entries hold raw JSON
func decode[T any](v any) (T, error) {
	var zero T
	switch d := v.(type) {
	case T:
		return d, nil
	case nil:
		return zero, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(d, &out); err != nil {
			return zero, err
		}
		return out, nil
	default:
		return zero, fmt.Errorf("got %T", v)
	}
}
