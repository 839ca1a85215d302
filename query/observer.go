package query

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dailyyoga/studysync/cache"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// Observer follows one query. Every change of the entry is delivered on
// Updates; when the entry is invalidated the observer refetches it in the
// background. Closing stops delivery but never cancels a fetch in flight.
type Observer[T any] struct {
	query   *Query[T]
	ctx     context.Context
	sub     *cache.Subscription
	updates *chanx.UnboundedChan[Result[T]]
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// Subscribe starts observing the query. The current state is delivered first,
// and a missing or stale entry is fetched in the background.
func (q *Query[T]) Subscribe(ctx context.Context) *Observer[T] {
	o := &Observer[T]{
		query:   q,
		ctx:     context.WithoutCancel(ctx),
		sub:     q.client.cache.Subscribe(q.key),
		updates: chanx.NewUnboundedChan[Result[T]](context.Background(), 4),
		done:    make(chan struct{}),
	}

	state := q.State()
	o.updates.In <- state
	q.client.runner.GoNamed("query-observer", o.loop)
	if !state.HasData || state.IsStale {
		o.refetch()
	}
	return o
}

// Updates is closed after Close once pending results are drained
func (o *Observer[T]) Updates() <-chan Result[T] {
	return o.updates.Out
}

// Current returns the cached state of the observed query
func (o *Observer[T]) Current() Result[T] {
	return o.query.State()
}

// Close stops the observer; it can be called multiple times safely
func (o *Observer[T]) Close() {
	o.once.Do(func() {
		o.closed.Store(true)
		o.sub.Close()
		<-o.done
	})
}

func (o *Observer[T]) loop() {
	defer close(o.done)
	defer close(o.updates.In)

	for ev := range o.sub.Events() {
		if o.closed.Load() {
			continue
		}
		o.updates.In <- o.query.result(ev.Snapshot, nil)
		if ev.Type == cache.EventInvalidated {
			o.refetch()
		}
	}
}

func (o *Observer[T]) refetch() {
	if o.closed.Load() || o.query.client.closed.Load() {
		return
	}
	o.query.client.runner.GoNamed("query-refetch", func() {
		res := o.query.Fetch(o.ctx)
		if res.Err != nil {
			o.query.client.log.Debug("background refetch failed",
				zap.Stringer("key", o.query.key),
				zap.Error(res.Err),
			)
		}
	})
}
