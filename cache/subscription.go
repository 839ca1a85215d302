package cache

import (
	"context"
	"sync"

	"github.com/dailyyoga/studysync/querykey"
	"github.com/smallnest/chanx"
)

// Subscription receives the events of one key through an unbounded queue,
// so the cache never blocks on a slow subscriber.
type Subscription struct {
	key    querykey.Key
	events *chanx.UnboundedChan[Event]
	once   sync.Once
	detach func(*Subscription)
}

func newSubscription(key querykey.Key, detach func(*Subscription)) *Subscription {
	return &Subscription{
		key:    key,
		events: chanx.NewUnboundedChan[Event](context.Background(), 8),
		detach: detach,
	}
}

// Key returns the subscribed key
func (s *Subscription) Key() querykey.Key {
	return s.key
}

// Events is closed after Close once pending events are drained
func (s *Subscription) Events() <-chan Event {
	return s.events.Out
}

// Pending returns the number of queued events
func (s *Subscription) Pending() int {
	return s.events.Len()
}

// Close stops delivery; it can be called multiple times safely
func (s *Subscription) Close() {
	s.once.Do(func() { s.detach(s) })
}

// send and closeIn are called with the cache lock held
func (s *Subscription) send(ev Event) {
	s.events.In <- ev
}

func (s *Subscription) closeIn() {
	close(s.events.In)
}
