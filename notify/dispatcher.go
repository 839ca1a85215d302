package notify

import (
	"context"
	"sync"

	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/routine"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// Dispatcher delivers notifications asynchronously and in order, so a slow
// terminal or log sink never holds up a mutation.
type Dispatcher struct {
	log    logger.Logger
	next   Notifier
	queue  *chanx.UnboundedChan[Notification]
	runner routine.Runner

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher in front of next
func NewDispatcher(log logger.Logger, next Notifier) *Dispatcher {
	d := &Dispatcher{
		log:    logger.Named(log, "notify"),
		next:   next,
		queue:  chanx.NewUnboundedChan[Notification](context.Background(), 16),
		runner: routine.New(log),
	}
	d.runner.GoNamed("notify-dispatch", d.loop)
	return d
}

// Notify queues n; it never blocks. Notifications after Close are dropped.
func (d *Dispatcher) Notify(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification dropped after close", zap.String("message", n.Message))
		return
	}
	d.queue.In <- n
}

// Pending returns the number of queued notifications
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Close delivers everything queued and stops the dispatcher.
// It can be called multiple times safely.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue.In)
	d.mu.Unlock()

	d.runner.Wait()
}

func (d *Dispatcher) loop() {
	for n := range d.queue.Out {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("notifier panicked", zap.Error(routine.ErrPanic(rec)))
		}
	}()
	d.next.Notify(n)
}
