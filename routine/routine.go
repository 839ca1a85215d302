// Package routine runs goroutines with panic recovery.
//
// Background refetches, notification dispatch and broadcast consumers all go
// through this package so that a panicking fetcher or handler is logged
// instead of taking down the process.
package routine

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dailyyoga/studysync/logger"
	"go.uber.org/zap"
)

// Runner provides tracked goroutine execution with panic recovery
type Runner interface {
	// GoNamed executes a named function in a new goroutine
	GoNamed(name string, fn func())

	// GoNamedWithContext executes a named function with context in a new goroutine
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))

	// Running reports how many goroutines started by this runner have not returned yet
	Running() int

	// Wait waits for all goroutines started by this runner to complete
	Wait()
}

type defaultRunner struct {
	log     logger.Logger
	wg      sync.WaitGroup
	running atomic.Int64
}

// New creates a new Runner with the given logger
func New(log logger.Logger) Runner {
	return &defaultRunner{log: log}
}

func (r *defaultRunner) GoNamed(name string, fn func()) {
	r.GoNamedWithContext(context.Background(), name, func(context.Context) { fn() })
}

func (r *defaultRunner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	r.running.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Add(-1)
		defer recoverWithLog(r.log, name)
		fn(ctx)
	}()
}

func (r *defaultRunner) Running() int {
	return int(r.running.Load())
}

func (r *defaultRunner) Wait() {
	r.wg.Wait()
}

// GoNamed is the untracked form of Runner.GoNamed
func GoNamed(log logger.Logger, name string, fn func()) {
	go func() {
		defer recoverWithLog(log, name)
		fn()
	}()
}

// GoNamedWithContext is the untracked form of Runner.GoNamedWithContext
func GoNamedWithContext(ctx context.Context, log logger.Logger, name string, fn func(ctx context.Context)) {
	go func() {
		defer recoverWithLog(log, name)
		fn(ctx)
	}()
}

func recoverWithLog(log logger.Logger, name string) {
	if rec := recover(); rec != nil {
		fields := []zap.Field{
			zap.Error(ErrPanic(rec)),
			zap.String("stack", string(debug.Stack())),
		}
		if name != "" {
			fields = append([]zap.Field{zap.String("routine", name)}, fields...)
		}
		log.Error("goroutine panicked", fields...)
	}
}
