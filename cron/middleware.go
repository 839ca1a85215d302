package cron

import (
	"context"
	"time"

	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"github.com/dailyyoga/studysync/routine"
	"go.uber.org/zap"
)

// Middleware wraps a Task with additional behavior
type Middleware func(Task) Task

// applyMiddlewares applies mws so that the first one is outermost:
// applyMiddlewares(task, mw1, mw2) results in mw1(mw2(task))
func applyMiddlewares(t Task, mws ...Middleware) Task {
	for i := len(mws) - 1; i >= 0; i-- {
		t = mws[i](t)
	}
	return t
}

// recoveryMiddleware turns a panicking task into a failed one
func recoveryMiddleware(log logger.Logger) Middleware {
	return func(next Task) Task {
		return &wrappedTask{
			name: next.Name(),
			exec: func(ctx context.Context) (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = routine.ErrPanic(r)
						log.Error("task panicked",
							zap.String("task", next.Name()),
							zap.Error(err),
							zap.Stack("stack"),
						)
					}
				}()
				return next.Run(ctx)
			},
		}
	}
}

// loggingMiddleware logs duration and failures. Maintenance runs every few
// seconds, so successful runs are logged at debug.
func loggingMiddleware(log logger.Logger) Middleware {
	return func(next Task) Task {
		return &wrappedTask{
			name: next.Name(),
			exec: func(ctx context.Context) error {
				start := time.Now()
				err := next.Run(ctx)
				duration := time.Since(start)

				if err != nil {
					log.Error("task failed",
						zap.String("task", next.Name()),
						zap.Duration("duration", duration),
						zap.Error(err),
					)
				} else {
					log.Debug("task completed",
						zap.String("task", next.Name()),
						zap.Duration("duration", duration),
					)
				}
				return err
			},
		}
	}
}

func metricsMiddleware() Middleware {
	return func(next Task) Task {
		return &wrappedTask{
			name: next.Name(),
			exec: func(ctx context.Context) error {
				err := next.Run(ctx)
				metrics.ObserveTask(next.Name(), err)
				return err
			},
		}
	}
}

// Timeout bounds every task run to d
func Timeout(d time.Duration) Middleware {
	return func(next Task) Task {
		return &wrappedTask{
			name: next.Name(),
			exec: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, d)
				defer cancel()
				return next.Run(ctx)
			},
		}
	}
}

type wrappedTask struct {
	name string
	exec func(ctx context.Context) error
}

func (w *wrappedTask) Name() string {
	return w.name
}

func (w *wrappedTask) Run(ctx context.Context) error {
	return w.exec(ctx)
}
