// Package cron runs cache maintenance on cron schedules.
//
// Work is organized in chains: named lists of tasks that run one after the
// other on a schedule and stop at the first failure. Every task is wrapped in
// recovery, logging and metrics middlewares.
package cron

import (
	"context"

	"github.com/dailyyoga/studysync/logger"
)

// Task is one step of a chain
type Task interface {
	// Name identifies the task in logs and metrics
	Name() string
	// Run executes the task. ctx carries the chain's Report and is
	// cancelled when the scheduler closes.
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t *funcTask) Name() string                  { return t.name }
func (t *funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// NewTask creates a task from a function
func NewTask(name string, fn func(ctx context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

// Chain is a list of tasks sharing one schedule
type Chain struct {
	Name string
	// Spec is a cron spec with seconds ("0 */5 * * * *") or a descriptor ("@every 30s")
	Spec  string
	Tasks []Task
}

// Scheduler manages chains
type Scheduler interface {
	// Start begins scheduling in the background
	Start()
	// Close stops scheduling, cancels running tasks and waits for them
	Close()
	// AddTasks schedules tasks as a chain named name
	AddTasks(name string, spec string, tasks ...Task) error
	// AddChain is AddTasks for a Chain value
	AddChain(chain Chain) error
	// Run executes a chain immediately and returns the first task error
	Run(ctx context.Context, name string) (*Report, error)
	// Chains lists the scheduled chain names
	Chains() []string
}

// NewScheduler creates a scheduler. mws run inside the built-in recovery,
// logging and metrics middlewares, in the order given.
func NewScheduler(log logger.Logger, mws ...Middleware) Scheduler {
	log = logger.Named(log, "cron")
	defaults := []Middleware{
		recoveryMiddleware(log),
		loggingMiddleware(log),
		metricsMiddleware(),
	}
	return newScheduler(log, append(defaults, mws...)...)
}
