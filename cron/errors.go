package cron

import "fmt"

var (
	// ErrNoTasks is returned when a chain has no tasks
	ErrNoTasks = fmt.Errorf("cron: no tasks provided")

	// ErrInvalidSpec is returned when a cron spec cannot be parsed
	ErrInvalidSpec = fmt.Errorf("cron: invalid cron spec")

	// ErrSchedulerClosed is returned when adding to or running a closed scheduler
	ErrSchedulerClosed = fmt.Errorf("cron: scheduler is closed")

	// ErrUnknownChain is returned by Run for a name that was never added
	ErrUnknownChain = fmt.Errorf("cron: unknown chain")

	// ErrDuplicateChain is returned when a chain name is added twice
	ErrDuplicateChain = fmt.Errorf("cron: duplicate chain")
)

// ErrSpec wraps a parse failure of spec
func ErrSpec(spec string, err error) error {
	return fmt.Errorf("%w %q: %w", ErrInvalidSpec, spec, err)
}

// ErrTaskFailed reports the task that aborted a chain
func ErrTaskFailed(chain, task string, err error) error {
	return fmt.Errorf("cron: chain %s aborted at %s: %w", chain, task, err)
}

// ErrInvalidConfig is returned for an invalid maintenance configuration
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("cron: invalid config: %s", msg)
}
