package cron

import "time"

// Off disables a maintenance chain
const Off = "off"

// Config schedules cache maintenance
type Config struct {
	// GCSpec runs cache garbage collection
	GCSpec string `mapstructure:"gc_spec" yaml:"gc_spec"`
	// RevalidateSpec refetches stale entries in the background; off by default
	RevalidateSpec string `mapstructure:"revalidate_spec" yaml:"revalidate_spec"`
	// RevalidateAll also refetches entries nobody observes
	RevalidateAll bool `mapstructure:"revalidate_all" yaml:"revalidate_all"`
	// SnapshotSpec persists the cache when a snapshot store is configured
	SnapshotSpec string `mapstructure:"snapshot_spec" yaml:"snapshot_spec"`
	// TaskTimeout bounds every task run
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// DefaultConfig returns the default maintenance schedule
func DefaultConfig() *Config {
	return &Config{
		GCSpec:         "@every 30s",
		RevalidateSpec: Off,
		SnapshotSpec:   "@every 1m",
		TaskTimeout:    30 * time.Second,
	}
}

// MergeDefaults fills empty fields with defaults and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.GCSpec == "" {
		c.GCSpec = defaults.GCSpec
	}
	if c.RevalidateSpec == "" {
		c.RevalidateSpec = defaults.RevalidateSpec
	}
	if c.SnapshotSpec == "" {
		c.SnapshotSpec = defaults.SnapshotSpec
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = defaults.TaskTimeout
	}
	return c
}

// Validate checks every enabled spec
func (c *Config) Validate() error {
	for _, spec := range []string{c.GCSpec, c.RevalidateSpec, c.SnapshotSpec} {
		if spec == "" || spec == Off {
			continue
		}
		if err := ParseSpec(spec); err != nil {
			return err
		}
	}
	if c.TaskTimeout < 0 {
		return ErrInvalidConfig("task_timeout must not be negative")
	}
	return nil
}
