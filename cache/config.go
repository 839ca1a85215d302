package cache

import "time"

// AlwaysStale as Config.StaleTime makes every read fetch
const AlwaysStale time.Duration = -1

// Config holds configuration for the query cache
type Config struct {
	// StaleTime is how long a result is served without a network call.
	// Zero takes the default; use AlwaysStale to fetch on every read.
	// default: 60s
	StaleTime time.Duration `mapstructure:"stale_time" yaml:"stale_time"`
	// GCTime is how long an unsubscribed entry survives without being read
	// default: 5m
	GCTime time.Duration `mapstructure:"gc_time" yaml:"gc_time"`
	// Retry is the number of extra attempts after a retryable read failure.
	// Zero takes the default; -1 disables retries.
	// default: 2
	Retry int `mapstructure:"retry" yaml:"retry"`
	// RetryDelay is the first backoff, doubled on every further attempt
	// default: 1s
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// MaxRetryDelay caps the backoff
	// default: 30s
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay" yaml:"max_retry_delay"`
	// RefetchOnFocus revalidates stale subscribed entries when the user returns
	// default: true (the config package turns it off in development)
	RefetchOnFocus *bool `mapstructure:"refetch_on_focus" yaml:"refetch_on_focus"`
}

// DefaultConfig returns the default configuration for the query cache
func DefaultConfig() *Config {
	refetch := true
	return &Config{
		StaleTime:      60 * time.Second,
		GCTime:         5 * time.Minute,
		Retry:          2,
		RetryDelay:     time.Second,
		MaxRetryDelay:  30 * time.Second,
		RefetchOnFocus: &refetch,
	}
}

// MergeDefaults fills zero fields with defaults and returns the config
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.StaleTime == 0 {
		c.StaleTime = defaults.StaleTime
	}
	if c.GCTime == 0 {
		c.GCTime = defaults.GCTime
	}
	if c.Retry == 0 {
		c.Retry = defaults.Retry
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaults.RetryDelay
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = defaults.MaxRetryDelay
	}
	if c.RefetchOnFocus == nil {
		c.RefetchOnFocus = defaults.RefetchOnFocus
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.StaleTime < 0 && c.StaleTime != AlwaysStale {
		return ErrInvalidDuration("stale_time", c.StaleTime)
	}
	if c.GCTime <= 0 {
		return ErrInvalidDuration("gc_time", c.GCTime)
	}
	if c.Retry < -1 {
		return ErrInvalidRetry(c.Retry)
	}
	if c.RetryDelay < 0 {
		return ErrInvalidDuration("retry_delay", c.RetryDelay)
	}
	if c.MaxRetryDelay < c.RetryDelay {
		return ErrInvalidDuration("max_retry_delay", c.MaxRetryDelay)
	}
	return nil
}

// RefetchOnFocusEnabled reports the effective refocus setting
func (c *Config) RefetchOnFocusEnabled() bool {
	return c.RefetchOnFocus == nil || *c.RefetchOnFocus
}

func (c *Config) retryPolicy() RetryPolicy {
	retries := c.Retry
	if retries < 0 {
		retries = 0
	}
	return RetryPolicy{Retries: retries, Delay: c.RetryDelay, MaxDelay: c.MaxRetryDelay}
}
