package httpclient

import (
	"net/url"
	"time"
)

// Config is the configuration for the backend HTTP client
type Config struct {
	// BaseURL is the backend API root, e.g. https://api.example.edu/api/v1 (required)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Timeout is the fixed per-request deadline
	// default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// UserAgent is sent with every request
	// default: "studysync/1"
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// RateLimit caps outgoing requests per second, 0 disables the limiter
	// default: 0
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	// RateBurst is the limiter burst size, only used when RateLimit > 0
	// default: 5
	RateBurst int `mapstructure:"rate_burst" yaml:"rate_burst"`
	// MaxResponseBytes bounds how much of a response body is read
	// default: 10MB
	MaxResponseBytes int64 `mapstructure:"max_response_bytes" yaml:"max_response_bytes"`
}

// DefaultConfig returns the default configuration; BaseURL has no default
func DefaultConfig() *Config {
	return &Config{
		Timeout:          30 * time.Second,
		UserAgent:        "studysync/1",
		RateBurst:        5,
		MaxResponseBytes: 10 << 20,
	}
}

// MergeDefaults fills zero fields with defaults and returns the config
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.RateBurst == 0 {
		c.RateBurst = defaults.RateBurst
	}
	if c.MaxResponseBytes == 0 {
		c.MaxResponseBytes = defaults.MaxResponseBytes
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidConfig("base_url must be an absolute URL")
	}
	if c.Timeout <= 0 {
		return ErrInvalidConfig("timeout must be greater than 0")
	}
	if c.RateLimit < 0 {
		return ErrInvalidConfig("rate_limit cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return ErrInvalidConfig("rate_burst must be at least 1 when rate_limit is set")
	}
	if c.MaxResponseBytes < 0 {
		return ErrInvalidConfig("max_response_bytes cannot be negative")
	}
	return nil
}
