package persist

import (
	"time"

	"github.com/dailyyoga/studysync/db"
)

// Config enables the persisted query cache
type Config struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// MaxAge drops snapshots older than this on load
	// default: 24h
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`
	// BatchSize is the number of rows per insert statement
	// default: 100
	BatchSize int        `mapstructure:"batch_size" yaml:"batch_size"`
	DB        *db.Config `mapstructure:"db" yaml:"db"`
}

// DefaultConfig returns a disabled configuration
func DefaultConfig() *Config {
	return &Config{
		MaxAge:    24 * time.Hour,
		BatchSize: 100,
	}
}

// MergeDefaults fills empty fields with defaults and returns c
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.MaxAge == 0 {
		c.MaxAge = d.MaxAge
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Enabled && c.DB != nil {
		c.DB.MergeDefaults()
	}
	return c
}

// Validate checks the configuration when persistence is enabled
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxAge < 0 {
		return ErrInvalidConfig("max_age must not be negative")
	}
	if c.BatchSize <= 0 {
		return ErrInvalidConfig("batch_size must be greater than 0")
	}
	if c.DB == nil {
		return ErrInvalidConfig("db section is required")
	}
	return c.DB.Validate()
}
