// Package config loads the studysync configuration file and applies
// environment overrides on top of it.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dailyyoga/studysync/broadcast"
	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/cron"
	"github.com/dailyyoga/studysync/httpclient"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/persist"
)

const (
	Development = "development"
	Production  = "production"
)

// Environment variables that override the file
const (
	EnvName    = "STUDYSYNC_ENV"
	EnvBaseURL = "STUDYSYNC_BASE_URL"
	EnvToken   = "STUDYSYNC_TOKEN"
)

// Config aggregates the configuration of every package
type Config struct {
	// Env is development or production
	// default: "production"
	Env string `mapstructure:"env" yaml:"env"`
	// Token starts a session on boot when set
	Token string `mapstructure:"token" yaml:"token"`
	// MetricsAddr serves /metrics when set, e.g. ":9102"
	MetricsAddr string             `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	Logger      *logger.Config     `mapstructure:"logger" yaml:"logger"`
	HTTP        *httpclient.Config `mapstructure:"http" yaml:"http"`
	Cache       *cache.Config      `mapstructure:"cache" yaml:"cache"`
	Maintenance *cron.Config       `mapstructure:"maintenance" yaml:"maintenance"`
	Broadcast   *broadcast.Config  `mapstructure:"broadcast" yaml:"broadcast"`
	Persist     *persist.Config    `mapstructure:"persist" yaml:"persist"`
}

// DefaultConfig returns a production configuration without a base URL
func DefaultConfig() *Config {
	return &Config{
		Env:         Production,
		Logger:      logger.DefaultConfig(),
		HTTP:        httpclient.DefaultConfig(),
		Cache:       cache.DefaultConfig(),
		Maintenance: cron.DefaultConfig(),
		Broadcast:   broadcast.DefaultConfig(),
		Persist:     persist.DefaultConfig(),
	}
}

// Override adjusts a loaded config before defaults are merged
type Override func(*Config)

// WithToken overrides the session token
func WithToken(token string) Override {
	return func(c *Config) {
		if token != "" {
			c.Token = token
		}
	}
}

// WithBaseURL overrides the backend API root
func WithBaseURL(u string) Override {
	return func(c *Config) {
		if u == "" {
			return
		}
		if c.HTTP == nil {
			c.HTTP = &httpclient.Config{}
		}
		c.HTTP.BaseURL = u
	}
}

// WithLogLevel overrides the log level
func WithLogLevel(level string) Override {
	return func(c *Config) {
		if level == "" {
			return
		}
		if c.Logger == nil {
			c.Logger = &logger.Config{}
		}
		c.Logger.Level = level
	}
}

// Load reads path, applies environment variables then overrides, merges
// defaults and validates. An empty path skips the file.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ErrRead(path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, ErrParse(path, err)
		}
	}
	cfg.ApplyEnv()
	for _, o := range overrides {
		o(cfg)
	}
	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML, rejecting unknown fields. Defaults are not applied.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ErrEnvFile(path, err)
	}
	return nil
}

// ApplyEnv overrides file values with STUDYSYNC_* environment variables
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvName); ok && v != "" {
		c.Env = v
	}
	if v, ok := os.LookupEnv(EnvBaseURL); ok && v != "" {
		if c.HTTP == nil {
			c.HTTP = &httpclient.Config{}
		}
		c.HTTP.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvToken); ok && v != "" {
		c.Token = v
	}
}

// MergeDefaults fills missing sections and fields. In development the cache
// does not refetch on refocus unless the file says so.
func (c *Config) MergeDefaults() *Config {
	if c.Env == "" {
		c.Env = Production
	}
	if c.Logger == nil {
		c.Logger = &logger.Config{}
	}
	if c.HTTP == nil {
		c.HTTP = &httpclient.Config{}
	}
	if c.Cache == nil {
		c.Cache = &cache.Config{}
	}
	if c.Maintenance == nil {
		c.Maintenance = &cron.Config{}
	}
	if c.Broadcast == nil {
		c.Broadcast = &broadcast.Config{}
	}
	if c.Persist == nil {
		c.Persist = &persist.Config{}
	}
	if c.Env == Development && c.Cache.RefetchOnFocus == nil {
		off := false
		c.Cache.RefetchOnFocus = &off
	}
	c.Logger.MergeDefaults()
	c.HTTP.MergeDefaults()
	c.Cache.MergeDefaults()
	c.Maintenance.MergeDefaults()
	c.Broadcast.MergeDefaults()
	c.Persist.MergeDefaults()
	return c
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Env != Development && c.Env != Production {
		return ErrInvalidEnv
	}
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"logger", c.Logger},
		{"http", c.HTTP},
		{"cache", c.Cache},
		{"maintenance", c.Maintenance},
		{"broadcast", c.Broadcast},
		{"persist", c.Persist},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return ErrSection(s.name, err)
		}
	}
	return nil
}

// IsDevelopment reports whether Env is development
func (c *Config) IsDevelopment() bool {
	return c.Env == Development
}
