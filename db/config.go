package db

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

// Config is the MySQL connection holding persisted query snapshots
type Config struct {
	// URL is a complete go-sql-driver DSN; when set it replaces the
	// Host, Port, User, Password and Database fields
	URL  string `mapstructure:"url" yaml:"url"`
	Host string `mapstructure:"host" yaml:"host"`
	// default: 3306
	Port int    `mapstructure:"port" yaml:"port"`
	User string `mapstructure:"user" yaml:"user"`
	// Password may be empty for local development servers
	Password string `mapstructure:"password" yaml:"password"`
	// default: "studysync"
	Database string `mapstructure:"database" yaml:"database"`
	// DialTimeout bounds establishing a connection
	// default: 5s
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	// MaxOpenConns is the maximum number of open connections to the database
	// default: 5
	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	// MaxIdleConns is the maximum number of idle connections to the database
	// default: 2
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	// ConnMaxLifetime is the maximum lifetime of a connection
	// default: 1800 * time.Second
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// ConnMaxIdleTime is the maximum idle time of a connection
	// default: 600 * time.Second
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	// LogLevel is the log level of the database
	// default: "warn"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	// SlowThreshold is the threshold for slow queries
	// default: 1 * time.Second
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`
	// Charset of the connection
	// default: "utf8mb4"
	Charset string `mapstructure:"charset" yaml:"charset"`
	// Loc is the time zone used to parse DATETIME columns
	// default: "UTC"
	Loc string `mapstructure:"loc" yaml:"loc"`
}

// DSN renders the connection string. Snapshot timestamps are always parsed
// into time.Time in the configured location.
func (c *Config) DSN() (string, error) {
	loc, err := time.LoadLocation(c.Loc)
	if err != nil {
		return "", ErrInvalidConfig(fmt.Sprintf("loc %q: %v", c.Loc, err))
	}
	var dc *driver.Config
	if c.URL != "" {
		if dc, err = driver.ParseDSN(c.URL); err != nil {
			return "", ErrInvalidConfig(fmt.Sprintf("url: %v", err))
		}
	} else {
		dc = driver.NewConfig()
		dc.User = c.User
		dc.Passwd = c.Password
		dc.Net = "tcp"
		dc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		dc.DBName = c.Database
	}
	dc.ParseTime = true
	dc.Loc = loc
	if dc.Timeout == 0 {
		dc.Timeout = c.DialTimeout
	}
	if c.Charset != "" {
		if dc.Params == nil {
			dc.Params = map[string]string{}
		}
		dc.Params["charset"] = c.Charset
	}
	return dc.FormatDSN(), nil
}

// Addr names the server for logs and errors without credentials
func (c *Config) Addr() string {
	if c.URL != "" {
		if dc, err := driver.ParseDSN(c.URL); err == nil {
			return dc.Addr + "/" + dc.DBName
		}
		return "<url>"
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/" + c.Database
}

// DefaultConfig returns the default configuration for the database
func DefaultConfig() *Config {
	return &Config{
		Port:            3306,
		Database:        "studysync",
		DialTimeout:     5 * time.Second,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 1800 * time.Second,
		ConnMaxIdleTime: 600 * time.Second,
		LogLevel:        "warn",
		SlowThreshold:   1 * time.Second,
		Charset:         "utf8mb4",
		Loc:             "UTC",
	}
}

// Validate validates the configuration for the database
func (c *Config) Validate() error {
	if c.URL == "" {
		if c.Host == "" {
			return ErrInvalidConfig("host is required")
		}
		if c.Port <= 0 {
			return ErrInvalidConfig("port is required")
		}
		if c.User == "" {
			return ErrInvalidConfig("user is required")
		}
		if c.Database == "" {
			return ErrInvalidConfig("database is required")
		}
	}
	if _, err := c.DSN(); err != nil {
		return err
	}

	validLogLevels := []string{"silent", "error", "warn", "info"}
	if !slices.ContainsFunc(validLogLevels, func(level string) bool {
		return strings.EqualFold(c.LogLevel, level)
	}) {
		return ErrInvalidConfig(fmt.Sprintf("log_level %q must be one of: %s", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	return nil
}

// MergeDefaults fills empty fields with defaults and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.Database == "" {
		c.Database = defaults.Database
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaults.MaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = defaults.SlowThreshold
	}
	if c.Charset == "" {
		c.Charset = defaults.Charset
	}
	if c.Loc == "" {
		c.Loc = defaults.Loc
	}
	return c
}
