package broadcast

import (
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

// Transport names
const (
	TransportRedis  = "redis"
	TransportKafka  = "kafka"
	TransportMemory = "memory"
)

// Config selects and configures the transport
type Config struct {
	// Transport is redis, kafka or memory; empty disables broadcasting
	Transport string `mapstructure:"transport" yaml:"transport"`
	// Channel is the redis channel or kafka topic
	// default: "studysync.invalidations"
	Channel string       `mapstructure:"channel" yaml:"channel"`
	Redis   *RedisConfig `mapstructure:"redis" yaml:"redis"`
	Kafka   *KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
}

// DefaultConfig returns a disabled configuration
func DefaultConfig() *Config {
	return &Config{Channel: "studysync.invalidations"}
}

// Enabled reports whether a transport is configured
func (c *Config) Enabled() bool {
	return c != nil && c.Transport != ""
}

// MergeDefaults fills empty fields with defaults and returns c
func (c *Config) MergeDefaults() *Config {
	if c.Channel == "" {
		c.Channel = DefaultConfig().Channel
	}
	switch c.Transport {
	case TransportRedis:
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis = c.Redis.MergeDefaults()
	case TransportKafka:
		if c.Kafka == nil {
			c.Kafka = &KafkaConfig{}
		}
		c.Kafka = c.Kafka.MergeDefaults()
	}
	return c
}

// Validate checks the selected transport
func (c *Config) Validate() error {
	switch c.Transport {
	case "", TransportMemory:
		return nil
	case TransportRedis:
		if c.Redis == nil {
			return ErrInvalidConfig("redis section is required")
		}
		return c.Redis.Validate()
	case TransportKafka:
		if c.Kafka == nil {
			return ErrInvalidConfig("kafka section is required")
		}
		return c.Kafka.Validate()
	default:
		return ErrInvalidConfig(fmt.Sprintf("unknown transport %q", c.Transport))
	}
}

// RedisConfig is the connection used by the redis transport
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	// default: 10
	PoolSize     int `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	// default: 3
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// default: 5s
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	// default: 3s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// default: 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DefaultRedisConfig returns a configuration for a local redis
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// MergeDefaults returns a copy with empty fields set to defaults
func (c *RedisConfig) MergeDefaults() *RedisConfig {
	out := *c
	d := DefaultRedisConfig()
	if out.Addr == "" {
		out.Addr = d.Addr
	}
	if out.PoolSize == 0 {
		out.PoolSize = d.PoolSize
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = d.MaxRetries
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = d.DialTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	return &out
}

// Validate rejects an empty address and negative settings
func (c *RedisConfig) Validate() error {
	switch {
	case c.Addr == "":
		return ErrInvalidConfig("redis addr is required")
	case c.DB < 0:
		return ErrInvalidConfig("redis db must not be negative")
	case c.PoolSize < 0:
		return ErrInvalidConfig("redis pool_size must not be negative")
	case c.MinIdleConns < 0:
		return ErrInvalidConfig("redis min_idle_conns must not be negative")
	case c.MaxRetries < 0:
		return ErrInvalidConfig("redis max_retries must not be negative")
	case c.DialTimeout < 0:
		return ErrInvalidConfig("redis dial_timeout must not be negative")
	case c.ReadTimeout < 0:
		return ErrInvalidConfig("redis read_timeout must not be negative")
	case c.WriteTimeout < 0:
		return ErrInvalidConfig("redis write_timeout must not be negative")
	}
	return nil
}

// Options converts the configuration for go-redis
func (c *RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// KafkaConfig is the producer and consumer setup of the kafka transport
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	// GroupPrefix is suffixed with a per-process id: every process must see every message
	// default: "studysync"
	GroupPrefix string `mapstructure:"group_prefix" yaml:"group_prefix"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	// Acks is the producer acknowledgement level
	// default: "all"
	Acks string `mapstructure:"acks" yaml:"acks"`
	// Compression is none, gzip, snappy, lz4 or zstd
	// default: "none"
	Compression string `mapstructure:"compression" yaml:"compression"`
	// SessionTimeout of the consumer group
	// default: 30s
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`
	// PollTimeout bounds one consumer poll so shutdown is noticed
	// default: 100ms
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	// SecurityProtocol, only PLAINTEXT is supported for now
	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol" yaml:"security_protocol"`
	// ValidateCluster checks broker metadata before producing
	ValidateCluster bool `mapstructure:"validate_cluster" yaml:"validate_cluster"`
}

// DefaultKafkaConfig returns the default kafka settings without brokers
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		GroupPrefix:      "studysync",
		Acks:             "all",
		Compression:      "none",
		SessionTimeout:   30 * time.Second,
		PollTimeout:      100 * time.Millisecond,
		SecurityProtocol: "PLAINTEXT",
	}
}

// MergeDefaults returns a copy with empty fields set to defaults
func (c *KafkaConfig) MergeDefaults() *KafkaConfig {
	out := *c
	d := DefaultKafkaConfig()
	if out.GroupPrefix == "" {
		out.GroupPrefix = d.GroupPrefix
	}
	if out.Acks == "" {
		out.Acks = d.Acks
	}
	if out.Compression == "" {
		out.Compression = d.Compression
	}
	if out.SessionTimeout == 0 {
		out.SessionTimeout = d.SessionTimeout
	}
	if out.PollTimeout == 0 {
		out.PollTimeout = d.PollTimeout
	}
	if out.SecurityProtocol == "" {
		out.SecurityProtocol = d.SecurityProtocol
	}
	return &out
}

// Validate requires brokers and positive timeouts
func (c *KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("kafka brokers are required")
	}
	if c.SessionTimeout <= 0 {
		return ErrInvalidConfig("kafka session_timeout must be greater than 0")
	}
	if c.PollTimeout <= 0 {
		return ErrInvalidConfig("kafka poll_timeout must be greater than 0")
	}
	return nil
}

func (c *KafkaConfig) producerConfigMap() *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(c.Brokers, ","),
		"compression.type":  strings.ToLower(c.Compression),
		"acks":              strings.ToLower(c.Acks),
		"security.protocol": c.SecurityProtocol,
		// invalidations are small and latency sensitive
		"linger.ms": 0,
	}
	if c.ClientID != "" {
		_ = cm.SetKey("client.id", c.ClientID)
	}
	return cm
}

func (c *KafkaConfig) consumerConfigMap(groupID string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.Brokers, ","),
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
		"session.timeout.ms": int(c.SessionTimeout.Milliseconds()),
		"security.protocol":  c.SecurityProtocol,
	}
}
