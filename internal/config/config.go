// Package config loads the xsock CLI configuration from an optional file and
// XSOCK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/trickstertwo/xsock"
)

// EnvPrefix is prepended to every environment override, e.g. XSOCK_BACKEND
// or XSOCK_PUBLISHER_TOPIC.
const EnvPrefix = "XSOCK"

var ErrFileNotFound = errors.New("config: file not found")

// Config is the full CLI configuration.
type Config struct {
	Backend        string         `mapstructure:"backend"`
	Framing        string         `mapstructure:"framing"`
	MaxFrameSize   int            `mapstructure:"max_frame_size"`
	ReceiveTimeout time.Duration  `mapstructure:"receive_timeout"`
	Options        map[string]any `mapstructure:"options"`

	Publisher  PublisherConfig  `mapstructure:"publisher"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Observers  ObserversConfig  `mapstructure:"observers"`
}

type PublisherConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Topic    string        `mapstructure:"topic"`
	Interval time.Duration `mapstructure:"interval"`
	Source   string        `mapstructure:"source"`
}

type SubscriberConfig struct {
	Endpoint string   `mapstructure:"endpoint"`
	Topics   []string `mapstructure:"topics"`
}

type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type MetricsConfig struct {
	// Addr enables the Prometheus endpoint when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// ObserversConfig sizes the async observer pool. PoolWorkers 0 dispatches
// events on the publish and receive loops.
type ObserversConfig struct {
	PoolWorkers int `mapstructure:"pool_workers"`
	PoolBuffer  int `mapstructure:"pool_buffer"`
}

// Defaults mirrors the reference pub/sub pair: tcp port 5555, topic UPDATES,
// one message per second.
func Defaults() map[string]any {
	rp := xsock.DefaultRetryPolicy()
	return map[string]any{
		"backend":                "zmq",
		"framing":                xsock.FramingDelimited,
		"max_frame_size":         xsock.DefaultMaxFrameSize,
		"receive_timeout":        xsock.DefaultReceiveTimeout,
		"publisher.endpoint":     "tcp://*:5555",
		"publisher.topic":        "UPDATES",
		"publisher.interval":     xsock.DefaultPublishInterval,
		"publisher.source":       "publisher",
		"subscriber.endpoint":    "tcp://localhost:5555",
		"subscriber.topics":      []string{"UPDATES"},
		"retry.max_attempts":     rp.MaxAttempts,
		"retry.initial_delay":    rp.InitialDelay,
		"retry.max_delay":        rp.MaxDelay,
		"retry.multiplier":       rp.Multiplier,
		"log.level":              "info",
		"log.console":            true,
		"metrics.path":           "/metrics",
		"observers.pool_workers": 1,
		"observers.pool_buffer":  1024,
	}
}

// Load reads path (YAML, JSON or TOML by extension) when non-empty, then
// applies defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values the CLI relies on.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend required")
	}
	if c.Framing != xsock.FramingDelimited && c.Framing != xsock.FramingMultipart {
		return fmt.Errorf("framing must be %q or %q, got %q", xsock.FramingDelimited, xsock.FramingMultipart, c.Framing)
	}
	if c.MaxFrameSize < 1 {
		return fmt.Errorf("max_frame_size must be >= 1, got %d", c.MaxFrameSize)
	}
	if c.Publisher.Interval <= 0 {
		return fmt.Errorf("publisher.interval must be > 0, got %v", c.Publisher.Interval)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be >= 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier)
	}
	if c.Observers.PoolWorkers < 0 || c.Observers.PoolBuffer < 0 {
		return fmt.Errorf("observers.pool_workers and observers.pool_buffer must be >= 0")
	}
	if c.Framing == xsock.FramingDelimited {
		if err := xsock.ValidateDelimitedTopic(c.Publisher.Topic); err != nil {
			return fmt.Errorf("publisher.topic: %w", err)
		}
		for _, t := range c.Subscriber.Topics {
			if err := xsock.ValidateDelimitedTopic(t); err != nil {
				return fmt.Errorf("subscriber.topics: %w", err)
			}
		}
	}
	return nil
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() xsock.RetryPolicy {
	return xsock.RetryPolicy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Multiplier:   c.Retry.Multiplier,
	}
}

// BackendOptions returns the back end config map, never nil.
func (c *Config) BackendOptions() map[string]any {
	if c.Options == nil {
		return map[string]any{}
	}
	return c.Options
}
