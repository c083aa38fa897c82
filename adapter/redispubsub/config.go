package redispubsub

import (
	"fmt"
	"strconv"
	"time"
)

// Config for the Redis Pub/Sub back end.
type Config struct {
	Addr          string
	Username      string
	Password      string
	DB            int
	DialTimeout   time.Duration
	TLS           bool
	TLSServerName string
}

// Defaults returns a Config pointing at a local Redis.
func Defaults() Config {
	return Config{
		Addr:        "127.0.0.1:6379",
		DialTimeout: 5 * time.Second,
	}
}

// Validate checks Config.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.DB < 0 {
		return fmt.Errorf("config: db must be >= 0, got %d", c.DB)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("config: dial_timeout must be > 0, got %v", c.DialTimeout)
	}
	return nil
}

// toMap converts Config to generic map for the backend factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"username":        c.Username,
		"password":        c.Password,
		"db":              c.DB,
		"dial_timeout":    c.DialTimeout,
		"tls":             c.TLS,
		"tls_server_name": c.TLSServerName,
	}
}

// ConfigFromMap safely converts generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	switch v := m["db"].(type) {
	case int:
		c.DB = v
	case int64:
		c.DB = int(v)
	case float64:
		c.DB = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			c.DB = n
		}
	}
	switch v := m["dial_timeout"].(type) {
	case time.Duration:
		if v > 0 {
			c.DialTimeout = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.DialTimeout = d
		}
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}

	return c
}
