package nanomsg

import (
	"fmt"
	"math"
	"time"
)

// maxMillis is the longest duration a millisecond socket option can carry.
const maxMillis = math.MaxInt32 * time.Millisecond

// Config for the nanomsg back end.
type Config struct {
	// LibraryPath overrides library discovery when set.
	LibraryPath string
	// Linger is applied as NN_LINGER to every socket. Any negative value waits forever
	// for unsent messages on close.
	Linger time.Duration
}

// Defaults returns a Config that drops unsent messages on close.
func Defaults() Config {
	return Config{Linger: 0}
}

// Validate checks Config.
func (c Config) Validate() error {
	if c.Linger > maxMillis {
		return fmt.Errorf("config: linger must be <= %v, got %v", maxMillis, c.Linger)
	}
	return nil
}

// toMap converts Config to generic map for the backend factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"library_path": c.LibraryPath,
		"linger":       c.Linger,
	}
}

// ConfigFromMap safely converts generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["library_path"].(string); ok {
		c.LibraryPath = v
	}
	switch v := m["linger"].(type) {
	case time.Duration:
		c.Linger = v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			c.Linger = d
		}
	}
	return c
}
