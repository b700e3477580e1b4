package redisstream

import (
	"fmt"
	"time"
)

// Config for the Redis Streams sink.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// Stream layout: every protocol line becomes one entry with Field set to
	// the line's JSON text.
	Stream       string
	Field        string
	MaxLenApprox int64

	// WriteTimeout bounds one Flush (a pipelined batch of XADDs).
	WriteTimeout time.Duration
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		Stream:       "xsinger",
		Field:        "message",
		WriteTimeout: 5 * time.Second,
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.Field == "" {
		return fmt.Errorf("config: field required")
	}
	if c.DB < 0 {
		return fmt.Errorf("config: db must be >= 0, got %d", c.DB)
	}
	if c.MaxLenApprox < 0 {
		return fmt.Errorf("config: max_len_approx must be >= 0, got %d", c.MaxLenApprox)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("config: write_timeout must be > 0, got %v", c.WriteTimeout)
	}
	return nil
}

// ConfigFromMap converts a generic map (e.g. decoded TOML) to Config with defaults.
// Durations may be given as time.Duration or as strings like "5s".
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
	if v, ok := asInt64(m["db"]); ok {
		c.DB = int(v)
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	if v, ok := m["stream"].(string); ok && v != "" {
		c.Stream = v
	}
	if v, ok := m["field"].(string); ok && v != "" {
		c.Field = v
	}
	if v, ok := asInt64(m["max_len_approx"]); ok && v > 0 {
		c.MaxLenApprox = v
	}
	if v, ok := asDuration(m["write_timeout"]); ok && v > 0 {
		c.WriteTimeout = v
	}

	return c
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func asDuration(v any) (time.Duration, bool) {
	switch x := v.(type) {
	case time.Duration:
		return x, true
	case string:
		d, err := time.ParseDuration(x)
		return d, err == nil
	}
	return 0, false
}
