package natspub

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Config for the NATS sink.
type Config struct {
	// URL of the NATS server(s), comma separated.
	URL string
	// Subject every protocol line is published on.
	Subject string
	// FlushTimeout bounds the server round trip performed by Flush.
	FlushTimeout time.Duration
	// Name identifies the connection in server monitoring.
	Name string
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		URL:          nats.DefaultURL,
		Subject:      "xsinger.messages",
		FlushTimeout: 5 * time.Second,
		Name:         "xsinger",
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("config: url required")
	}
	if c.Subject == "" {
		return fmt.Errorf("config: subject required")
	}
	if c.FlushTimeout <= 0 {
		return fmt.Errorf("config: flush_timeout must be > 0, got %v", c.FlushTimeout)
	}
	return nil
}

// ConfigFromMap converts a generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["url"].(string); ok && v != "" {
		c.URL = v
	}
	if v, ok := m["subject"].(string); ok && v != "" {
		c.Subject = v
	}
	if v, ok := m["name"].(string); ok && v != "" {
		c.Name = v
	}
	switch v := m["flush_timeout"].(type) {
	case time.Duration:
		if v > 0 {
			c.FlushTimeout = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.FlushTimeout = d
		}
	}
	return c
}
