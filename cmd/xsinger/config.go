package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Sink names accepted by the "sink" key and the --sink flag.
const (
	sinkStdout = "stdout"
	sinkRedis  = "redis"
	sinkNATS   = "nats"
)

// fileConfig is the TOML layout of the config file:
//
//	log_level = "info"
//	sink = "redis"
//	strict = false
//
//	[redis]
//	addr = "localhost:6379"
//	stream = "singer"
//
//	[nats]
//	url = "nats://localhost:4222"
//	subject = "singer.messages"
type fileConfig struct {
	LogLevel string         `toml:"log_level"`
	Console  bool           `toml:"console"`
	Sink     string         `toml:"sink"`
	Strict   bool           `toml:"strict"`
	Redis    map[string]any `toml:"redis"`
	NATS     map[string]any `toml:"nats"`
}

func defaultConfig() fileConfig {
	return fileConfig{LogLevel: "info", Sink: sinkStdout}
}

// loadConfig reads path on top of the defaults. An empty path yields the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return cfg, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("console") {
		cfg.Console = raw.Console
	}
	if meta.IsDefined("sink") {
		cfg.Sink = strings.ToLower(strings.TrimSpace(raw.Sink))
	}
	if meta.IsDefined("strict") {
		cfg.Strict = raw.Strict
	}
	cfg.Redis = raw.Redis
	cfg.NATS = raw.NATS
	return cfg, cfg.validate()
}

func (c fileConfig) validate() error {
	switch c.Sink {
	case sinkStdout, sinkRedis, sinkNATS:
	default:
		return fmt.Errorf("config: sink must be one of stdout, redis, nats; got %q", c.Sink)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
