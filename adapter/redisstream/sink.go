package redisstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xsinger"
)

var _ xsinger.Sink = (*Sink)(nil)

// Sink appends protocol lines to a Redis stream. Write buffers bytes; Flush
// sends every complete line as one XADD, pipelined, and keeps any partial
// trailing line for the next Flush.
type Sink struct {
	cfg    Config
	client *redis.Client

	mu  sync.Mutex
	buf bytes.Buffer

	closeOnce sync.Once
	closed    atomic.Bool

	metrics sinkMetrics
}

// sinkMetrics tracks stream telemetry.
type sinkMetrics struct {
	published atomic.Uint64
	errors    atomic.Uint64
}

// Stats is a snapshot of sink telemetry.
type Stats struct {
	Published uint64
	Errors    uint64
}

// NewSink connects to Redis and returns a Sink for cfg.Stream.
func NewSink(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     4,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}
	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Sink{cfg: cfg, client: client}, nil
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, xsinger.ErrWriterClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Flush publishes every buffered complete line.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	lines := takeLines(&s.buf)
	if len(lines) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	for _, line := range lines {
		args := &redis.XAddArgs{
			Stream: s.cfg.Stream,
			ID:     "*",
			Values: map[string]any{s.cfg.Field: line},
		}
		// Approximate trimming keeps the stream bounded.
		if s.cfg.MaxLenApprox > 0 {
			args.MaxLen = s.cfg.MaxLenApprox
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.metrics.errors.Add(uint64(len(lines)))
		return fmt.Errorf("redisstream: xadd %s: %w", s.cfg.Stream, err)
	}
	s.metrics.published.Add(uint64(len(lines)))
	return nil
}

// Close flushes complete lines and releases the connection pool. A partial
// trailing line is discarded.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.mu.Lock()
		err = s.flushLocked()
		s.buf.Reset()
		s.mu.Unlock()
		if cerr := s.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// Stats returns current sink telemetry.
func (s *Sink) Stats() Stats {
	return Stats{Published: s.metrics.published.Load(), Errors: s.metrics.errors.Load()}
}

// Client exposes the underlying client, e.g. for XRANGE in tooling.
func (s *Sink) Client() *redis.Client { return s.client }

// takeLines removes every newline-terminated line from buf and returns them
// without their terminators.
func takeLines(buf *bytes.Buffer) []string {
	data := buf.Bytes()
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil
	}
	lines := strings.Split(string(data[:end]), "\n")
	buf.Next(end + 1)
	return lines
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
