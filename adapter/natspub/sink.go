package natspub

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/trickstertwo/xsinger"
)

var _ xsinger.Sink = (*Sink)(nil)

// Sink publishes each protocol line as one NATS message. Flush waits for
// the server to acknowledge everything published so far.
type Sink struct {
	cfg  Config
	conn *nats.Conn

	mu      sync.Mutex
	pending bytes.Buffer

	published atomic.Uint64
	closeOnce sync.Once
}

// NewSink connects to cfg.URL with automatic reconnection.
func NewSink(cfg Config, opts ...nats.Option) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defaults := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(cfg.URL, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	return &Sink{cfg: cfg, conn: nc}, nil
}

// Write publishes every complete line in p; a partial trailing line waits
// for the rest of its bytes.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Write(p)
	for {
		i := bytes.IndexByte(s.pending.Bytes(), '\n')
		if i < 0 {
			return len(p), nil
		}
		// Publish copies the payload into the connection's buffer.
		if err := s.conn.Publish(s.cfg.Subject, s.pending.Bytes()[:i]); err != nil {
			return 0, fmt.Errorf("natspub: publish %s: %w", s.cfg.Subject, err)
		}
		s.pending.Next(i + 1)
		s.published.Add(1)
	}
}

func (s *Sink) Flush() error {
	if err := s.conn.FlushTimeout(s.cfg.FlushTimeout); err != nil {
		return fmt.Errorf("natspub: flush: %w", err)
	}
	return nil
}

// Close drains the connection so that in-flight messages reach the server.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Drain()
	})
	return err
}

// Published reports how many lines were published.
func (s *Sink) Published() uint64 { return s.published.Load() }

// Conn exposes the underlying connection.
func (s *Sink) Conn() *nats.Conn { return s.conn }
