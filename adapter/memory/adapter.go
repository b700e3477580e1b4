package memory

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xsinger"
)

var _ xsinger.Sink = (*Sink)(nil)

// Config controls memory sink behavior.
type Config struct {
	// MaxLines bounds how many flushed lines are retained; older lines are
	// dropped first. Zero keeps everything.
	MaxLines int
}

// ConfigFromMap converts a generic map to Config.
func ConfigFromMap(cfg map[string]any) Config {
	switch v := cfg["max_lines"].(type) {
	case int:
		return Config{MaxLines: max(0, v)}
	case int64:
		return Config{MaxLines: max(0, int(v))}
	}
	return Config{}
}

// Sink keeps protocol lines in memory. Lines become visible on Flush, the
// same point at which a pipe reader would see them.
type Sink struct {
	cfg Config

	mu      sync.Mutex
	pending bytes.Buffer
	lines   []string
	dropped int

	flushes atomic.Uint64
}

// NewSink returns an empty in-memory sink.
func NewSink(cfg Config) *Sink {
	return &Sink{cfg: cfg}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Write(p)
}

func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		line, err := s.pending.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next flush.
			s.pending.Reset()
			s.pending.WriteString(line)
			break
		}
		s.lines = append(s.lines, line[:len(line)-1])
	}
	if s.cfg.MaxLines > 0 && len(s.lines) > s.cfg.MaxLines {
		n := len(s.lines) - s.cfg.MaxLines
		s.dropped += n
		s.lines = append(s.lines[:0], s.lines[n:]...)
	}
	s.flushes.Add(1)
	return nil
}

// Lines returns a copy of every flushed line without its terminator.
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Messages parses every flushed line. Unrecognized types are skipped.
func (s *Sink) Messages() ([]xsinger.Message, error) {
	p := xsinger.NewParser(xsinger.WithDiagnostics(xsinger.DiagnosticsFunc(func(string, error) {})))
	var out []xsinger.Message
	for _, line := range s.Lines() {
		m, ok, err := p.Parse([]byte(line))
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Flushes reports how many times Flush was called.
func (s *Sink) Flushes() uint64 { return s.flushes.Load() }

// Dropped reports how many lines were evicted by MaxLines.
func (s *Sink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Reset discards all retained and pending lines.
func (s *Sink) Reset() {
	s.mu.Lock()
	s.pending.Reset()
	s.lines = nil
	s.dropped = 0
	s.mu.Unlock()
}
