package memory

import (
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsinger"
)

// Use builds a Writer over a new in-memory sink and sets it as the default.
// Mirrors redisstream.Use and xlog "Use" pattern: explicit construction with global install.
//
// Example:
//
//	w, sink := memory.Use(memory.Config{MaxLines: 1000}, memory.WithLogger(logger))
//	_ = xsinger.WriteState(map[string]any{"users": 42})
//	lines := sink.Lines()
//	_ = w.Close()
func Use(cfg Config, opts ...Option) (*xsinger.Writer, *Sink) {
	sink := NewSink(cfg)
	wb := xsinger.NewWriterBuilder().WithSink(sink)
	for _, o := range opts {
		if o != nil {
			o(wb)
		}
	}
	w, err := wb.Build()
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}

	// Install as process-wide default
	xsinger.SetDefault(w)
	return w, sink
}

// Option configures the xsinger.Writer when calling Use.
type Option func(*xsinger.WriterBuilder)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(b *xsinger.WriterBuilder) { b.WithLogger(l) }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(b *xsinger.WriterBuilder) { b.WithClock(c) }
}

// WithObserver attaches observers for write events.
func WithObserver(obs ...xsinger.Observer) Option {
	return func(b *xsinger.WriterBuilder) { b.WithObserver(obs...) }
}
