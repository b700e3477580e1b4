// Package natspub provides a NATS sink for xsinger: one NATS message per
// protocol line on a fixed subject.
package natspub

import (
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsinger"
)

// Option configures the xsinger.Writer construction when calling Use.
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

// New builds a Writer that publishes to cfg.Subject.
func New(cfg Config, opts ...Option) (*xsinger.Writer, error) {
	sink, err := NewSink(cfg)
	if err != nil {
		return nil, err
	}
	wb := xsinger.NewWriterBuilder().WithSink(sink)
	for _, o := range opts {
		if o != nil {
			o(wb)
		}
	}
	w, err := wb.Build()
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return w, nil
}

// Use builds a Writer on NATS and installs it as the default Writer.
func Use(cfg Config, opts ...Option) *xsinger.Writer {
	w, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Errorf("natspub.Use: %w", err))
	}
	xsinger.SetDefault(w)
	return w
}
