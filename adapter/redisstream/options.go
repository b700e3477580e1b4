package redisstream

import (
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
