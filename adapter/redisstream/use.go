package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xsinger"
)

// New builds a Writer that appends to the Redis stream described by cfg.
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

// Use builds a Writer on Redis Streams and installs it as the default Writer.
// Mirrors xlog/xclock "Use" behavior: explicit construction and global install.
// It panics when Redis is unreachable.
func Use(cfg Config, opts ...Option) *xsinger.Writer {
	w, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}
	xsinger.SetDefault(w)
	return w
}
