package xsinger

import (
	"context"

	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xsinger.
type ctxKey string

const (
	loggerCtxKey ctxKey = "xsinger:logger"
	lineCtxKey   ctxKey = "xsinger:line"
)

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

// LoggerFromContext returns the logger of the Reader that is calling the handler.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectLine(ctx context.Context, n int64) context.Context {
	return context.WithValue(ctx, lineCtxKey, n)
}

// LineFromContext returns the 1-based input line of the message being handled.
func LineFromContext(ctx context.Context) (int64, bool) {
	n, ok := ctx.Value(lineCtxKey).(int64)
	return n, ok
}
