package xsinger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrHandlerPanic is wrapped by RecoveryMiddleware when a handler panics.
var ErrHandlerPanic = errors.New("xsinger: handler panic")

// RecoveryMiddleware converts handler panics into errors.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// StreamFilter drops messages that belong to streams other than the given
// ones. STATE has no stream and always passes.
func StreamFilter(streams ...string) Middleware {
	keep := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		keep[s] = struct{}{}
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			if s := streamOf(msg); s != "" {
				if _, ok := keep[s]; !ok {
					return nil
				}
			}
			return next(ctx, msg)
		}
	}
}

// TypeFilter passes only messages of the given types.
func TypeFilter(types ...MessageType) Middleware {
	var mask [messageTypeCount]bool
	for _, t := range types {
		if i := t.index(); i >= 0 {
			mask[i] = true
		}
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			if i := msg.Type().index(); i < 0 || !mask[i] {
				return nil
			}
			return next(ctx, msg)
		}
	}
}

// RetryConfig controls RetryMiddleware.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// Backoff returns the wait before attempt+1.
	Backoff func(attempt int) time.Duration
	// RetryIf reports whether err is worth another attempt. Nil retries everything.
	RetryIf func(err error) bool
	// Jitter adds up to Jitter of random delay to each wait.
	Jitter time.Duration
}

// RetryMiddleware retries a failing handler, typically one that loads into a
// flaky destination. Context cancellation stops it early.
func RetryMiddleware(cfg RetryConfig) Middleware {
	attempts := max(cfg.MaxAttempts, 1)
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = func(error) bool { return true }
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			var err error
			for i := 1; ; i++ {
				if err = next(ctx, msg); err == nil {
					return nil
				}
				if i >= attempts || ctx.Err() != nil || !retryIf(err) {
					return err
				}
				if cfg.Backoff == nil {
					continue
				}
				wait := cfg.Backoff(i)
				if cfg.Jitter > 0 {
					wait += rand.N(cfg.Jitter)
				}
				select {
				case <-ctx.Done():
					return err
				case <-time.After(wait):
				}
			}
		}
	}
}

// TimeoutMiddleware bounds the time a handler may take per message.
func TimeoutMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		return func(next Handler) Handler { return next }
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				errCh <- RecoveryMiddleware()(next)(tctx, msg)
			}()
			select {
			case <-tctx.Done():
				return tctx.Err()
			case err := <-errCh:
				return err
			}
		}
	}
}

// Chain composes middlewares around a handler; the first middleware is outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
