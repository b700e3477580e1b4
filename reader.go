package xsinger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/trickstertwo/xlog"
)

// Reader consumes a newline-delimited protocol stream, the target side of
// the pipe.
type Reader struct {
	parser      *Parser
	logger      *xlog.Logger
	diag        Diagnostics
	middlewares []Middleware
	observers   observers
	strict      bool

	lines        atomic.Uint64
	unrecognized atomic.Uint64
	byType       [messageTypeCount]atomic.Uint64
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger used for reader diagnostics.
func WithReaderLogger(l *xlog.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// WithReaderDiagnostics routes parser warnings to d instead of the logger.
func WithReaderDiagnostics(d Diagnostics) ReaderOption {
	return func(r *Reader) { r.diag = d }
}

// WithMiddleware wraps the handler passed to Consume.
func WithMiddleware(mw ...Middleware) ReaderOption {
	return func(r *Reader) { r.middlewares = append(r.middlewares, mw...) }
}

// WithStrictTypes makes an unrecognized message type a fatal
// *UnrecognizedTypeError instead of a skipped line.
func WithStrictTypes(strict bool) ReaderOption {
	return func(r *Reader) { r.strict = strict }
}

// WithReaderObserver registers observers for read events.
func WithReaderObserver(obs ...Observer) ReaderOption {
	return func(r *Reader) { r.observers = append(r.observers, obs...) }
}

// NewReader returns a Reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	if r.logger == nil {
		r.logger = xlog.Default()
	}
	if r.diag == nil {
		r.diag = LogDiagnostics{Logger: r.logger}
	}
	r.parser = NewParser(WithDiagnostics(r.diag))
	return r
}

// Consume reads src line by line and hands every recognized message to h.
// It returns nil at end of input, the context error when ctx is done, or
// the first parse or handler error wrapped in a *LineError.
func (r *Reader) Consume(ctx context.Context, src io.Reader, h Handler) error {
	if h == nil {
		return errors.New("xsinger: nil handler")
	}
	wh := Chain(RecoveryMiddleware()(h), r.middlewares...)
	br := bufio.NewReader(src)

	var n int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return &LineError{Line: n + 1, Err: readErr}
		}
		if len(line) == 0 && readErr == io.EOF {
			return nil
		}
		n++
		r.lines.Add(1)
		line = bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))

		if err := r.handle(ctx, n, line, wh); err != nil {
			return &LineError{Line: n, Err: err}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

func (r *Reader) handle(ctx context.Context, n int64, line []byte, h Handler) error {
	msg, unknown, err := r.parser.parse(line)
	if err != nil {
		r.observers.notify(Event{Type: EventReadFailed, Line: n, Err: err})
		return err
	}
	if msg == nil {
		r.unrecognized.Add(1)
		r.observers.notify(Event{Type: EventUnrecognized, MessageType: MessageType(unknown), Line: n})
		if r.strict {
			return &UnrecognizedTypeError{MessageType: unknown}
		}
		r.logger.Debug().Str("type", unknown).Msg("xsinger: skipping unrecognized message")
		return nil
	}
	if i := msg.Type().index(); i >= 0 {
		r.byType[i].Add(1)
	}
	ctx = injectLine(injectLogger(ctx, r.logger), n)
	if err := h(ctx, msg); err != nil {
		r.observers.notify(Event{Type: EventReadFailed, MessageType: msg.Type(), Stream: streamOf(msg), Line: n, Err: err})
		return err
	}
	r.observers.notify(Event{Type: EventReadDone, MessageType: msg.Type(), Stream: streamOf(msg), Line: n, Bytes: len(line)})
	return nil
}

// Stats returns counters accumulated over every Consume call.
func (r *Reader) Stats() ReaderStats {
	s := ReaderStats{
		Lines:        r.lines.Load(),
		Unrecognized: r.unrecognized.Load(),
		ByType:       make(map[MessageType]uint64, len(MessageTypes)),
	}
	for i, t := range MessageTypes {
		if v := r.byType[i].Load(); v > 0 {
			s.ByType[t] = v
		}
	}
	return s
}
