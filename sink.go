package xsinger

import (
	"bufio"
	"io"
	"os"
)

var _ Sink = writerSink{}

// writerSink adapts an io.Writer without a Flush method to Sink.
type writerSink struct {
	io.Writer
}

func (writerSink) Flush() error { return nil }

// NewSink adapts w to Sink. A w that already has a Flush() error method
// (bufio.Writer, for instance) is used as is; otherwise Flush is a no-op.
// The returned sink never closes w.
func NewSink(w io.Writer) Sink {
	if s, ok := w.(Sink); ok {
		return s
	}
	return writerSink{Writer: w}
}

// StdoutSink returns a buffered sink over os.Stdout. Every Writer.Write
// flushes it, so the buffer only coalesces the bytes of a single line.
func StdoutSink() Sink {
	return bufio.NewWriter(os.Stdout)
}
