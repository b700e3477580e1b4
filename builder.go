package xsinger

import (
	"io"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// WriterBuilder constructs Writer instances (Builder pattern).
type WriterBuilder struct {
	sink      Sink
	logger    *xlog.Logger
	clock     Clock
	observers []Observer
}

// NewWriterBuilder returns a builder with no sink configured.
func NewWriterBuilder() *WriterBuilder {
	return &WriterBuilder{}
}

// WithSink sets the output transport (e.g. from an adapter's NewSink).
func (wb *WriterBuilder) WithSink(s Sink) *WriterBuilder {
	wb.sink = s
	return wb
}

// WithOutput adapts a plain io.Writer via NewSink.
func (wb *WriterBuilder) WithOutput(w io.Writer) *WriterBuilder {
	if w != nil {
		wb.sink = NewSink(w)
	}
	return wb
}

func (wb *WriterBuilder) WithLogger(l *xlog.Logger) *WriterBuilder {
	wb.logger = l
	return wb
}

func (wb *WriterBuilder) WithClock(c Clock) *WriterBuilder {
	wb.clock = c
	return wb
}

func (wb *WriterBuilder) WithObserver(obs ...Observer) *WriterBuilder {
	for _, o := range obs {
		if o != nil {
			wb.observers = append(wb.observers, o)
		}
	}
	return wb
}

func (wb *WriterBuilder) Build() (*Writer, error) {
	if wb.sink == nil {
		return nil, ErrNoSink
	}

	var clk Clock
	if wb.clock != nil {
		clk = wb.clock
	} else {
		clk = xclock.Default()
	}
	var lg *xlog.Logger
	if wb.logger != nil {
		lg = wb.logger
	} else {
		lg = xlog.Default()
	}
	w := &Writer{
		sink:   wb.sink,
		clock:  clk,
		logger: lg,
	}

	// Attach logging observer first unless one was supplied.
	hasLoggingObserver := false
	for _, o := range wb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver && lg != nil {
		w.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range wb.observers {
		w.AddObserver(o)
	}
	return w, nil
}

// New constructs a Writer via Builder and returns a close func for convenience.
func New(init func(b *WriterBuilder)) (*Writer, func() error, error) {
	b := NewWriterBuilder()
	if init != nil {
		init(b)
	}
	w, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return w, w.Close, nil
}
