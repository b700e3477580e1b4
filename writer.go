package xsinger

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xlog"
)

// Writer appends protocol messages to a Sink, one line per message, flushing
// after every line. It is safe for concurrent use; lines from concurrent
// writers are never interleaved.
type Writer struct {
	sink   Sink
	clock  Clock
	logger *xlog.Logger

	mu     sync.Mutex
	err    error
	closed bool

	observersMu sync.RWMutex
	observers   observers

	metrics   writerMetrics
	closeOnce sync.Once
}

// writerMetrics uses lock-free atomics so GetMetrics never contends with writes.
type writerMetrics struct {
	written atomic.Uint64
	bytes   atomic.Uint64
	errors  atomic.Uint64
	byType  [messageTypeCount]atomic.Uint64
}

// Write formats m and appends it to the sink as a single line, then flushes.
// Encoding failures leave the sink untouched. A sink failure is returned as a
// *WriteError and every later Write returns the same error.
func (w *Writer) Write(m Message) error {
	line, err := formatLine(m)
	if err != nil {
		w.metrics.errors.Add(1)
		w.notify(Event{Type: EventWriteFailed, MessageType: typeOf(m), Stream: streamOf(m), Err: err})
		return err
	}

	start := w.clock.Now()
	w.mu.Lock()
	err = w.appendLocked(line)
	w.mu.Unlock()
	duration := w.clock.Now().Sub(start)

	if err != nil {
		w.metrics.errors.Add(1)
		w.notify(Event{Type: EventWriteFailed, MessageType: m.Type(), Stream: streamOf(m), Duration: duration, Err: err})
		return err
	}
	w.metrics.written.Add(1)
	w.metrics.bytes.Add(uint64(len(line)))
	if i := m.Type().index(); i >= 0 {
		w.metrics.byType[i].Add(1)
	}
	w.notify(Event{Type: EventWriteDone, MessageType: m.Type(), Stream: streamOf(m), Bytes: len(line), Duration: duration})
	return nil
}

func (w *Writer) appendLocked(line []byte) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.err != nil {
		return w.err
	}
	n, err := w.sink.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		w.err = &WriteError{Op: "write", Err: err}
		return w.err
	}
	if err := w.sink.Flush(); err != nil {
		w.err = &WriteError{Op: "flush", Err: err}
		return w.err
	}
	return nil
}

// WriteMessage is an alias of Write.
func (w *Writer) WriteMessage(m Message) error { return w.Write(m) }

// WriteRecord writes a RECORD for stream.
func (w *Writer) WriteRecord(stream string, record any, opts ...Option) error {
	m, err := NewRecord(stream, record, opts...)
	if err != nil {
		return err
	}
	return w.Write(m)
}

// WriteRecords writes one RECORD per element of records, stopping at the first error.
func (w *Writer) WriteRecords(stream string, records []any, opts ...Option) error {
	for _, r := range records {
		if err := w.WriteRecord(stream, r, opts...); err != nil {
			return err
		}
	}
	return nil
}

// WriteSchema writes a SCHEMA for stream.
func (w *Writer) WriteSchema(stream string, schema any, keyProperties []string, opts ...Option) error {
	m, err := NewSchema(stream, schema, keyProperties, opts...)
	if err != nil {
		return err
	}
	return w.Write(m)
}

// WriteState writes a STATE carrying value.
func (w *Writer) WriteState(value any) error {
	m, err := NewState(value)
	if err != nil {
		return err
	}
	return w.Write(m)
}

// WriteVersion writes an ACTIVATE_VERSION for stream.
func (w *Writer) WriteVersion(stream string, version int64) error {
	m, err := NewActivateVersion(stream, version)
	if err != nil {
		return err
	}
	return w.Write(m)
}

// WriteBatch writes a BATCH pointing at filepath.
func (w *Writer) WriteBatch(stream, filepath string, opts ...Option) error {
	m, err := NewBatch(stream, filepath, opts...)
	if err != nil {
		return err
	}
	return w.Write(m)
}

// NewVersion returns the current time in unix milliseconds, the customary
// value for ACTIVATE_VERSION and RECORD versions.
func (w *Writer) NewVersion() int64 { return w.clock.Now().UnixMilli() }

// Err returns the sticky sink error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// GetMetrics returns current writer metrics.
func (w *Writer) GetMetrics() Metrics {
	m := Metrics{
		Written: w.metrics.written.Load(),
		Bytes:   w.metrics.bytes.Load(),
		Errors:  w.metrics.errors.Load(),
		ByType:  make(map[MessageType]uint64, len(MessageTypes)),
	}
	for i, t := range MessageTypes {
		if n := w.metrics.byType[i].Load(); n > 0 {
			m.ByType[t] = n
		}
	}
	return m
}

// Close flushes the sink and closes it when it implements io.Closer. Further
// writes fail with ErrWriterClosed. Close is idempotent.
func (w *Writer) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.closed = true
		if w.err == nil {
			if err := w.sink.Flush(); err != nil {
				closeErr = &WriteError{Op: "flush", Err: err}
				w.logger.Warn().Err(err).Msg("xsinger: final flush failed")
			}
		}
		if c, ok := w.sink.(io.Closer); ok {
			if err := c.Close(); err != nil && closeErr == nil {
				closeErr = &WriteError{Op: "close", Err: err}
				w.logger.Error().Err(err).Msg("xsinger: sink close failed")
			}
		}
	})
	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (w *Writer) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	w.observersMu.Lock()
	w.observers = append(w.observers, obs)
	w.observersMu.Unlock()
}

func (w *Writer) notify(e Event) {
	w.observersMu.RLock()
	obs := make(observers, len(w.observers))
	copy(obs, w.observers)
	w.observersMu.RUnlock()
	obs.notify(e)
}

func typeOf(m Message) MessageType {
	if m == nil {
		return ""
	}
	return m.Type()
}

// streamOf returns the stream a message belongs to; STATE has none.
func streamOf(m Message) string {
	switch v := m.(type) {
	case Record:
		return v.Stream()
	case Schema:
		return v.Stream()
	case ActivateVersion:
		return v.Stream()
	case Batch:
		return v.Stream()
	case State, nil:
		return ""
	}
	return ""
}
