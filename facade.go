package xsinger

import (
	"fmt"
	"sync"
)

var (
	defaultWriter   *Writer
	defaultWriterMu sync.Mutex
)

// Default returns the process-wide Writer. Unless SetDefault was called it
// writes to StdoutSink.
func Default() *Writer {
	defaultWriterMu.Lock()
	defer defaultWriterMu.Unlock()

	if defaultWriter != nil {
		return defaultWriter
	}
	w, err := NewWriterBuilder().WithSink(StdoutSink()).Build()
	if err != nil {
		panic(fmt.Sprintf("xsinger: failed to initialize default writer: %v", err))
	}
	defaultWriter = w
	return defaultWriter
}

// SetDefault replaces the process-wide default Writer.
func SetDefault(w *Writer) {
	if w == nil {
		panic("xsinger: SetDefault called with nil Writer")
	}
	defaultWriterMu.Lock()
	defaultWriter = w
	defaultWriterMu.Unlock()
}

// WriteMessage writes m with the default writer.
func WriteMessage(m Message) error { return Default().Write(m) }

// WriteRecord writes a RECORD with the default writer.
func WriteRecord(stream string, record any, opts ...Option) error {
	return Default().WriteRecord(stream, record, opts...)
}

// WriteRecords writes one RECORD per element with the default writer.
func WriteRecords(stream string, records []any, opts ...Option) error {
	return Default().WriteRecords(stream, records, opts...)
}

// WriteSchema writes a SCHEMA with the default writer.
func WriteSchema(stream string, schema any, keyProperties []string, opts ...Option) error {
	return Default().WriteSchema(stream, schema, keyProperties, opts...)
}

// WriteState writes a STATE with the default writer.
func WriteState(value any) error { return Default().WriteState(value) }

// WriteVersion writes an ACTIVATE_VERSION with the default writer.
func WriteVersion(stream string, version int64) error {
	return Default().WriteVersion(stream, version)
}

// WriteBatch writes a BATCH with the default writer.
func WriteBatch(stream, filepath string, opts ...Option) error {
	return Default().WriteBatch(stream, filepath, opts...)
}
