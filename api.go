package xsinger

import (
	"context"
	"io"
	"time"
)

// Message is one of the five protocol variants: Record, Schema, State,
// ActivateVersion or Batch. The set is closed; dispatch with a type switch.
type Message interface {
	// Type returns the wire discriminator.
	Type() MessageType
	// Fields returns the canonical mapping in wire order, including absent optionals.
	Fields() []Field
	// AsMap returns the canonical mapping with absent optionals omitted.
	AsMap() map[string]any
	// Equal reports field-wise equality with another message.
	Equal(other Message) bool
	String() string

	sealed()
}

// Sink is the byte transport a Writer appends protocol lines to.
type Sink interface {
	io.Writer
	Flush() error
}

// Diagnostics receives non-fatal conditions, such as an unparseable time_extracted.
type Diagnostics interface {
	Warn(msg string, err error)
}

// Clock supplies the current time. xclock.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

// Observer receives writer/reader lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// Handler processes a single parsed message. Returning an error stops the Reader.
type Handler func(ctx context.Context, msg Message) error

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

var (
	_ Message = Record{}
	_ Message = Schema{}
	_ Message = State{}
	_ Message = ActivateVersion{}
	_ Message = Batch{}
)
