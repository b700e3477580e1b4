package xsinger

import (
	"time"
)

// MessageType is the wire discriminator carried in every message's "type" key.
type MessageType string

const (
	TypeRecord          MessageType = "RECORD"
	TypeSchema          MessageType = "SCHEMA"
	TypeState           MessageType = "STATE"
	TypeActivateVersion MessageType = "ACTIVATE_VERSION"
	TypeBatch           MessageType = "BATCH"
)

// MessageTypes lists every known discriminator in wire-table order.
var MessageTypes = []MessageType{TypeRecord, TypeSchema, TypeState, TypeActivateVersion, TypeBatch}

const messageTypeCount = 5

// ParseMessageType maps a wire discriminator to a known MessageType.
func ParseMessageType(s string) (MessageType, bool) {
	switch t := MessageType(s); t {
	case TypeRecord, TypeSchema, TypeState, TypeActivateVersion, TypeBatch:
		return t, true
	}
	return "", false
}

func (t MessageType) String() string { return string(t) }

// index returns the position of t in MessageTypes, or -1.
func (t MessageType) index() int {
	for i, mt := range MessageTypes {
		if mt == t {
			return i
		}
	}
	return -1
}

// DefaultBatchFormat is the serialization assumed for BATCH files when none is given.
const DefaultBatchFormat = "jsonl"

// Field names on the wire.
const (
	fieldType               = "type"
	fieldStream             = "stream"
	fieldRecord             = "record"
	fieldVersion            = "version"
	fieldTimeExtracted      = "time_extracted"
	fieldSchema             = "schema"
	fieldKeyProperties      = "key_properties"
	fieldBookmarkProperties = "bookmark_properties"
	fieldValue              = "value"
	fieldFilepath           = "filepath"
	fieldFormat             = "format"
	fieldCompression        = "compression"
	fieldBatchSize          = "batch_size"
)

// Field is one entry of a message's canonical mapping.
// Absent optional fields are reported with Present == false and are never emitted.
type Field struct {
	Key     string
	Value   any
	Present bool
}

// EventType enumerates writer/reader lifecycle events for observers.
type EventType string

const (
	EventWriteDone    EventType = "write_done"
	EventWriteFailed  EventType = "write_failed"
	EventReadDone     EventType = "read_done"
	EventUnrecognized EventType = "unrecognized"
	EventReadFailed   EventType = "read_failed"
)

// Event carries telemetry for observers.
type Event struct {
	Type        EventType
	MessageType MessageType
	Stream      string
	Bytes       int
	Line        int64
	Duration    time.Duration
	Err         error
}

// Metrics is a snapshot of writer telemetry.
type Metrics struct {
	Written uint64
	Bytes   uint64
	Errors  uint64
	ByType  map[MessageType]uint64
}

// ReaderStats is a snapshot of reader telemetry.
type ReaderStats struct {
	Lines        uint64
	Unrecognized uint64
	ByType       map[MessageType]uint64
}
