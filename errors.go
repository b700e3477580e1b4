package xsinger

import (
	"errors"
	"fmt"
)

var (
	ErrWriterClosed = errors.New("xsinger: writer closed")
	ErrNoSink       = errors.New("xsinger: no sink configured")
)

// snippetLimit caps how much of a raw line is quoted back in error messages.
const snippetLimit = 256

func snippet(raw []byte) string {
	if len(raw) <= snippetLimit {
		return string(raw)
	}
	return string(raw[:snippetLimit]) + "..."
}

// ParseError reports a line that is not a single JSON object.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("xsinger: malformed message %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError reports a required key that is absent for the detected type.
type MissingFieldError struct {
	Type  MessageType
	Field string
	Raw   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("xsinger: %s message is missing required key %q: %s", e.Type, e.Field, e.Raw)
}

// ValidationError reports a field that is present but violates an invariant.
type ValidationError struct {
	Type   MessageType
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("xsinger: invalid %s", e.Field)
	if e.Type != "" {
		msg = fmt.Sprintf("xsinger: invalid %s on %s", e.Field, e.Type)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(t MessageType, field, reason string) *ValidationError {
	return &ValidationError{Type: t, Field: field, Reason: reason}
}

// EncodingError reports a payload value that has no JSON representation.
type EncodingError struct {
	Type  MessageType
	Path  string
	Value string
	Err   error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("xsinger: cannot encode %s", e.Path)
	if e.Type != "" {
		msg = fmt.Sprintf("xsinger: cannot encode %s of %s", e.Path, e.Type)
	}
	if e.Value != "" {
		msg += " (" + e.Value + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

// WriteError reports a failure of the output sink. It is never retried.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("xsinger: sink %s failed: %v", e.Op, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// UnrecognizedTypeError is returned by a strict Reader for an unknown message type.
type UnrecognizedTypeError struct {
	MessageType string
}

func (e *UnrecognizedTypeError) Error() string {
	return fmt.Sprintf("xsinger: unrecognized message type %q", e.MessageType)
}

// LineError annotates a reader failure with the 1-based line number.
type LineError struct {
	Line int64
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("xsinger: line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }
