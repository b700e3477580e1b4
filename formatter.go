package xsinger

import (
	"errors"
)

// Format encodes m as one canonical JSON object. Fields go out in wire order,
// absent optionals are omitted, payload objects have sorted keys and
// timestamps are rendered in TimestampLayout. The output never contains a raw
// newline.
func Format(m Message) ([]byte, error) {
	e, err := encodeMessage(m)
	if err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// formatLine is Format followed by the line terminator.
func formatLine(m Message) ([]byte, error) {
	e, err := encodeMessage(m)
	if err != nil {
		return nil, err
	}
	e.buf.WriteByte('\n')
	return e.buf.Bytes(), nil
}

func encodeMessage(m Message) (*encoder, error) {
	if m == nil {
		return nil, &EncodingError{Path: "message", Err: errors.New("nil message")}
	}
	e := newEncoder()
	e.buf.WriteByte('{')
	for i, f := range present(m.Fields()) {
		v, err := normalizeAt(f.Key, f.Value)
		if err != nil {
			var ee *EncodingError
			if errors.As(err, &ee) {
				ee.Type = m.Type()
			}
			return nil, err
		}
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.string(f.Key)
		e.buf.WriteByte(':')
		e.value(v)
	}
	e.buf.WriteByte('}')
	return e, nil
}
