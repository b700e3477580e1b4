package xsinger

import (
	"fmt"
	"slices"
	"time"
)

// Option sets an optional field at construction time. Each option applies to
// a fixed set of message types; passing it to any other constructor fails.
type Option struct {
	field string
	apply func(*optionals) error
}

type optionals struct {
	alias         string
	version       *int64
	timeExtracted *time.Time
	bookmarks     []string
	format        string
	compression   *string
	batchSize     *int64
}

// WithVersion sets the stream version of a RECORD.
func WithVersion(v int64) Option {
	return Option{field: fieldVersion, apply: func(o *optionals) error {
		o.version = &v
		return nil
	}}
}

// WithTimeExtracted sets time_extracted on a RECORD or BATCH. The zero time
// means absent. Instants outside years 1..9999 UTC are rejected.
func WithTimeExtracted(t time.Time) Option {
	return Option{field: fieldTimeExtracted, apply: func(o *optionals) error {
		if t.IsZero() {
			o.timeExtracted = nil
			return nil
		}
		return setTimeExtracted(o, t)
	}}
}

// withTimeExtractedPresent sets time_extracted even for the zero time. The
// parser uses it so that a timestamp sent on the wire is never dropped.
func withTimeExtractedPresent(t time.Time) Option {
	return Option{field: fieldTimeExtracted, apply: func(o *optionals) error {
		return setTimeExtracted(o, t)
	}}
}

func setTimeExtracted(o *optionals, t time.Time) error {
	if y := t.UTC().Year(); y < minTimestampYear || y > maxTimestampYear {
		return &ValidationError{Field: fieldTimeExtracted, Reason: fmt.Sprintf("year %d outside %d..%d", y, minTimestampYear, maxTimestampYear)}
	}
	o.timeExtracted = &t
	return nil
}

// WithTimeExtractedText parses s as an offset-aware timestamp and sets
// time_extracted. A naive timestamp is rejected. The empty string means absent.
func WithTimeExtractedText(s string) Option {
	return Option{field: fieldTimeExtracted, apply: func(o *optionals) error {
		if s == "" {
			o.timeExtracted = nil
			return nil
		}
		t, err := ParseTimestamp(s)
		if err != nil {
			return &ValidationError{Field: fieldTimeExtracted, Reason: "must be an aware timestamp", Err: err}
		}
		return setTimeExtracted(o, t)
	}}
}

// WithBookmarkProperties sets bookmark_properties on a SCHEMA. It accepts a
// single string, which becomes a one-element list, or a list of strings.
func WithBookmarkProperties(v any) Option {
	return Option{field: fieldBookmarkProperties, apply: func(o *optionals) error {
		props, err := bookmarkList(v)
		if err != nil {
			return err
		}
		o.bookmarks = props
		return nil
	}}
}

// WithFormat sets the serialization format of a BATCH file. Empty means DefaultBatchFormat.
func WithFormat(format string) Option {
	return Option{field: fieldFormat, apply: func(o *optionals) error {
		o.format = format
		return nil
	}}
}

// WithCompression sets the compression of a BATCH file, e.g. "gzip". Empty means absent.
func WithCompression(compression string) Option {
	return Option{field: fieldCompression, apply: func(o *optionals) error {
		if compression == "" {
			o.compression = nil
			return nil
		}
		o.compression = &compression
		return nil
	}}
}

// withCompressionPresent keeps compression present even when empty, as sent on the wire.
func withCompressionPresent(compression string) Option {
	return Option{field: fieldCompression, apply: func(o *optionals) error {
		o.compression = &compression
		return nil
	}}
}

// WithBatchSize sets the number of records in a BATCH file.
func WithBatchSize(n int64) Option {
	return Option{field: fieldBatchSize, apply: func(o *optionals) error {
		if n < 0 {
			return &ValidationError{Field: fieldBatchSize, Reason: "must not be negative"}
		}
		o.batchSize = &n
		return nil
	}}
}

// WithStreamAlias replaces the stream name of a RECORD or SCHEMA when alias is non-empty.
func WithStreamAlias(alias string) Option {
	return Option{field: "stream_alias", apply: func(o *optionals) error {
		o.alias = alias
		return nil
	}}
}

func applyOptions(t MessageType, allowed []string, opts []Option) (optionals, error) {
	var o optionals
	for _, opt := range opts {
		if opt.apply == nil {
			continue
		}
		if !slices.Contains(allowed, opt.field) {
			return o, invalid(t, opt.field, "option does not apply to this message type")
		}
		if err := opt.apply(&o); err != nil {
			if ve, ok := err.(*ValidationError); ok && ve.Type == "" {
				ve.Type = t
			}
			return o, err
		}
	}
	return o, nil
}

// bookmarkList normalises a bookmark_properties value. Empty lists mean absent.
func bookmarkList(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{x}, nil
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
		return slices.Clone(x), nil
	case []any:
		props, err := stringList(fieldBookmarkProperties, x)
		if err != nil || len(props) == 0 {
			return nil, err
		}
		return props, nil
	}
	return nil, &ValidationError{Field: fieldBookmarkProperties, Reason: "must be a string or list of strings"}
}

// stringList converts a decoded JSON array into a list of strings.
func stringList(field string, items []any) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, &ValidationError{Field: field, Reason: "must be a list of strings"}
		}
		out = append(out, s)
	}
	return out, nil
}
