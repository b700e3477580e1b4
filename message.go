package xsinger

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Record carries one row of a stream.
type Record struct {
	stream        string
	record        any
	version       int64
	hasVersion    bool
	timeExtracted time.Time
	hasTime       bool
}

// NewRecord builds a RECORD message. Accepts WithVersion, WithTimeExtracted,
// WithTimeExtractedText and WithStreamAlias.
func NewRecord(stream string, record any, opts ...Option) (Record, error) {
	o, err := applyOptions(TypeRecord, []string{fieldVersion, fieldTimeExtracted, "stream_alias"}, opts)
	if err != nil {
		return Record{}, err
	}
	if o.alias != "" {
		stream = o.alias
	}
	if stream == "" {
		return Record{}, invalid(TypeRecord, fieldStream, "must not be empty")
	}
	r := Record{stream: stream, record: record}
	if o.version != nil {
		r.version, r.hasVersion = *o.version, true
	}
	if o.timeExtracted != nil {
		r.timeExtracted, r.hasTime = *o.timeExtracted, true
	}
	return r, nil
}

func (Record) sealed()                            {}
func (Record) Type() MessageType                  { return TypeRecord }
func (r Record) Stream() string                   { return r.stream }
func (r Record) Record() any                      { return r.record }
func (r Record) Version() (int64, bool)           { return r.version, r.hasVersion }
func (r Record) TimeExtracted() (time.Time, bool) { return r.timeExtracted, r.hasTime }
func (r Record) AsMap() map[string]any            { return canonicalMap(r.Fields()) }
func (r Record) String() string                   { return describe(r) }

func (r Record) Fields() []Field {
	return []Field{
		{Key: fieldType, Value: string(TypeRecord), Present: true},
		{Key: fieldStream, Value: r.stream, Present: true},
		{Key: fieldRecord, Value: r.record, Present: true},
		{Key: fieldVersion, Value: r.version, Present: r.hasVersion},
		{Key: fieldTimeExtracted, Value: timestampValue(r.timeExtracted, r.hasTime), Present: r.hasTime},
	}
}

func (r Record) Equal(other Message) bool {
	o, ok := other.(Record)
	return ok &&
		r.stream == o.stream &&
		r.hasVersion == o.hasVersion && r.version == o.version &&
		timesEqual(r.timeExtracted, r.hasTime, o.timeExtracted, o.hasTime) &&
		valuesEqual(r.record, o.record)
}

// Schema declares the JSON schema and key properties of a stream.
type Schema struct {
	stream        string
	schema        any
	keyProperties []string
	bookmarks     []string
}

// NewSchema builds a SCHEMA message. Accepts WithBookmarkProperties and WithStreamAlias.
func NewSchema(stream string, schema any, keyProperties []string, opts ...Option) (Schema, error) {
	o, err := applyOptions(TypeSchema, []string{fieldBookmarkProperties, "stream_alias"}, opts)
	if err != nil {
		return Schema{}, err
	}
	if o.alias != "" {
		stream = o.alias
	}
	if stream == "" {
		return Schema{}, invalid(TypeSchema, fieldStream, "must not be empty")
	}
	keys := slices.Clone(keyProperties)
	if keys == nil {
		keys = []string{}
	}
	return Schema{stream: stream, schema: schema, keyProperties: keys, bookmarks: o.bookmarks}, nil
}

func (Schema) sealed()                   {}
func (Schema) Type() MessageType         { return TypeSchema }
func (s Schema) Stream() string          { return s.stream }
func (s Schema) Schema() any             { return s.schema }
func (s Schema) KeyProperties() []string { return slices.Clone(s.keyProperties) }
func (s Schema) AsMap() map[string]any   { return canonicalMap(s.Fields()) }
func (s Schema) String() string          { return describe(s) }

func (s Schema) BookmarkProperties() ([]string, bool) {
	return slices.Clone(s.bookmarks), len(s.bookmarks) > 0
}

func (s Schema) Fields() []Field {
	return []Field{
		{Key: fieldType, Value: string(TypeSchema), Present: true},
		{Key: fieldStream, Value: s.stream, Present: true},
		{Key: fieldSchema, Value: s.schema, Present: true},
		{Key: fieldKeyProperties, Value: s.keyProperties, Present: true},
		{Key: fieldBookmarkProperties, Value: s.bookmarks, Present: len(s.bookmarks) > 0},
	}
}

func (s Schema) Equal(other Message) bool {
	o, ok := other.(Schema)
	return ok &&
		s.stream == o.stream &&
		slices.Equal(s.keyProperties, o.keyProperties) &&
		slices.Equal(s.bookmarks, o.bookmarks) &&
		valuesEqual(s.schema, o.schema)
}

// State carries an opaque checkpoint value.
type State struct {
	value any
}

// NewState builds a STATE message.
func NewState(value any) (State, error) {
	return State{value: value}, nil
}

func (State) sealed()                 {}
func (State) Type() MessageType       { return TypeState }
func (s State) Value() any            { return s.value }
func (s State) AsMap() map[string]any { return canonicalMap(s.Fields()) }
func (s State) String() string        { return describe(s) }

func (s State) Fields() []Field {
	return []Field{
		{Key: fieldType, Value: string(TypeState), Present: true},
		{Key: fieldValue, Value: s.value, Present: true},
	}
}

func (s State) Equal(other Message) bool {
	o, ok := other.(State)
	return ok && valuesEqual(s.value, o.value)
}

// ActivateVersion tells the target to keep only records of the given stream version.
type ActivateVersion struct {
	stream  string
	version int64
}

// NewActivateVersion builds an ACTIVATE_VERSION message.
func NewActivateVersion(stream string, version int64) (ActivateVersion, error) {
	if stream == "" {
		return ActivateVersion{}, invalid(TypeActivateVersion, fieldStream, "must not be empty")
	}
	return ActivateVersion{stream: stream, version: version}, nil
}

func (ActivateVersion) sealed()                 {}
func (ActivateVersion) Type() MessageType       { return TypeActivateVersion }
func (a ActivateVersion) Stream() string        { return a.stream }
func (a ActivateVersion) Version() int64        { return a.version }
func (a ActivateVersion) AsMap() map[string]any { return canonicalMap(a.Fields()) }
func (a ActivateVersion) String() string        { return describe(a) }

func (a ActivateVersion) Fields() []Field {
	return []Field{
		{Key: fieldType, Value: string(TypeActivateVersion), Present: true},
		{Key: fieldStream, Value: a.stream, Present: true},
		{Key: fieldVersion, Value: a.version, Present: true},
	}
}

func (a ActivateVersion) Equal(other Message) bool {
	o, ok := other.(ActivateVersion)
	return ok && a == o
}

// Batch points at an externally stored file of records for one stream.
type Batch struct {
	stream         string
	filepath       string
	format         string
	compression    string
	hasCompression bool
	batchSize      int64
	hasBatchSize   bool
	timeExtracted  time.Time
	hasTime        bool
}

// NewBatch builds a BATCH message. Accepts WithFormat, WithCompression,
// WithBatchSize, WithTimeExtracted and WithTimeExtractedText.
func NewBatch(stream, filepath string, opts ...Option) (Batch, error) {
	o, err := applyOptions(TypeBatch, []string{fieldFormat, fieldCompression, fieldBatchSize, fieldTimeExtracted}, opts)
	if err != nil {
		return Batch{}, err
	}
	if stream == "" {
		return Batch{}, invalid(TypeBatch, fieldStream, "must not be empty")
	}
	if filepath == "" {
		return Batch{}, invalid(TypeBatch, fieldFilepath, "must not be empty")
	}
	b := Batch{stream: stream, filepath: filepath, format: o.format}
	if b.format == "" {
		b.format = DefaultBatchFormat
	}
	if o.compression != nil {
		b.compression, b.hasCompression = *o.compression, true
	}
	if o.batchSize != nil {
		b.batchSize, b.hasBatchSize = *o.batchSize, true
	}
	if o.timeExtracted != nil {
		b.timeExtracted, b.hasTime = *o.timeExtracted, true
	}
	return b, nil
}

func (Batch) sealed()                            {}
func (Batch) Type() MessageType                  { return TypeBatch }
func (b Batch) Stream() string                   { return b.stream }
func (b Batch) Filepath() string                 { return b.filepath }
func (b Batch) Format() string                   { return b.format }
func (b Batch) Compression() (string, bool)      { return b.compression, b.hasCompression }
func (b Batch) BatchSize() (int64, bool)         { return b.batchSize, b.hasBatchSize }
func (b Batch) TimeExtracted() (time.Time, bool) { return b.timeExtracted, b.hasTime }
func (b Batch) AsMap() map[string]any            { return canonicalMap(b.Fields()) }
func (b Batch) String() string                   { return describe(b) }

func (b Batch) Fields() []Field {
	return []Field{
		{Key: fieldType, Value: string(TypeBatch), Present: true},
		{Key: fieldStream, Value: b.stream, Present: true},
		{Key: fieldFilepath, Value: b.filepath, Present: true},
		{Key: fieldFormat, Value: b.format, Present: true},
		{Key: fieldCompression, Value: b.compression, Present: b.hasCompression},
		{Key: fieldBatchSize, Value: b.batchSize, Present: b.hasBatchSize},
		{Key: fieldTimeExtracted, Value: timestampValue(b.timeExtracted, b.hasTime), Present: b.hasTime},
	}
}

func (b Batch) Equal(other Message) bool {
	o, ok := other.(Batch)
	return ok &&
		b.stream == o.stream &&
		b.filepath == o.filepath &&
		b.format == o.format &&
		b.hasCompression == o.hasCompression && b.compression == o.compression &&
		b.hasBatchSize == o.hasBatchSize && b.batchSize == o.batchSize &&
		timesEqual(b.timeExtracted, b.hasTime, o.timeExtracted, o.hasTime)
}

// Equal reports whether a and b are the same message. Two nil messages are equal.
func Equal(a, b Message) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func timesEqual(a time.Time, hasA bool, b time.Time, hasB bool) bool {
	if hasA != hasB {
		return false
	}
	return !hasA || sameInstant(a, b)
}

func timestampValue(t time.Time, ok bool) any {
	if !ok {
		return nil
	}
	return FormatTimestamp(t)
}

// present filters a canonical mapping down to the fields that go on the wire.
func present(fields []Field) []Field {
	out := fields[:0:0]
	for _, f := range fields {
		if f.Present {
			out = append(out, f)
		}
	}
	return out
}

func canonicalMap(fields []Field) map[string]any {
	fields = present(fields)
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

func describe(m Message) string {
	fields := present(m.Fields())
	var sb strings.Builder
	sb.WriteString(string(m.Type()))
	sb.WriteByte('{')
	n := 0
	for _, f := range fields {
		if f.Key == fieldType {
			continue
		}
		if n > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", f.Key, f.Value)
		n++
	}
	sb.WriteByte('}')
	return sb.String()
}
