package xsinger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Parser converts protocol lines into messages. It is safe for concurrent use.
type Parser struct {
	diag           Diagnostics
	onUnrecognized func(typ string, line []byte)
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithDiagnostics routes non-fatal parse warnings to d.
func WithDiagnostics(d Diagnostics) ParserOption {
	return func(p *Parser) {
		if d != nil {
			p.diag = d
		}
	}
}

// WithUnrecognizedHook is called with the type and raw line of every message
// whose type is not known to this package.
func WithUnrecognizedHook(fn func(typ string, line []byte)) ParserOption {
	return func(p *Parser) { p.onUnrecognized = fn }
}

// NewParser returns a Parser. Warnings go to the default xlog logger unless
// WithDiagnostics is given.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	if p.diag == nil {
		p.diag = defaultDiagnostics()
	}
	return p
}

// ParseMessage parses one line with a default Parser.
func ParseMessage(line []byte) (Message, bool, error) {
	return NewParser().Parse(line)
}

// Parse decodes one protocol line.
//
// A line whose "type" is a string unknown to this package yields
// (nil, false, nil) so that newer protocol extensions pass through. Malformed
// JSON, a missing or non-string "type", missing required keys and invalid
// field values are errors.
func (p *Parser) Parse(line []byte) (Message, bool, error) {
	msg, unknown, err := p.parse(line)
	if err != nil {
		return nil, false, err
	}
	if msg == nil {
		if p.onUnrecognized != nil {
			p.onUnrecognized(unknown, line)
		}
		return nil, false, nil
	}
	return msg, true, nil
}

// parse returns either a message, or the name of an unrecognized type.
func (p *Parser) parse(line []byte) (Message, string, error) {
	obj, err := decodeObject(line)
	if err != nil {
		return nil, "", err
	}
	rawType, ok := obj[fieldType]
	if !ok {
		return nil, "", &MissingFieldError{Field: fieldType, Raw: snippet(line)}
	}
	name, ok := rawType.(string)
	if !ok || name == "" {
		return nil, "", &ValidationError{Field: fieldType, Reason: fmt.Sprintf("must be a non-empty string, got %v", rawType)}
	}
	t, known := ParseMessageType(name)
	if !known {
		return nil, name, nil
	}

	w := wireObject{t: t, obj: obj, raw: line}
	var msg Message
	switch t {
	case TypeRecord:
		msg, err = p.record(w)
	case TypeSchema:
		msg, err = p.schema(w)
	case TypeState:
		msg, err = p.state(w)
	case TypeActivateVersion:
		msg, err = p.activateVersion(w)
	case TypeBatch:
		msg, err = p.batch(w)
	}
	if err != nil {
		return nil, "", err
	}
	return msg, "", nil
}

func decodeObject(line []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Line: snippet(line), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Line: snippet(line), Err: errors.New("trailing data after JSON object")}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Line: snippet(line), Err: errors.New("not a JSON object")}
	}
	return obj, nil
}

func (p *Parser) record(w wireObject) (Message, error) {
	stream, err := w.requiredString(fieldStream)
	if err != nil {
		return nil, err
	}
	record, err := w.required(fieldRecord)
	if err != nil {
		return nil, err
	}
	var opts []Option
	if v, ok, err := w.optionalInt(fieldVersion); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithVersion(v))
	}
	if t, ok := p.timeExtracted(w); ok {
		opts = append(opts, withTimeExtractedPresent(t))
	}
	return NewRecord(stream, record, opts...)
}

func (p *Parser) schema(w wireObject) (Message, error) {
	stream, err := w.requiredString(fieldStream)
	if err != nil {
		return nil, err
	}
	schema, err := w.required(fieldSchema)
	if err != nil {
		return nil, err
	}
	rawKeys, err := w.required(fieldKeyProperties)
	if err != nil {
		return nil, err
	}
	items, ok := rawKeys.([]any)
	if !ok {
		return nil, invalid(TypeSchema, fieldKeyProperties, "must be a list of strings")
	}
	keys, err := stringList(fieldKeyProperties, items)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Type = TypeSchema
		}
		return nil, err
	}
	var opts []Option
	if raw, ok := w.obj[fieldBookmarkProperties]; ok {
		opts = append(opts, WithBookmarkProperties(raw))
	}
	return NewSchema(stream, schema, keys, opts...)
}

func (p *Parser) state(w wireObject) (Message, error) {
	value, err := w.required(fieldValue)
	if err != nil {
		return nil, err
	}
	return NewState(value)
}

func (p *Parser) activateVersion(w wireObject) (Message, error) {
	stream, err := w.requiredString(fieldStream)
	if err != nil {
		return nil, err
	}
	version, err := w.requiredInt(fieldVersion)
	if err != nil {
		return nil, err
	}
	return NewActivateVersion(stream, version)
}

func (p *Parser) batch(w wireObject) (Message, error) {
	stream, err := w.requiredString(fieldStream)
	if err != nil {
		return nil, err
	}
	filepath, err := w.requiredString(fieldFilepath)
	if err != nil {
		return nil, err
	}
	format, err := w.requiredString(fieldFormat)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithFormat(format)}
	if c, ok, err := w.optionalString(fieldCompression); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, withCompressionPresent(c))
	}
	if n, ok, err := w.optionalInt(fieldBatchSize); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithBatchSize(n))
	}
	if t, ok := p.timeExtracted(w); ok {
		opts = append(opts, withTimeExtractedPresent(t))
	}
	return NewBatch(stream, filepath, opts...)
}

// timeExtracted reads an optional time_extracted. Anything that is not an
// aware timestamp is reported once and treated as absent.
func (p *Parser) timeExtracted(w wireObject) (t time.Time, ok bool) {
	raw, present := w.obj[fieldTimeExtracted]
	if !present || raw == nil {
		return t, false
	}
	s, isString := raw.(string)
	if !isString {
		p.diag.Warn("unable to parse time_extracted on "+string(w.t), fmt.Errorf("not a string: %v", raw))
		return t, false
	}
	if s == "" {
		return t, false
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		p.diag.Warn("unable to parse time_extracted on "+string(w.t), err)
		return t, false
	}
	if y := parsed.UTC().Year(); y < minTimestampYear || y > maxTimestampYear {
		p.diag.Warn("unable to parse time_extracted on "+string(w.t), fmt.Errorf("year %d out of range in %q", y, s))
		return t, false
	}
	return parsed, true
}

// wireObject is a decoded line of a known type.
type wireObject struct {
	t   MessageType
	obj map[string]any
	raw []byte
}

func (w wireObject) required(key string) (any, error) {
	v, ok := w.obj[key]
	if !ok {
		return nil, &MissingFieldError{Type: w.t, Field: key, Raw: snippet(w.raw)}
	}
	return v, nil
}

func (w wireObject) requiredString(key string) (string, error) {
	v, err := w.required(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(w.t, key, fmt.Sprintf("must be a string, got %v", v))
	}
	return s, nil
}

func (w wireObject) optionalString(key string) (string, bool, error) {
	v, ok := w.obj[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, invalid(w.t, key, fmt.Sprintf("must be a string, got %v", v))
	}
	return s, true, nil
}

func (w wireObject) requiredInt(key string) (int64, error) {
	v, err := w.required(key)
	if err != nil {
		return 0, err
	}
	return w.integer(key, v)
}

func (w wireObject) optionalInt(key string) (int64, bool, error) {
	v, ok := w.obj[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	n, err := w.integer(key, v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (w wireObject) integer(key string, v any) (int64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, invalid(w.t, key, fmt.Sprintf("must be an integer, got %v", v))
	}
	n, err := num.Int64()
	if err != nil {
		return 0, &ValidationError{Type: w.t, Field: key, Reason: "must be an integer", Err: err}
	}
	return n, nil
}
