package xsinger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// warnings collects diagnostics for assertions.
type warnings struct {
	msgs []string
	errs []error
}

func (w *warnings) Warn(msg string, err error) {
	w.msgs = append(w.msgs, msg)
	w.errs = append(w.errs, err)
}

func newTestParser(t *testing.T) (*Parser, *warnings) {
	t.Helper()
	w := &warnings{}
	return NewParser(WithDiagnostics(w)), w
}

func TestParse_UnknownTypeIsForwardCompatible(t *testing.T) {
	var seen string
	p := NewParser(WithDiagnostics(&warnings{}), WithUnrecognizedHook(func(typ string, _ []byte) { seen = typ }))

	msg, ok, err := p.Parse([]byte(`{"type":"FUTURE_MSG","x":1}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, msg)
	assert.Equal(t, "FUTURE_MSG", seen)
}

func TestParse_GarbageTypeIsError(t *testing.T) {
	p, _ := newTestParser(t)
	for _, line := range []string{`{"type":42}`, `{"type":""}`, `{"type":null}`, `{"type":["RECORD"]}`} {
		_, ok, err := p.Parse([]byte(line))
		assert.False(t, ok)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, line)
	}
}

func TestParse_MissingType(t *testing.T) {
	p, _ := newTestParser(t)
	_, _, err := p.Parse([]byte(`{"stream":"s"}`))
	var mf *MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "type", mf.Field)
}

func TestParse_MalformedJSON(t *testing.T) {
	p, _ := newTestParser(t)
	for _, line := range []string{`{"type":`, ``, `[1,2]`, `"RECORD"`, `{"type":"STATE","value":1} {}`, `not json`} {
		_, _, err := p.Parse([]byte(line))
		var pe *ParseError
		assert.ErrorAs(t, err, &pe, "line %q", line)
	}
}

func TestParse_MissingRequiredField(t *testing.T) {
	p, _ := newTestParser(t)
	_, _, err := p.Parse([]byte(`{"type":"SCHEMA","stream":"s"}`))
	var mf *MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "schema", mf.Field)
	assert.Equal(t, TypeSchema, mf.Type)
	assert.Contains(t, err.Error(), `{"type":"SCHEMA","stream":"s"}`)

	cases := []struct{ line, field string }{
		{`{"type":"RECORD","stream":"s"}`, "record"},
		{`{"type":"RECORD","record":{}}`, "stream"},
		{`{"type":"SCHEMA","stream":"s","schema":{}}`, "key_properties"},
		{`{"type":"STATE"}`, "value"},
		{`{"type":"ACTIVATE_VERSION","stream":"s"}`, "version"},
		{`{"type":"BATCH","stream":"s","filepath":"f"}`, "format"},
		{`{"type":"BATCH","stream":"s","format":"jsonl"}`, "filepath"},
	}
	for _, tc := range cases {
		_, _, err := p.Parse([]byte(tc.line))
		require.ErrorAs(t, err, &mf, tc.line)
		assert.Equal(t, tc.field, mf.Field, tc.line)
	}
}

func TestParse_MalformedTimestampDegrades(t *testing.T) {
	p, w := newTestParser(t)
	msg, ok, err := p.Parse([]byte(`{"type":"RECORD","stream":"s","record":{},"time_extracted":"not-a-date"}`))
	require.NoError(t, err)
	require.True(t, ok)

	r, isRecord := msg.(Record)
	require.True(t, isRecord)
	_, has := r.TimeExtracted()
	assert.False(t, has)
	require.Len(t, w.msgs, 1)
	assert.Contains(t, w.msgs[0], "time_extracted")
}

func TestParse_TimestampVariantsDegrade(t *testing.T) {
	for _, raw := range []string{`"2024-01-02T03:04:05"`, `12`, `{}`} {
		p, w := newTestParser(t)
		msg, ok, err := p.Parse([]byte(`{"type":"BATCH","stream":"s","filepath":"f","format":"jsonl","time_extracted":` + raw + `}`))
		require.NoError(t, err, raw)
		require.True(t, ok)
		_, has := msg.(Batch).TimeExtracted()
		assert.False(t, has, raw)
		assert.Len(t, w.msgs, 1, raw)
	}

	p, w := newTestParser(t)
	msg, _, err := p.Parse([]byte(`{"type":"RECORD","stream":"s","record":{},"time_extracted":null}`))
	require.NoError(t, err)
	_, has := msg.(Record).TimeExtracted()
	assert.False(t, has)
	assert.Empty(t, w.msgs)
}

func TestParse_AwareTimestamp(t *testing.T) {
	p, _ := newTestParser(t)
	msg, ok, err := p.Parse([]byte(`{"type":"RECORD","stream":"s","record":{},"time_extracted":"2024-01-02T05:04:05.5+02:00"}`))
	require.NoError(t, err)
	require.True(t, ok)
	got, has := msg.(Record).TimeExtracted()
	require.True(t, has)
	assert.True(t, got.Equal(time.Date(2024, 1, 2, 3, 4, 5, 500000000, time.UTC)))
}

func TestParse_Schema(t *testing.T) {
	p, _ := newTestParser(t)
	msg, ok, err := p.Parse([]byte(`{"type":"SCHEMA","stream":"users","schema":{"type":"object"},"key_properties":["id"],"bookmark_properties":"updated_at"}`))
	require.NoError(t, err)
	require.True(t, ok)

	s := msg.(Schema)
	assert.Equal(t, "users", s.Stream())
	assert.Equal(t, []string{"id"}, s.KeyProperties())
	props, has := s.BookmarkProperties()
	assert.True(t, has)
	assert.Equal(t, []string{"updated_at"}, props)
}

func TestParse_SchemaKeyPropertiesMustBeList(t *testing.T) {
	p, _ := newTestParser(t)
	for _, keys := range []string{`"id"`, `[1]`, `null`} {
		_, _, err := p.Parse([]byte(`{"type":"SCHEMA","stream":"s","schema":{},"key_properties":` + keys + `}`))
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, keys)
		assert.Equal(t, TypeSchema, ve.Type)
		assert.Equal(t, "key_properties", ve.Field)
	}
}

func TestParse_FieldTypes(t *testing.T) {
	p, _ := newTestParser(t)
	bad := []string{
		`{"type":"RECORD","stream":1,"record":{}}`,
		`{"type":"RECORD","stream":"s","record":{},"version":1.5}`,
		`{"type":"RECORD","stream":"s","record":{},"version":"1"}`,
		`{"type":"ACTIVATE_VERSION","stream":"s","version":true}`,
		`{"type":"BATCH","stream":"s","filepath":"f","format":"jsonl","batch_size":-1}`,
		`{"type":"BATCH","stream":"s","filepath":"f","format":"jsonl","compression":5}`,
	}
	for _, line := range bad {
		_, _, err := p.Parse([]byte(line))
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, line)
	}
}

func TestParse_NullOptionalsAreAbsent(t *testing.T) {
	p, _ := newTestParser(t)
	msg, ok, err := p.Parse([]byte(`{"type":"BATCH","stream":"s","filepath":"f","format":"csv","compression":null,"batch_size":null}`))
	require.NoError(t, err)
	require.True(t, ok)
	b := msg.(Batch)
	assert.Equal(t, "csv", b.Format())
	_, has := b.Compression()
	assert.False(t, has)
	_, has = b.BatchSize()
	assert.False(t, has)

	msg, _, err = p.Parse([]byte(`{"type":"RECORD","stream":"s","record":null,"version":null}`))
	require.NoError(t, err)
	_, has = msg.(Record).Version()
	assert.False(t, has)
}

func TestParse_ZeroTimestampIsKept(t *testing.T) {
	p, warns := newTestParser(t)
	line := `{"type":"RECORD","stream":"s","record":{},"time_extracted":"0001-01-01T00:00:00.000000Z"}`
	msg, ok, err := p.Parse([]byte(line))
	require.NoError(t, err)
	require.True(t, ok)
	ts, has := msg.(Record).TimeExtracted()
	require.True(t, has)
	assert.True(t, ts.IsZero())
	assert.Empty(t, warns.msgs)

	out, err := Format(msg)
	require.NoError(t, err)
	assert.JSONEq(t, line, string(out))
}

func TestParse_TimestampOutOfRangeIsWarned(t *testing.T) {
	p, warns := newTestParser(t)
	msg, ok, err := p.Parse([]byte(`{"type":"RECORD","stream":"s","record":{},"time_extracted":"0001-01-01T00:00:00+01:00"}`))
	require.NoError(t, err)
	require.True(t, ok)
	_, has := msg.(Record).TimeExtracted()
	assert.False(t, has)
	assert.Len(t, warns.msgs, 1)
}

func TestParse_EmptyCompressionIsKept(t *testing.T) {
	p, _ := newTestParser(t)
	line := `{"type":"BATCH","stream":"s","filepath":"f","format":"jsonl","compression":""}`
	msg, ok, err := p.Parse([]byte(line))
	require.NoError(t, err)
	require.True(t, ok)
	c, has := msg.(Batch).Compression()
	assert.True(t, has)
	assert.Equal(t, "", c)

	out, err := Format(msg)
	require.NoError(t, err)
	assert.Equal(t, line, string(out))
}

func TestParse_NumbersAreExact(t *testing.T) {
	p, _ := newTestParser(t)
	line := `{"type":"RECORD","stream":"s","record":{"big":123456789012345678901234567890,"dec":0.1000000000000000055511151231257827}}`
	msg, _, err := p.Parse([]byte(line))
	require.NoError(t, err)

	out, err := Format(msg)
	require.NoError(t, err)
	assert.Equal(t, line, string(out))
}

func TestParseMessage_DefaultParser(t *testing.T) {
	msg, ok, err := ParseMessage([]byte(`{"type":"STATE","value":{"a":1}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TypeState, msg.Type())
}
