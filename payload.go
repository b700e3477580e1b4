package xsinger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"time"
)

// number is a validated JSON number literal.
type number string

var numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

var errUnsupportedType = errors.New("unsupported type")

// MarshalValue encodes an arbitrary payload value the way record, schema and
// state payloads are encoded on the wire.
func MarshalValue(v any) ([]byte, error) {
	n, err := normalizeAt("value", v)
	if err != nil {
		return nil, err
	}
	e := newEncoder()
	e.value(n)
	return e.buf.Bytes(), nil
}

// normalizeAt normalises v and prefixes the JSON path of any EncodingError with root.
func normalizeAt(root string, v any) (any, error) {
	n, err := normalize(v)
	if err != nil {
		var ee *EncodingError
		if errors.As(err, &ee) {
			ee.Path = root + ee.Path
		}
		return nil, err
	}
	return n, nil
}

// normalize reduces v to nil, bool, string, number, []any or map[string]any.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, number:
		return x, nil
	case json.Number:
		if !numberPattern.MatchString(string(x)) {
			return nil, &EncodingError{Value: strconv.Quote(string(x)), Err: errors.New("invalid JSON number")}
		}
		return number(x), nil
	case int:
		return number(strconv.FormatInt(int64(x), 10)), nil
	case int8:
		return number(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return number(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return number(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return number(strconv.FormatInt(x, 10)), nil
	case uint:
		return number(strconv.FormatUint(uint64(x), 10)), nil
	case uint8:
		return number(strconv.FormatUint(uint64(x), 10)), nil
	case uint16:
		return number(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return number(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return number(strconv.FormatUint(x, 10)), nil
	case float64:
		return floatNumber(x, 64)
	case float32:
		return floatNumber(float64(x), 32)
	case *big.Int:
		if x == nil {
			return nil, nil
		}
		return number(x.String()), nil
	case *big.Rat:
		if x == nil {
			return nil, nil
		}
		return decimalNumber(x)
	case big.Rat:
		return decimalNumber(&x)
	case *big.Float:
		if x == nil {
			return nil, nil
		}
		if x.IsInf() {
			return nil, &EncodingError{Value: x.String(), Err: errors.New("infinite decimal")}
		}
		if x.IsInt() {
			i, _ := x.Int(nil)
			return number(i.String()), nil
		}
		r, _ := x.Rat(nil)
		return decimalNumber(r)
	case time.Time:
		return FormatTimestamp(x), nil
	case json.RawMessage:
		return decodeNormalized(x)
	case []byte:
		return nil, &EncodingError{Value: "[]byte", Err: errUnsupportedType}
	case []string:
		if x == nil {
			return nil, nil
		}
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	case []any:
		if x == nil {
			return nil, nil
		}
		out := make([]any, len(x))
		for i, el := range x {
			n, err := normalize(el)
			if err != nil {
				return nil, prefixPath(err, "["+strconv.Itoa(i)+"]")
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		if x == nil {
			return nil, nil
		}
		out := make(map[string]any, len(x))
		for k, el := range x {
			n, err := normalize(el)
			if err != nil {
				return nil, prefixPath(err, "."+k)
			}
			out[k] = n
		}
		return out, nil
	case json.Marshaler:
		rv := reflect.ValueOf(x)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		b, err := x.MarshalJSON()
		if err != nil {
			return nil, &EncodingError{Value: fmt.Sprintf("%T", v), Err: err}
		}
		return decodeNormalized(b)
	}
	return normalizeReflect(v)
}

func normalizeReflect(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return number(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32:
		return floatNumber(rv.Float(), 32)
	case reflect.Float64:
		return floatNumber(rv.Float(), 64)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &EncodingError{Value: fmt.Sprintf("%T", v), Err: errors.New("map keys must be strings")}
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			n, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, prefixPath(err, "."+k)
			}
			out[k] = n
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, &EncodingError{Value: fmt.Sprintf("%T", v), Err: errUnsupportedType}
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			n, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, prefixPath(err, "["+strconv.Itoa(i)+"]")
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, &EncodingError{Value: fmt.Sprintf("%T", v), Err: errUnsupportedType}
}

func prefixPath(err error, seg string) error {
	var ee *EncodingError
	if errors.As(err, &ee) {
		ee.Path = seg + ee.Path
	}
	return err
}

func floatNumber(f float64, bits int) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &EncodingError{Value: strconv.FormatFloat(f, 'g', -1, bits), Err: errors.New("non-finite float")}
	}
	var (
		b   []byte
		err error
	)
	if bits == 32 {
		b, err = json.Marshal(float32(f))
	} else {
		b, err = json.Marshal(f)
	}
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return number(b), nil
}

// decimalNumber renders an arbitrary-precision decimal: a JSON integer when it
// has no fractional part, otherwise the nearest JSON float.
func decimalNumber(r *big.Rat) (any, error) {
	if r.IsInt() {
		return number(r.Num().String()), nil
	}
	f, _ := r.Float64()
	if math.IsInf(f, 0) {
		return nil, &EncodingError{Value: r.RatString(), Err: errors.New("decimal out of float range")}
	}
	return floatNumber(f, 64)
}

func decodeNormalized(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &EncodingError{Value: "raw JSON", Err: err}
	}
	return normalize(v)
}

// valuesEqual compares two payloads as JSON values; numbers compare by value.
func valuesEqual(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return errA != nil && errB != nil && reflect.DeepEqual(a, b)
	}
	return normalizedEqual(na, nb)
}

func normalizedEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case number:
		y, ok := b.(number)
		return ok && numbersEqual(x, y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !normalizedEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !normalizedEqual(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

func numbersEqual(a, b number) bool {
	if a == b {
		return true
	}
	ra, okA := new(big.Rat).SetString(string(a))
	rb, okB := new(big.Rat).SetString(string(b))
	return okA && okB && ra.Cmp(rb) == 0
}

// encoder writes normalised values as compact JSON without HTML escaping.
type encoder struct {
	buf bytes.Buffer
	str *json.Encoder
}

func newEncoder() *encoder {
	e := &encoder{}
	e.str = json.NewEncoder(&e.buf)
	e.str.SetEscapeHTML(false)
	return e
}

func (e *encoder) string(s string) {
	// Encoding a string cannot fail; invalid UTF-8 is replaced.
	_ = e.str.Encode(s)
	e.buf.Truncate(e.buf.Len() - 1)
}

func (e *encoder) value(v any) {
	switch x := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case bool:
		e.buf.WriteString(strconv.FormatBool(x))
	case string:
		e.string(x)
	case number:
		e.buf.WriteString(string(x))
	case []any:
		e.buf.WriteByte('[')
		for i, el := range x {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.value(el)
		}
		e.buf.WriteByte(']')
	case map[string]any:
		e.buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(x)) {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.string(k)
			e.buf.WriteByte(':')
			e.value(x[k])
		}
		e.buf.WriteByte('}')
	}
}
