package xsinger

import (
	"bytes"
	"encoding/json"
)

// Decode converts a payload (a record, schema or state value) into T by way of
// its canonical JSON encoding. Timestamps arrive as TimestampLayout strings.
//
//	type user struct {
//		ID   int64  `json:"id"`
//		Name string `json:"name"`
//	}
//	u, err := xsinger.Decode[user](rec.Record())
func Decode[T any](payload any) (T, error) {
	var v T
	b, err := MarshalValue(payload)
	if err != nil {
		return v, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return v, &EncodingError{Path: "value", Value: "decode", Err: err}
	}
	return v, nil
}
