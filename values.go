package graphstore

import (
	"bytes"
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// NewValue marshals v into a property value.
func NewValue(v any) (json.RawMessage, error) {
	b, err := gojson.Marshal(v)
	if err != nil {
		return nil, &ValidationError{Kind: "value", Value: truncate(string(b)), Reason: err.Error()}
	}
	return json.RawMessage(b), nil
}

// CompactValue checks that value is a single JSON document and returns it
// without insignificant whitespace.
func CompactValue(value json.RawMessage) (json.RawMessage, error) {
	if !gojson.Valid(value) {
		return nil, &ValidationError{Kind: "value", Value: truncate(string(value)), Reason: "not valid JSON"}
	}
	var buf bytes.Buffer
	if err := gojson.Compact(&buf, value); err != nil {
		return nil, &ValidationError{Kind: "value", Value: truncate(string(value)), Reason: err.Error()}
	}
	return json.RawMessage(buf.Bytes()), nil
}
