// Package codec converts application values to the strings stored in hash
// fields and back.
//
// Two codecs are provided:
//
//   - JSON: every value is stored as JSON text, strings included, so what
//     is read back has the type that was written. Text that is not JSON
//     (values written by other tools) reads back as a plain string.
//   - Raw: scalars are formatted as text and nothing is parsed on the way back.
//
// Both treat a nil reply (a missing field) as a nil value, never as an error.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuikangjie/redis-cli/pkg/protocol"
)

// Codec is the contract the hash command facade relies on.
type Codec interface {
	Encode(v interface{}) (string, error)
	Decode(raw interface{}) (interface{}, error)
}

// ErrNilValue is returned by JSON.Encode for nil. Stored JSON null would
// read back as a missing field.
var ErrNilValue = errors.New("codec: nil value")

// JSON stores values as JSON text.
type JSON struct{}

// Raw stores values as their plain text form.
type Raw struct{}

var (
	_ Codec = JSON{}
	_ Codec = Raw{}
)

// ByName returns the codec registered under name ("json" or "raw").
func ByName(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSON{}, nil
	case "raw":
		return Raw{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// Encode marshals v as JSON: "abc" is stored as "abc" with quotes, 42 as
// 42. A json.RawMessage is stored as given once it is validated.
func (JSON) Encode(v interface{}) (string, error) {
	if v == nil {
		return "", ErrNilValue
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("codec: encode %T: %w", v, err)
	}
	return string(data), nil
}

// Decode parses text replies as JSON and returns text that is not JSON
// unchanged. Integers decode as int64 when they fit, other numbers as
// float64, objects as map[string]interface{}. Non-text replies pass through.
func (JSON) Decode(raw interface{}) (interface{}, error) {
	var text []byte
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		text = []byte(val)
	case []byte:
		text = val
	default:
		return raw, nil
	}

	if !json.Valid(text) {
		return string(text), nil
	}

	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return numbers(out), nil
}

// numbers replaces json.Number values with int64 or float64.
func numbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = numbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = numbers(item)
		}
		return val
	default:
		return v
	}
}

// Encode formats v as text the same way command arguments are formatted.
func (Raw) Encode(v interface{}) (string, error) {
	return protocol.FormatArg(v), nil
}

// Decode returns text replies as strings and everything else unchanged.
func (Raw) Decode(raw interface{}) (interface{}, error) {
	if b, ok := raw.([]byte); ok {
		return string(b), nil
	}
	return raw, nil
}
