package codec

import (
	"bytes"
	"encoding/json"
)

// Codec is the serialization boundary between Go values and stored fields.
type Codec interface {
	// Encode serializes v to its stored form.
	Encode(v any) (string, error)
	// Decode parses a stored form into dst, which must be a pointer.
	Decode(raw string, dst any) error
}

// JSON is the canonical JSON codec. The zero value is ready to use.
type JSON struct{}

// Default is the codec used when none is configured.
var Default Codec = JSON{}

// Encode implements Codec.
//
// v is first marshalled with encoding/json (so struct tags and Marshaler
// implementations apply) and then rewritten in canonical form.
func (JSON) Encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", &Error{Op: "encode", Err: err}
	}
	out, err := Canonicalize(data)
	if err != nil {
		return "", &Error{Op: "encode", Err: err}
	}
	return string(out), nil
}

// Decode implements Codec.
func (JSON) Decode(raw string, dst any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(dst); err != nil {
		return &Error{Op: "decode", Err: err}
	}
	return nil
}
