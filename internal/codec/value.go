package codec

import (
	"encoding/json"
	"errors"
)

// Value is a stored field value that may be absent.
//
// The zero Value is absent and decodes with ErrAbsent.
type Value struct {
	field   string
	raw     string
	present bool
	codec   Codec
}

// Present wraps a serialized value read from the store.
// A nil codec selects Default.
func Present(c Codec, field, raw string) Value {
	if c == nil {
		c = Default
	}
	return Value{field: field, raw: raw, present: true, codec: c}
}

// Absent returns the value of a field that does not exist.
func Absent(field string) Value {
	return Value{field: field}
}

// FromReply builds a Value from a store reply element, where nil means the
// field does not exist.
func FromReply(c Codec, field string, reply any) Value {
	switch r := reply.(type) {
	case string:
		return Present(c, field, r)
	case []byte:
		return Present(c, field, string(r))
	default:
		return Absent(field)
	}
}

// Field returns the field name this value was read from.
func (v Value) Field() string {
	return v.field
}

// IsPresent reports whether the field existed.
func (v Value) IsPresent() bool {
	return v.present
}

// Raw returns the serialized form and whether the field existed.
func (v Value) Raw() (string, bool) {
	return v.raw, v.present
}

// Decode parses the stored value into dst.
func (v Value) Decode(dst any) error {
	if !v.present {
		return &Error{Op: "decode", Field: v.field, Err: ErrAbsent}
	}
	c := v.codec
	if c == nil {
		c = Default
	}
	if err := c.Decode(v.raw, dst); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			err = ce.Err
		}
		return &Error{Op: "decode", Field: v.field, Err: err}
	}
	return nil
}

// AsString decodes the value as a string.
func (v Value) AsString() (string, error) {
	var s string
	err := v.Decode(&s)
	return s, err
}

// AsInt64 decodes the value as an integer.
func (v Value) AsInt64() (int64, error) {
	var n int64
	err := v.Decode(&n)
	return n, err
}

// AsFloat64 decodes the value as a floating point number.
func (v Value) AsFloat64() (float64, error) {
	var f float64
	err := v.Decode(&f)
	return f, err
}

// AsBool decodes the value as a boolean.
func (v Value) AsBool() (bool, error) {
	var b bool
	err := v.Decode(&b)
	return b, err
}

// Equal reports whether two values have the same presence and serialized
// form. Field names are not compared.
func (v Value) Equal(other Value) bool {
	return v.present == other.present && v.raw == other.raw
}

// MarshalJSON renders an absent value as null and a present one as its raw
// serialized form when that is valid JSON, or as a JSON string otherwise.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	if json.Valid([]byte(v.raw)) {
		return []byte(v.raw), nil
	}
	return json.Marshal(v.raw)
}
