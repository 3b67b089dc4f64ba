package codec

import (
	"errors"
	"fmt"
)

// ErrAbsent is returned when decoding a Value that holds no stored data.
var ErrAbsent = errors.New("value is absent")

// Error reports a failed encode or decode.
type Error struct {
	Op    string // "encode" or "decode"
	Field string // field name, when known
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("codec %s %q: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCodecError reports whether err is, or wraps, a codec Error.
func IsCodecError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
