package script

import (
	"errors"
	"fmt"
)

// ErrStaleScript is wrapped by ExecError when the server still rejects the
// handle after the single reload attempt.
var ErrStaleScript = errors.New("script handle unknown after reload")

// ExecError reports a failed script registration or execution.
type ExecError struct {
	Script string
	Op     string // "load" or "eval"
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("script %s %s: %v", e.Script, e.Op, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsStale reports whether err is a stale-script failure.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleScript)
}
