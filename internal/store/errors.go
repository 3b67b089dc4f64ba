package store

import (
	"errors"
	"fmt"

	"github.com/roach88/vstore/internal/script"
)

// Error reports a failed store operation.
//
// Error categories:
//   - Argument: bad field/value lists, reserved or empty names, bad keys
//   - Serialization: a value could not be encoded or decoded
//   - Transaction: the server rejected a script or command
//   - Stale script: the server kept rejecting a script handle after reload
//
// A failed checked operation never leaves a partial update behind: argument
// and serialization errors are raised before any network call, and a script
// either commits whole or not at all.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed, e.g. "checked set".
	Op string

	// Key is the store key involved, if any.
	Key string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	ErrCodeArgument      ErrorCode = "ARGUMENT"
	ErrCodeSerialization ErrorCode = "SERIALIZATION"
	ErrCodeTransaction   ErrorCode = "TRANSACTION"
	ErrCodeStaleScript   ErrorCode = "STALE_SCRIPT"
)

var (
	// ErrLatchNotFound is returned when decrementing a latch that does not
	// exist, including one already released by another caller.
	ErrLatchNotFound = errors.New("latch not found")

	// ErrClosed is returned by operations on a closed Client.
	ErrClosed = errors.New("store client closed")
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Key != "" {
		msg += fmt.Sprintf(" %s", e.Key)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newArgumentError(op, key, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeArgument,
		Op:      op,
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	}
}

func newSerializationError(op, key string, err error) *Error {
	return &Error{
		Code: ErrCodeSerialization,
		Op:   op,
		Key:  key,
		Err:  err,
	}
}

// newTransactionError classifies a failure reported by the server.
func newTransactionError(op, key string, err error) *Error {
	code := ErrCodeTransaction
	if script.IsStale(err) {
		code = ErrCodeStaleScript
	}
	return &Error{
		Code: code,
		Op:   op,
		Key:  key,
		Err:  err,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsArgumentError reports whether err was caused by invalid caller input.
func IsArgumentError(err error) bool {
	return hasCode(err, ErrCodeArgument)
}

// IsSerializationError reports whether err is a codec failure.
func IsSerializationError(err error) bool {
	return hasCode(err, ErrCodeSerialization)
}

// IsTransactionError reports whether err is a server-side failure.
// Stale-script failures are transaction errors too.
func IsTransactionError(err error) bool {
	return hasCode(err, ErrCodeTransaction) || hasCode(err, ErrCodeStaleScript)
}

// IsStaleScriptError reports whether a script handle stayed unknown to the
// server after the single reload attempt.
func IsStaleScriptError(err error) bool {
	return hasCode(err, ErrCodeStaleScript)
}
