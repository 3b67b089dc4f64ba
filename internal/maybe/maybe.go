// Package maybe provides an explicit present/absent wrapper.
//
// Operations that may legitimately produce nothing (a checked set that changed
// no field, a latch decrement that did not reach zero) return Maybe values
// instead of nil pointers, so callers must ask before they read.
package maybe

import "fmt"

// Maybe holds either a value of type T or nothing.
// The zero Maybe is absent.
type Maybe[T any] struct {
	value   T
	present bool
}

// Some wraps a present value.
func Some[T any](v T) Maybe[T] {
	return Maybe[T]{value: v, present: true}
}

// None returns an absent value.
func None[T any]() Maybe[T] {
	return Maybe[T]{}
}

// IsPresent reports whether a value is held.
func (m Maybe[T]) IsPresent() bool {
	return m.present
}

// Get returns the held value and whether it was present.
func (m Maybe[T]) Get() (T, bool) {
	return m.value, m.present
}

// OrElse returns the held value, or def when absent.
func (m Maybe[T]) OrElse(def T) T {
	if m.present {
		return m.value
	}
	return def
}

// MustGet returns the held value and panics when absent.
// Intended for tests and call sites that have already checked IsPresent.
func (m Maybe[T]) MustGet() T {
	if !m.present {
		panic("maybe: MustGet on absent value")
	}
	return m.value
}

// String implements fmt.Stringer.
func (m Maybe[T]) String() string {
	if !m.present {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", m.value)
}
