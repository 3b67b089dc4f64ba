package script

import (
	"crypto/sha1"
	"encoding/hex"
)

// Script is a named Lua transaction body.
type Script struct {
	name string
	src  string
	sum  string
}

// New creates a Script. The name is used in logs, metrics and errors.
func New(name, src string) *Script {
	h := sha1.Sum([]byte(src))
	return &Script{name: name, src: src, sum: hex.EncodeToString(h[:])}
}

// Name returns the script name.
func (s *Script) Name() string {
	return s.name
}

// Source returns the Lua body.
func (s *Script) Source() string {
	return s.src
}

// Sum returns the SHA-1 of the body, the identity under which the cache
// stores the server handle.
func (s *Script) Sum() string {
	return s.sum
}
