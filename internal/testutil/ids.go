package testutil

import (
	"fmt"
	"sync/atomic"
)

// CountingGenerator returns "<prefix>-1", "<prefix>-2", ... and never runs
// out. It satisfies store.IDGenerator.
//
// Thread-safety: safe for concurrent use.
type CountingGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewCountingGenerator creates a generator. An empty prefix means "id".
func NewCountingGenerator(prefix string) *CountingGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &CountingGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *CountingGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
