// Package harness runs conformance scenarios against the store.
//
// A scenario is a YAML file naming one collection and a list of steps
// (touch, set, clear, delete, latch_init, latch_decrement), each with
// optional expectations about the outcome. Run executes the steps in order
// against a fresh in-process Redis and returns a Result holding the trace
// of outcomes and every message published on the collection's change
// channel. Assertions then check the published count, the final entity
// state and the index membership.
//
// # Golden traces
//
// RunWithGolden marshals the trace and the published messages as canonical
// JSON and compares them with testdata/golden/<name>.golden. To regenerate
// golden files, run:
//
//	go test ./internal/harness -update
package harness
