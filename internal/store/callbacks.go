package store

import (
	"slices"
	"sync"

	"github.com/roach88/vstore/internal/codec"
)

// InsertFunc is called after an entity reaches version 1.
type InsertFunc func(e *Entity)

// DeleteFunc is called after an entity is deleted.
type DeleteFunc func(e *Entity)

// ChangeFunc is called once per changed field after a checked mutation.
type ChangeFunc func(e *Entity, field string, before, after codec.Value)

type registration[F any] struct {
	id uint64
	fn F
}

// registry holds the local callbacks of one Client.
//
// Callbacks run synchronously on the mutating goroutine, after the script
// has committed, in registration order. Panics propagate to the caller.
// The registry lock is not held while callbacks run, so a callback may
// register or unregister others; the change takes effect from the next
// dispatch.
type registry struct {
	mu      sync.RWMutex
	nextID  uint64
	inserts map[string][]registration[InsertFunc]
	deletes map[string][]registration[DeleteFunc]
	changes map[string]map[string][]registration[ChangeFunc]
}

func newRegistry() *registry {
	return &registry{
		inserts: make(map[string][]registration[InsertFunc]),
		deletes: make(map[string][]registration[DeleteFunc]),
		changes: make(map[string]map[string][]registration[ChangeFunc]),
	}
}

func (r *registry) onInsert(collection string, fn InsertFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.inserts[collection] = append(r.inserts[collection], registration[InsertFunc]{id, fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.inserts[collection] = without(r.inserts[collection], id)
	}
}

func (r *registry) onDelete(collection string, fn DeleteFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.deletes[collection] = append(r.deletes[collection], registration[DeleteFunc]{id, fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.deletes[collection] = without(r.deletes[collection], id)
	}
}

func (r *registry) onChange(collection, field string, fn ChangeFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	byField, ok := r.changes[collection]
	if !ok {
		byField = make(map[string][]registration[ChangeFunc])
		r.changes[collection] = byField
	}
	byField[field] = append(byField[field], registration[ChangeFunc]{id, fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if byField, ok := r.changes[collection]; ok {
			byField[field] = without(byField[field], id)
		}
	}
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts = make(map[string][]registration[InsertFunc])
	r.deletes = make(map[string][]registration[DeleteFunc])
	r.changes = make(map[string]map[string][]registration[ChangeFunc])
}

// dispatchModification runs insert callbacks when the entity was inserted,
// then for each diff entry in order the field callbacks followed by the
// wildcard callbacks.
func (r *registry) dispatchModification(m *metrics, mod Modification) {
	collection := mod.Entity.Collection()

	if mod.Inserted {
		r.mu.RLock()
		inserts := slices.Clone(r.inserts[collection])
		r.mu.RUnlock()
		for _, reg := range inserts {
			m.callback("insert")
			reg.fn(mod.Entity)
		}
	}

	for _, mv := range mod.Diff {
		r.mu.RLock()
		byField := r.changes[collection]
		specific := slices.Clone(byField[mv.Field])
		wildcard := slices.Clone(byField[Wildcard])
		r.mu.RUnlock()

		for _, reg := range specific {
			m.callback("change")
			reg.fn(mod.Entity, mv.Field, mv.Before, mv.After)
		}
		for _, reg := range wildcard {
			m.callback("change")
			reg.fn(mod.Entity, mv.Field, mv.Before, mv.After)
		}
	}
}

func (r *registry) dispatchDelete(m *metrics, e *Entity) {
	r.mu.RLock()
	deletes := slices.Clone(r.deletes[e.Collection()])
	r.mu.RUnlock()

	for _, reg := range deletes {
		m.callback("delete")
		reg.fn(e)
	}
}

func without[F any](regs []registration[F], id uint64) []registration[F] {
	return slices.DeleteFunc(slices.Clone(regs), func(r registration[F]) bool {
		return r.id == id
	})
}
