package journal

import (
	"context"
	"encoding/json"
	"fmt"
)

// EntityState is the published state of an entity as reconstructed from the
// journal.
type EntityState struct {
	Collection string
	ID         string
	Exists     bool
	Version    int64
	Fields     map[string]json.RawMessage
	LastSeq    int64 // 0 if the journal has no rows for the entity
}

// State replays every row of one entity in seq order. A delete resets the
// state; a version-1 entry starts a new incarnation with no fields.
func (j *Journal) State(ctx context.Context, collection, id string) (EntityState, error) {
	state := EntityState{
		Collection: collection,
		ID:         id,
		Fields:     map[string]json.RawMessage{},
	}

	entries, err := j.ReadEntity(ctx, collection, id)
	if err != nil {
		return state, fmt.Errorf("entity state: %w", err)
	}

	for _, e := range entries {
		state.LastSeq = e.Seq
		ch, err := e.Change()
		if err != nil {
			return state, fmt.Errorf("entity state: seq %d: %w", e.Seq, err)
		}
		if ch.Deleted {
			state.Exists = false
			state.Version = 0
			clear(state.Fields)
			continue
		}
		if ch.Inserted() {
			clear(state.Fields)
		}
		state.Exists = true
		state.Version = ch.Version
		for field, raw := range ch.Fields {
			if ch.Cleared(field) {
				delete(state.Fields, field)
				continue
			}
			state.Fields[field] = raw
		}
	}
	return state, nil
}
