package journal

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/store"
)

const deletedPayload = "null"

// marshalChange converts one change entry to canonical JSON TEXT for
// storage: {"v":<version>,<fields>...} with sorted keys, or null for a
// delete.
func marshalChange(ch store.Change) (string, error) {
	if ch.Deleted {
		return deletedPayload, nil
	}

	m := make(map[string]json.RawMessage, len(ch.Fields)+1)
	for k, v := range ch.Fields {
		m[k] = v
	}
	m[store.VersionField] = json.RawMessage(fmt.Sprint(ch.Version))

	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal change %s: %w", ch.ID, err)
	}
	canon, err := codec.Canonicalize(data)
	if err != nil {
		return "", fmt.Errorf("marshal change %s: %w", ch.ID, err)
	}
	return string(canon), nil
}

// unmarshalChange is the inverse of marshalChange.
func unmarshalChange(collection, id, payload string) (store.Change, error) {
	msg := "{" + codec.Quote(id) + ":" + payload + "}"
	changes, err := store.ParseChanges(collection, []byte(msg))
	if err != nil {
		return store.Change{}, fmt.Errorf("unmarshal change %s: %w", id, err)
	}
	if len(changes) != 1 {
		return store.Change{}, fmt.Errorf("unmarshal change %s: got %d entries", id, len(changes))
	}
	return changes[0], nil
}
