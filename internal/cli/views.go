package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/journal"
	"github.com/roach88/vstore/internal/maybe"
	"github.com/roach88/vstore/internal/store"
)

// Views are the shapes commands print. JSON output encodes them directly;
// text output goes through String.

type entityView struct {
	Key     string                     `json:"key"`
	Exists  bool                       `json:"exists"`
	Version int64                      `json:"version"`
	Fields  map[string]json.RawMessage `json:"fields"`
	Missing []string                   `json:"missing,omitempty"`
}

func (v entityView) String() string {
	if !v.Exists {
		return v.Key + " does not exist"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%d", v.Key, v.Version)
	writeFields(&b, v.Fields)
	for _, name := range v.Missing {
		fmt.Fprintf(&b, "\n%s (absent)", name)
	}
	return b.String()
}

type diffView struct {
	Field  string          `json:"field"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

type mutationView struct {
	Key      string     `json:"key"`
	Modified bool       `json:"modified"`
	Inserted bool       `json:"inserted"`
	Version  int64      `json:"version,omitempty"`
	Diff     []diffView `json:"diff,omitempty"`
	Payload  *string    `json:"payload,omitempty"`
}

func newMutationView(e *store.Entity, res maybe.Maybe[store.Modification]) mutationView {
	mod, ok := res.Get()
	if !ok {
		return mutationView{Key: e.Key()}
	}
	v := mutationView{
		Key:      e.Key(),
		Modified: true,
		Inserted: mod.Inserted,
		Version:  mod.Version,
	}
	if p, ok := mod.Payload.Get(); ok {
		v.Payload = &p
	}
	for _, mv := range mod.Diff {
		v.Diff = append(v.Diff, diffView{
			Field:  mv.Field,
			Before: rawValue(mv.Before),
			After:  rawValue(mv.After),
		})
	}
	return v
}

func (v mutationView) String() string {
	if !v.Modified {
		return v.Key + " unchanged"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%d", v.Key, v.Version)
	if v.Inserted {
		b.WriteString(" (inserted)")
	}
	for _, d := range v.Diff {
		fmt.Fprintf(&b, "\n%s: %s -> %s", d.Field, textValue(d.Before), textValue(d.After))
	}
	return b.String()
}

type deleteView struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

func (v deleteView) String() string {
	if v.Deleted {
		return v.Key + " deleted"
	}
	return v.Key + " not found"
}

type listView struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

func (v listView) String() string {
	return strings.Join(v.IDs, "\n")
}

type countView struct {
	Collection string `json:"collection"`
	Count      int64  `json:"count"`
}

func (v countView) String() string {
	return strconv.FormatInt(v.Count, 10)
}

type changeView struct {
	Collection string                     `json:"collection"`
	ID         string                     `json:"id"`
	Deleted    bool                       `json:"deleted,omitempty"`
	Version    int64                      `json:"version,omitempty"`
	Fields     map[string]json.RawMessage `json:"fields,omitempty"`
	Seq        int64                      `json:"seq,omitempty"`
}

func newChangeView(ch store.Change) changeView {
	return changeView{
		Collection: ch.Collection,
		ID:         ch.ID,
		Deleted:    ch.Deleted,
		Version:    ch.Version,
		Fields:     ch.Fields,
	}
}

func (v changeView) String() string {
	var b strings.Builder
	if v.Seq > 0 {
		fmt.Fprintf(&b, "#%d ", v.Seq)
	}
	key := store.EntityKey(v.Collection, v.ID)
	if v.Deleted {
		b.WriteString(key + " deleted")
		return b.String()
	}
	fmt.Fprintf(&b, "%s v%d", key, v.Version)
	for _, name := range sortedKeys(v.Fields) {
		fmt.Fprintf(&b, " %s=%s", name, v.Fields[name])
	}
	return b.String()
}

type journalView struct {
	Changes []changeView `json:"changes"`
}

func newJournalView(entries []journal.Entry) (journalView, error) {
	v := journalView{Changes: make([]changeView, 0, len(entries))}
	for _, e := range entries {
		ch, err := e.Change()
		if err != nil {
			return v, fmt.Errorf("seq %d: %w", e.Seq, err)
		}
		cv := newChangeView(ch)
		cv.Seq = e.Seq
		v.Changes = append(v.Changes, cv)
	}
	return v, nil
}

func (v journalView) String() string {
	lines := make([]string, len(v.Changes))
	for i, ch := range v.Changes {
		lines[i] = ch.String()
	}
	return strings.Join(lines, "\n")
}

type stateView struct {
	Key     string                     `json:"key"`
	Exists  bool                       `json:"exists"`
	Version int64                      `json:"version"`
	Fields  map[string]json.RawMessage `json:"fields"`
	LastSeq int64                      `json:"last_seq"`
}

func newStateView(s journal.EntityState) stateView {
	return stateView{
		Key:     store.EntityKey(s.Collection, s.ID),
		Exists:  s.Exists,
		Version: s.Version,
		Fields:  s.Fields,
		LastSeq: s.LastSeq,
	}
}

func (v stateView) String() string {
	if !v.Exists {
		if v.LastSeq == 0 {
			return v.Key + " has no journal entries"
		}
		return fmt.Sprintf("%s deleted (#%d)", v.Key, v.LastSeq)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%d (#%d)", v.Key, v.Version, v.LastSeq)
	writeFields(&b, v.Fields)
	return b.String()
}

type latchView struct {
	ID        string                     `json:"id"`
	Released  bool                       `json:"released"`
	Remaining *int64                     `json:"remaining,omitempty"`
	Values    map[string]json.RawMessage `json:"values,omitempty"`
}

func (v latchView) String() string {
	if !v.Released {
		if v.Remaining != nil {
			return fmt.Sprintf("%s: %d remaining", v.ID, *v.Remaining)
		}
		return v.ID + ": pending"
	}
	var b strings.Builder
	b.WriteString(v.ID + ": released")
	writeFields(&b, v.Values)
	return b.String()
}

func writeFields(b *strings.Builder, fields map[string]json.RawMessage) {
	for _, name := range sortedKeys(fields) {
		fmt.Fprintf(b, "\n%s=%s", name, fields[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func rawValue(v codec.Value) json.RawMessage {
	raw, ok := v.Raw()
	if !ok {
		return nil
	}
	return json.RawMessage(raw)
}

func textValue(raw json.RawMessage) string {
	if raw == nil {
		return "<absent>"
	}
	return string(raw)
}
