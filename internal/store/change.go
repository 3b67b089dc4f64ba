package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/pubsub"
)

// Change is one entity entry of a change-channel message.
type Change struct {
	Collection string
	ID         string

	// Deleted is true for {"<id>":null}.
	Deleted bool

	// Version is the entity version after the change; 0 when Deleted.
	Version int64

	// Fields holds the raw JSON of every published field. A cleared field
	// maps to null.
	Fields map[string]json.RawMessage
}

// Inserted reports whether the change created the entity.
func (c Change) Inserted() bool {
	return c.Version == 1
}

// Value returns a published field as a Value. Cleared and unpublished
// fields are absent.
func (c Change) Value(field string) codec.Value {
	raw, ok := c.Fields[field]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return codec.Absent(field)
	}
	return codec.Present(codec.Default, field, string(raw))
}

// Cleared reports whether field was published as null.
func (c Change) Cleared(field string) bool {
	raw, ok := c.Fields[field]
	return ok && bytes.Equal(raw, []byte("null"))
}

// ParseChanges decodes a change-channel message published for collection.
// Entries are returned sorted by id.
func ParseChanges(collection string, payload []byte) ([]Change, error) {
	var byID map[string]json.RawMessage
	if err := json.Unmarshal(payload, &byID); err != nil {
		return nil, fmt.Errorf("parse change message: %w", err)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Change, 0, len(ids))
	for _, id := range ids {
		raw := bytes.TrimSpace(byID[id])
		if bytes.Equal(raw, []byte("null")) {
			out = append(out, Change{Collection: collection, ID: id, Deleted: true})
			continue
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("parse change for %s: %w", id, err)
		}
		vraw, ok := fields[VersionField]
		if !ok {
			return nil, fmt.Errorf("parse change for %s: missing %q", id, VersionField)
		}
		var version int64
		if err := json.Unmarshal(vraw, &version); err != nil {
			return nil, fmt.Errorf("parse change for %s: version: %w", id, err)
		}
		delete(fields, VersionField)

		out = append(out, Change{
			Collection: collection,
			ID:         id,
			Version:    version,
			Fields:     fields,
		})
	}
	return out, nil
}

// WatchCollection subscribes to a collection's change channel and calls fn
// for every decoded change. Messages that fail to decode are logged and
// skipped. fn runs on the subscription's listener goroutine.
//
// The returned Subscription is closed by Client.Close.
func (c *Client) WatchCollection(ctx context.Context, collection string, fn func(Change)) (*pubsub.Subscription, error) {
	if err := validateCollection("watch", collection); err != nil {
		return nil, err
	}
	return c.Subscribe(ctx, ChangeChannel(collection), func(channel, message string) {
		changes, err := ParseChanges(collection, []byte(message))
		if err != nil {
			c.logger.Warn("dropping malformed change message",
				"channel", channel,
				"error", err,
			)
			return
		}
		for _, ch := range changes {
			fn(ch)
		}
	})
}
