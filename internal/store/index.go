package store

import (
	"context"
	"errors"
	"iter"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/vstore/internal/maybe"
)

// Index is the membership set of a collection: every entity with a version
// is a member. It is backed by a sorted set named after the collection.
type Index struct {
	client     *Client
	collection string
	series     bool
}

// Collection returns the collection name, which is also the index key.
func (x *Index) Collection() string {
	return x.collection
}

// Count returns the number of members.
func (x *Index) Count(ctx context.Context) (int64, error) {
	if err := x.client.checkOpen(); err != nil {
		return 0, err
	}
	n, err := x.client.rdb.ZCard(ctx, x.collection).Result()
	if err != nil {
		return 0, newTransactionError("count", x.collection, err)
	}
	return n, nil
}

// Has reports whether id is a member.
func (x *Index) Has(ctx context.Context, id string) (bool, error) {
	if err := x.client.checkOpen(); err != nil {
		return false, err
	}
	err := x.client.rdb.ZScore(ctx, x.collection, id).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, newTransactionError("has", x.collection, err)
	}
	return true, nil
}

// Get returns a handle for id without checking that it exists.
func (x *Index) Get(id string) (*Entity, error) {
	if err := validateID("get", x.collection, id); err != nil {
		return nil, err
	}
	return newEntity(x.client, x.collection, id, x.series), nil
}

// GetMany returns one handle per distinct id, in first-seen order, without
// checking existence.
func (x *Index) GetMany(ids ...string) ([]*Entity, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		e, err := x.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// New returns a handle for a fresh entity with a generated id. Nothing is
// written until the first checked mutation.
func (x *Index) New() *Entity {
	return newEntity(x.client, x.collection, x.client.ids.Generate(), x.series)
}

// All iterates over the members page by page with ZSCAN.
//
// Each call starts a new pass. A pass yields every id that stays a member
// for the whole pass exactly once; ids added or removed during the pass may
// or may not appear. Iteration stops at the first error, which is yielded
// with a nil entity.
func (x *Index) All(ctx context.Context) iter.Seq2[*Entity, error] {
	return func(yield func(*Entity, error) bool) {
		if err := x.client.checkOpen(); err != nil {
			yield(nil, err)
			return
		}

		// ZSCAN may return an element more than once while the server
		// rehashes.
		seen := make(map[string]struct{})
		var cursor uint64
		for {
			page, next, err := x.client.rdb.ZScan(ctx, x.collection, cursor, "", x.client.scanPageSize).Result()
			if err != nil {
				yield(nil, newTransactionError("scan", x.collection, err))
				return
			}
			// Replies alternate member and score.
			for i := 0; i < len(page); i += 2 {
				id := page[i]
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if !yield(newEntity(x.client, x.collection, id, x.series), nil) {
					return
				}
			}
			if next == 0 {
				return
			}
			cursor = next
		}
	}
}

// Scan calls fn for every member, stopping at the first error.
func (x *Index) Scan(ctx context.Context, fn func(*Entity) error) error {
	for e, err := range x.All(ctx) {
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// IDs collects the ids of all members.
func (x *Index) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := x.Scan(ctx, func(e *Entity) error {
		ids = append(ids, e.ID())
		return nil
	})
	return ids, err
}

// RandomMember returns some member, or absent for an empty collection.
//
// The choice is NOT uniform: it is the lowest-ranked member, which for a
// plain collection is the lexicographically smallest id and for a time
// series the oldest entry. Do not use it for sampling.
func (x *Index) RandomMember(ctx context.Context) (maybe.Maybe[*Entity], error) {
	if err := x.client.checkOpen(); err != nil {
		return maybe.None[*Entity](), err
	}
	ids, err := x.client.rdb.ZRange(ctx, x.collection, 0, 0).Result()
	if err != nil {
		return maybe.None[*Entity](), newTransactionError("random member", x.collection, err)
	}
	if len(ids) == 0 {
		return maybe.None[*Entity](), nil
	}
	return maybe.Some(newEntity(x.client, x.collection, ids[0], x.series)), nil
}
