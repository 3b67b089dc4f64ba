package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/vstore/internal/codec"
)

// Entity addresses one record of a collection. Creating an Entity performs
// no network call and does not imply the record exists.
//
// Entities compare by collection and id; use Equal rather than pointer
// equality.
type Entity struct {
	client     *Client
	collection string
	id         string
	key        string
	series     bool
}

func newEntity(c *Client, collection, id string, series bool) *Entity {
	return &Entity{
		client:     c,
		collection: collection,
		id:         id,
		key:        EntityKey(collection, id),
		series:     series,
	}
}

// Collection returns the collection name.
func (e *Entity) Collection() string {
	return e.collection
}

// ID returns the entity id.
func (e *Entity) ID() string {
	return e.id
}

// Key returns the hash key backing the entity.
func (e *Entity) Key() string {
	return e.key
}

// String implements fmt.Stringer.
func (e *Entity) String() string {
	return e.key
}

// Equal reports whether both handles address the same record.
func (e *Entity) Equal(other *Entity) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.collection == other.collection && e.id == other.id
}

// Exists reports whether the entity hash exists.
func (e *Entity) Exists(ctx context.Context) (bool, error) {
	if err := e.client.checkOpen(); err != nil {
		return false, err
	}
	n, err := e.client.rdb.Exists(ctx, e.key).Result()
	if err != nil {
		return false, newTransactionError("exists", e.key, err)
	}
	return n == 1, nil
}

// Version returns the current version, or 0 if the entity has never been
// mutated through a checked operation.
func (e *Entity) Version(ctx context.Context) (int64, error) {
	if err := e.client.checkOpen(); err != nil {
		return 0, err
	}
	raw, err := e.client.rdb.HGet(ctx, e.key, VersionField).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, newTransactionError("version", e.key, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, newSerializationError("version", e.key, fmt.Errorf("version %q: %w", raw, err))
	}
	return v, nil
}

// Get reads one field.
func (e *Entity) Get(ctx context.Context, field string) (codec.Value, error) {
	if err := e.client.checkOpen(); err != nil {
		return codec.Value{}, err
	}
	raw, err := e.client.rdb.HGet(ctx, e.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return codec.Absent(field), nil
	}
	if err != nil {
		return codec.Value{}, newTransactionError("get", e.key, err)
	}
	return codec.Present(e.client.codec, field, raw), nil
}

// GetMany reads several fields in one round trip. The result has one value
// per requested field, in order.
func (e *Entity) GetMany(ctx context.Context, fields ...string) ([]codec.Value, error) {
	if err := e.client.checkOpen(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	replies, err := e.client.rdb.HMGet(ctx, e.key, fields...).Result()
	if err != nil {
		return nil, newTransactionError("get many", e.key, err)
	}
	out := make([]codec.Value, len(fields))
	for i, f := range fields {
		out[i] = codec.FromReply(e.client.codec, f, replies[i])
	}
	return out, nil
}

// GetAll reads every field except the version.
func (e *Entity) GetAll(ctx context.Context) (map[string]codec.Value, error) {
	if err := e.client.checkOpen(); err != nil {
		return nil, err
	}
	all, err := e.client.rdb.HGetAll(ctx, e.key).Result()
	if err != nil {
		return nil, newTransactionError("get all", e.key, err)
	}
	out := make(map[string]codec.Value, len(all))
	for f, raw := range all {
		if f == VersionField {
			continue
		}
		out[f] = codec.Present(e.client.codec, f, raw)
	}
	return out, nil
}

// Set writes fields directly, without versioning, diffing, indexing or
// publishing. It is meant for best-effort bulk writes; use CheckedSet for
// anything other processes observe.
func (e *Entity) Set(ctx context.Context, fieldsAndValues ...any) error {
	const op = "set"
	if err := e.client.checkOpen(); err != nil {
		return err
	}
	fields, err := pairs(op, e.key, fieldsAndValues)
	if err != nil {
		return err
	}

	args := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		if err := validateField(op, e.key, f.Name); err != nil {
			return err
		}
		if f.Value == nil {
			continue
		}
		raw, err := e.client.codec.Encode(f.Value)
		if err != nil {
			return newSerializationError(op, e.key, fmt.Errorf("field %s: %w", f.Name, err))
		}
		args = append(args, f.Name, raw)
	}
	if len(args) == 0 {
		return nil
	}
	if err := e.client.rdb.HSet(ctx, e.key, args...).Err(); err != nil {
		return newTransactionError(op, e.key, err)
	}
	return nil
}

// Touch adds the entity to its collection index without versioning or
// publishing. An entity already indexed keeps its score.
func (e *Entity) Touch(ctx context.Context) error {
	if err := e.client.checkOpen(); err != nil {
		return err
	}
	err := e.client.rdb.ZAddNX(ctx, e.collection, redis.Z{Score: e.score(), Member: e.id}).Err()
	if err != nil {
		return newTransactionError("touch", e.key, err)
	}
	return nil
}

// score is the index score used if this call inserts the entity.
func (e *Entity) score() float64 {
	if !e.series {
		return 0
	}
	return float64(e.client.clock.Now().UnixMilli())
}

func (e *Entity) scriptKeys() []string {
	return []string{e.collection, e.key, ChangeChannel(e.collection)}
}

func (e *Entity) scriptArgs() []any {
	return e.scriptArgsWithScore(e.score())
}

func (e *Entity) scriptArgsWithScore(score float64) []any {
	return []any{e.id, codec.Quote(e.id), e.client.internalPrefix, score}
}

func sortedFields(values map[string]any) []Field {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Field, len(names))
	for i, name := range names {
		out[i] = Field{Name: name, Value: values[name]}
	}
	return out
}
