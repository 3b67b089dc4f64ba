package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/maybe"
)

// Latch is a distributed count-down latch: a hash holding a remaining count
// and arbitrary payload fields. Exactly one Decrement observes zero, and
// that caller receives the payload while the latch is deleted.
type Latch struct {
	client *Client
	id     string
	key    string
}

// ID returns the latch id.
func (l *Latch) ID() string {
	return l.id
}

// Key returns the hash key backing the latch.
func (l *Latch) Key() string {
	return l.key
}

// Init replaces any existing latch with one that releases after count
// decrements and stores the given payload fields.
func (l *Latch) Init(ctx context.Context, count int64, fieldsAndValues ...any) error {
	const op = "latch init"
	if err := l.client.checkOpen(); err != nil {
		return err
	}
	if count < 1 {
		return newArgumentError(op, l.key, "count must be at least 1, got %d", count)
	}
	fields, err := pairs(op, l.key, fieldsAndValues)
	if err != nil {
		return err
	}

	values := []any{remainingField, count}
	for _, f := range fields {
		if f.Name == "" || f.Name == remainingField {
			return newArgumentError(op, l.key, "invalid payload field %q", f.Name)
		}
		if f.Value == nil {
			continue
		}
		raw, err := l.client.codec.Encode(f.Value)
		if err != nil {
			return newSerializationError(op, l.key, fmt.Errorf("field %s: %w", f.Name, err))
		}
		values = append(values, f.Name, raw)
	}

	_, err = l.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.key)
		pipe.HSet(ctx, l.key, values...)
		return nil
	})
	if err != nil {
		return newTransactionError(op, l.key, err)
	}
	return nil
}

// Decrement counts the latch down by one. The caller that brings it to zero
// gets the requested payload fields, in order, and the latch is deleted in
// the same transaction; every other caller gets absent. Decrementing a latch
// that does not exist, including one already released, returns
// ErrLatchNotFound.
func (l *Latch) Decrement(ctx context.Context, fields ...string) (maybe.Maybe[[]codec.Value], error) {
	const op = "latch decrement"
	if err := l.client.checkOpen(); err != nil {
		return maybe.None[[]codec.Value](), err
	}

	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	reply, err := l.client.scripts.EvalSlice(ctx, latchDecrementScript, []string{l.key}, args...)
	if errors.Is(err, redis.Nil) {
		return maybe.None[[]codec.Value](), fmt.Errorf("%s %s: %w", op, l.id, ErrLatchNotFound)
	}
	if err != nil {
		return maybe.None[[]codec.Value](), newTransactionError(op, l.key, err)
	}
	if len(reply) == 0 {
		return maybe.None[[]codec.Value](), newTransactionError(op, l.key, fmt.Errorf("empty reply"))
	}

	remaining, ok := reply[0].(int64)
	if !ok {
		return maybe.None[[]codec.Value](), newTransactionError(op, l.key, fmt.Errorf("remaining is %T, want integer", reply[0]))
	}
	if remaining != 0 {
		return maybe.None[[]codec.Value](), nil
	}

	out := make([]codec.Value, len(fields))
	for i, f := range fields {
		var r any
		if i+1 < len(reply) {
			r = reply[i+1]
		}
		out[i] = codec.FromReply(l.client.codec, f, r)
	}
	l.client.logger.DebugContext(ctx, "latch released", "latch", l.id)
	return maybe.Some(out), nil
}

// Remaining returns the current count.
func (l *Latch) Remaining(ctx context.Context) (int64, error) {
	const op = "latch remaining"
	if err := l.client.checkOpen(); err != nil {
		return 0, err
	}
	raw, err := l.client.rdb.HGet(ctx, l.key, remainingField).Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%s %s: %w", op, l.id, ErrLatchNotFound)
	}
	if err != nil {
		return 0, newTransactionError(op, l.key, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, newSerializationError(op, l.key, err)
	}
	return n, nil
}
