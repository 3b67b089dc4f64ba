package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TimestampField holds the insertion time, in Unix milliseconds, of every
// time-series entry.
const TimestampField = "timestamp"

// TimeSeries is an Index scored by insertion time.
type TimeSeries struct {
	*Index
}

// Insert creates an entry with a generated id. The fields are stored with
// an added TimestampField, and the same time becomes the index score.
func (ts *TimeSeries) Insert(ctx context.Context, fieldsAndValues ...any) (Modification, error) {
	const op = "insert"
	e := ts.New()

	fields, err := pairs(op, e.key, fieldsAndValues)
	if err != nil {
		return Modification{}, err
	}
	for _, f := range fields {
		if f.Name == TimestampField {
			return Modification{}, newArgumentError(op, e.key, "field %q is set by the time series", TimestampField)
		}
	}

	ms := ts.client.clock.Now().UnixMilli()
	fields = append(fields, Field{Name: TimestampField, Value: ms})

	res, err := e.checkedSet(ctx, float64(ms), fields)
	if err != nil {
		return Modification{}, err
	}
	mod, ok := res.Get()
	if !ok {
		return Modification{}, newTransactionError(op, e.key, fmt.Errorf("generated id %q already holds these values", e.ID()))
	}
	return mod, nil
}

// Range returns the entries inserted between from and to, inclusive, oldest
// first.
func (ts *TimeSeries) Range(ctx context.Context, from, to time.Time) ([]*Entity, error) {
	if err := ts.client.checkOpen(); err != nil {
		return nil, err
	}
	ids, err := ts.client.rdb.ZRangeByScore(ctx, ts.collection, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, newTransactionError("range", ts.collection, err)
	}

	out := make([]*Entity, len(ids))
	for i, id := range ids {
		out[i] = newEntity(ts.client, ts.collection, id, true)
	}
	return out, nil
}
