package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/testutil"
)

func seed(t *testing.T, c *Client, collection string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("e%03d", i)
		_, err := mustEntity(t, c, collection, ids[i]).CheckedTouch(context.Background())
		require.NoError(t, err)
	}
	return ids
}

func TestIndex_AllVisitsEveryMemberOnce(t *testing.T) {
	for _, pageSize := range []int64{1, 3, 10, 1000} {
		t.Run(fmt.Sprintf("page=%d", pageSize), func(t *testing.T) {
			c, _ := newTestClient(t, WithScanPageSize(pageSize))
			ids := seed(t, c, "objs", 25)
			idx, err := c.Index("objs")
			require.NoError(t, err)

			seen := make(map[string]int)
			for e, err := range idx.All(context.Background()) {
				require.NoError(t, err)
				assert.Equal(t, "objs", e.Collection())
				seen[e.ID()]++
			}

			assert.Len(t, seen, len(ids))
			for _, id := range ids {
				assert.Equal(t, 1, seen[id], "id %s", id)
			}
		})
	}
}

func TestIndex_AllIsRestartable(t *testing.T) {
	c, _ := newTestClient(t)
	seed(t, c, "objs", 5)
	idx, err := c.Index("objs")
	require.NoError(t, err)

	first, err := idx.IDs(context.Background())
	require.NoError(t, err)
	second, err := idx.IDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, first, second)
	assert.Len(t, first, 5)
}

func TestIndex_AllStopsEarly(t *testing.T) {
	c, _ := newTestClient(t)
	seed(t, c, "objs", 10)
	idx, err := c.Index("objs")
	require.NoError(t, err)

	n := 0
	for _, err := range idx.All(context.Background()) {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestIndex_ScanPropagatesCallbackError(t *testing.T) {
	c, _ := newTestClient(t)
	seed(t, c, "objs", 4)
	idx, err := c.Index("objs")
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = idx.Scan(context.Background(), func(*Entity) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestIndex_CountHasAndDelete(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	seed(t, c, "objs", 3)
	idx, err := c.Index("objs")
	require.NoError(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	e, err := idx.Get("e001")
	require.NoError(t, err)
	ok, err := e.CheckedDelete(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	has, err := idx.Has(ctx, "e001")
	require.NoError(t, err)
	assert.False(t, has)
	has, err = idx.Has(ctx, "e000")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestIndex_GetManyDeduplicatesWithoutExistenceCheck(t *testing.T) {
	c, _ := newTestClient(t)
	idx, err := c.Index("objs")
	require.NoError(t, err)

	es, err := idx.GetMany("x", "y", "x", "never-written")
	require.NoError(t, err)
	require.Len(t, es, 3)
	assert.Equal(t, "x", es[0].ID())
	assert.Equal(t, "y", es[1].ID())
	assert.Equal(t, "never-written", es[2].ID())
}

func TestIndex_GetRejectsBadIDs(t *testing.T) {
	c, _ := newTestClient(t)
	idx, err := c.Index("objs")
	require.NoError(t, err)

	_, err = idx.Get("")
	assert.True(t, IsArgumentError(err))
	_, err = idx.Get("a:b")
	assert.True(t, IsArgumentError(err))
	_, err = idx.GetMany("ok", "bad:id")
	assert.True(t, IsArgumentError(err))
}

func TestIndex_NewUsesGenerator(t *testing.T) {
	c, _ := newTestClient(t, WithIDGenerator(testutil.NewCountingGenerator("obj")))
	idx, err := c.Index("objs")
	require.NoError(t, err)

	assert.Equal(t, "obj-1", idx.New().ID())
	assert.Equal(t, "obj-2", idx.New().ID())
}

func TestIndex_NewDefaultsToUUIDv7(t *testing.T) {
	c, _ := newTestClient(t)
	idx, err := c.Index("objs")
	require.NoError(t, err)

	a, b := idx.New().ID(), idx.New().ID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestIndex_RandomMember(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	idx, err := c.Index("objs")
	require.NoError(t, err)

	m, err := idx.RandomMember(ctx)
	require.NoError(t, err)
	assert.False(t, m.IsPresent())

	seed(t, c, "objs", 3)
	m, err = idx.RandomMember(ctx)
	require.NoError(t, err)
	// Not uniform: always the lowest-ranked member.
	assert.Equal(t, "e000", m.MustGet().ID())
}

func TestEntity_UncheckedTouchIndexesWithoutVersion(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	e := mustEntity(t, c, "objs", "bulk")

	require.NoError(t, e.Touch(ctx))
	idx, err := c.Index("objs")
	require.NoError(t, err)
	has, err := idx.Has(ctx, "bulk")
	require.NoError(t, err)
	assert.True(t, has)

	v, err := e.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestTimeSeries_InsertAndRange(t *testing.T) {
	clock := testutil.NewStepClock(time.Second)
	c, _ := newTestClient(t,
		WithClock(clock),
		WithIDGenerator(testutil.NewCountingGenerator("ev")),
	)
	ctx := context.Background()
	ts, err := c.TimeSeries("events")
	require.NoError(t, err)

	var mods []Modification
	for i := 0; i < 4; i++ {
		mod, err := ts.Insert(ctx, "n", i)
		require.NoError(t, err)
		assert.True(t, mod.Inserted)
		mods = append(mods, mod)
	}

	first := mods[0]
	assert.Equal(t, "ev-1", first.Entity.ID())
	assert.Equal(t, []string{"n", TimestampField}, first.Fields())
	ms, err := first.Diff[1].After.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch.UnixMilli(), ms)
	assert.Equal(t,
		fmt.Sprintf(`{"ev-1":{"v":1,"n":0,"timestamp":%d}}`, testutil.Epoch.UnixMilli()),
		first.Payload.MustGet())

	got, err := ts.Range(ctx, testutil.Epoch.Add(time.Second), testutil.Epoch.Add(2*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-2", got[0].ID())
	assert.Equal(t, "ev-3", got[1].ID())

	oldest, err := ts.RandomMember(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ev-1", oldest.MustGet().ID())
}

func TestTimeSeries_InsertRejectsTimestampField(t *testing.T) {
	c, _ := newTestClient(t)
	ts, err := c.TimeSeries("events")
	require.NoError(t, err)

	_, err = ts.Insert(context.Background(), TimestampField, 1)
	assert.True(t, IsArgumentError(err))
}
