package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CloseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	e := mustEntity(t, c, "objs", "x")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := e.CheckedTouch(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.CheckedSet(ctx, "a", 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Publish(ctx, "ch", "m")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.NewSubscription()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Clone()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_CloseLeavesSharedRedisOpen(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Close())
	assert.NoError(t, c.Redis().Ping(context.Background()).Err())
}

func TestClient_CloneIsIndependent(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	clone, err := c.Clone()
	require.NoError(t, err)
	assert.NotSame(t, c.Redis(), clone.Redis())

	_, err = mustEntity(t, clone, "objs", "x").CheckedSet(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, clone.scripts.Len())
	assert.Equal(t, 0, c.scripts.Len())

	require.NoError(t, clone.Close())
	assert.Error(t, clone.Redis().Ping(ctx).Err())

	// The original shares the same data and keeps working.
	v, err := mustEntity(t, c, "objs", "x").Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestClient_EntityValidation(t *testing.T) {
	c, _ := newTestClient(t)
	for _, tc := range []struct{ collection, id string }{
		{"", "x"},
		{"a:b", "x"},
		{"@latch", "x"},
		{"objs", ""},
		{"objs", "x:y"},
	} {
		_, err := c.Entity(tc.collection, tc.id)
		assert.True(t, IsArgumentError(err), "%q/%q", tc.collection, tc.id)
	}
}

func TestClient_SubscriptionsClosedWithClient(t *testing.T) {
	c, _ := newTestClient(t)
	sub, err := c.Subscribe(context.Background(), "ch", func(string, string) {})
	require.NoError(t, err)
	assert.Equal(t, []string{"ch"}, sub.Channels())

	require.NoError(t, c.Close())
	assert.Empty(t, sub.Channels())
}

func TestClient_MergeIfDistinct(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	dups, err := c.MergeIfDistinct(ctx, "tags", []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, dups)

	dups, err = c.MergeIfDistinct(ctx, "tags", []string{"c", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, dups)

	members, err := mr.Members("tags")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	dups, err = c.MergeIfDistinct(ctx, "tags", nil)
	require.NoError(t, err)
	assert.Empty(t, dups)

	_, err = c.MergeIfDistinct(ctx, "", []string{"a"})
	assert.True(t, IsArgumentError(err))
}
