package store

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/codec"
)

func TestMetrics_MutationsAndScripts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, mr := newTestClient(t, WithRegisterer(reg))
	ctx := context.Background()
	e := mustEntity(t, c, "objs", "x")

	_, err := e.CheckedSet(ctx, "a", 1)
	require.NoError(t, err)
	_, err = e.CheckedSet(ctx, "a", 1)
	require.NoError(t, err)
	_, err = e.CheckedDelete(ctx)
	require.NoError(t, err)
	_, err = e.CheckedDelete(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.mutations.WithLabelValues(opSet, outcomeApplied)))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.mutations.WithLabelValues(opSet, outcomeNoop)))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.mutations.WithLabelValues(opDelete, outcomeApplied)))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.mutations.WithLabelValues(opDelete, outcomeNoop)))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.metrics.scriptLoads))
	assert.Equal(t, 0.0, promtest.ToFloat64(c.metrics.scriptReloads))

	mr.ScriptFlush()
	_, err = e.CheckedSet(ctx, "a", 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, promtest.ToFloat64(c.metrics.scriptLoads))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.scriptReloads))
}

func TestMetrics_Callbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestClient(t, WithRegisterer(reg))
	c.OnInsert("objs", func(*Entity) {})
	c.OnChange("objs", Wildcard, func(*Entity, string, codec.Value, codec.Value) {})

	_, err := mustEntity(t, c, "objs", "x").CheckedSet(context.Background(), "a", 1, "b", 2)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.callbacks.WithLabelValues("insert")))
	assert.Equal(t, 2.0, promtest.ToFloat64(c.metrics.callbacks.WithLabelValues("change")))
}

func TestMetrics_ClonesShareCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestClient(t, WithRegisterer(reg))
	clone, err := c.Clone()
	require.NoError(t, err)
	defer clone.Close()

	_, err = mustEntity(t, clone, "objs", "x").CheckedTouch(context.Background())
	require.NoError(t, err)

	assert.Same(t, c.metrics.mutations, clone.metrics.mutations)
	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.mutations.WithLabelValues(opTouch, outcomeApplied)))
}

func TestMetrics_NoRegisterer(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := mustEntity(t, c, "objs", "x").CheckedTouch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(c.metrics.mutations.WithLabelValues(opTouch, outcomeApplied)))
}
