package harness

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/store"
	"github.com/roach88/vstore/internal/testutil"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestRun_ExpectationFailuresReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: expectations that do not hold
collection: objs
steps:
  - op: touch
    id: x
    expect:
      version: 2
      payload: '{"x":{"v":2}}'
  - op: touch
    id: x
    expect:
      inserted: true
  - op: set
    id: x
    fields: {a: 1}
    expect:
      error: ARGUMENT
assertions:
  - type: published_count
    count: 5
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "expected version 2, got 1")
	assert.Contains(t, result.Errors[1], "expected payload")
	assert.Contains(t, result.Errors[2], "expected inserted true, got false")
	assert.Contains(t, result.Errors[3], `expected error "ARGUMENT", got ""`)
	assert.Contains(t, result.Errors[4], "published_count")
}

func TestRun_UnexpectedErrorAborts(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: abort
description: reserved field without an expected error
collection: objs
steps:
  - op: set
    id: x
    fields: {v: 1}
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (set x)")
}

func TestRun_EmptyInternalPrefixPublishesEverything(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: no_prefix
description: with an empty prefix underscore fields are public
collection: objs
internal_prefix: ""
steps:
  - op: set
    id: x
    fields: {_a: 1}
    expect:
      payload: '{"x":{"v":1,"_a":1}}'
assertions:
  - type: published_count
    count: 1
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
	assert.Equal(t, []string{`{"x":{"v":1,"_a":1}}`}, result.Published)
}

func TestRun_FinalStateMismatch(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: state
description: final state disagrees
collection: objs
steps:
  - op: set
    id: x
    fields: {a: 1, b: two}
assertions:
  - type: final_state
    id: x
    fields: {b: three}
  - type: final_state
    id: x
    version: 4
  - type: index_members
    members: [x, y]
  - type: final_state
    id: x
    exists: true
    version: 1
    fields: {a: 1, b: two}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `x.b = "three"`)
	assert.Contains(t, result.Errors[1], "version 4")
	assert.Contains(t, result.Errors[2], "[x y]")
}

func TestSnapshot_MarshalIsCanonical(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		Trace:        []TraceEvent{{Step: 1, Op: OpTouch, ID: "x", Version: 1}},
		Published:    []string{},
	}
	data, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"published":[],"scenario_name":"s","trace":[{"id":"x","op":"touch","step":1,"version":1}]}`,
		string(data))
}

func TestRunWith_LogsThroughClientLogger(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: logged
description: an expected failure is logged by the caller's client logger
collection: objs
steps:
  - op: set
    id: x
    fields: {v: 1}
    expect:
      error: ARGUMENT
`))
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, rdb := testutil.NewRedis(t)
	client := store.New(rdb, store.WithLogger(logger), store.WithUnsubscribeTimeout(time.Second))

	result, err := RunWith(context.Background(), client, s)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.True(t, result.Pass, "%v", result.Errors)
	assert.Contains(t, buf.String(), "step failed as expected")
	assert.Contains(t, buf.String(), "code=ARGUMENT")
}
