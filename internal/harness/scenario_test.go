package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_File(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/latch.yaml")
	require.NoError(t, err)
	assert.Equal(t, "latch", s.Name)
	assert.Equal(t, "jobs", s.Collection)
	require.Len(t, s.Steps, 4)
	assert.Equal(t, OpLatchInit, s.Steps[0].Op)
	assert.Equal(t, int64(2), s.Steps[0].Count)
	assert.Equal(t, []string{"result", "missing"}, s.Steps[2].Names)
	assert.Equal(t, ErrorLatchNotFound, s.Steps[3].Expect.Error)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenarios_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: x\n"), 0o644))

	_, err := LoadScenarios(dir)
	assert.ErrorContains(t, err, "bad.yaml")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: d
collection: objs
step:
  - op: touch
    id: x
`))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	base := "name: n\ndescription: d\ncollection: objs\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "description: d\ncollection: c\nsteps: [{op: touch, id: x}]\n", "name is required"},
		{"no description", "name: n\ncollection: c\nsteps: [{op: touch, id: x}]\n", "description is required"},
		{"no collection", "name: n\ndescription: d\nsteps: [{op: touch, id: x}]\n", "collection is required"},
		{"no steps", base, "steps list is required"},
		{"no id", base + "steps: [{op: touch}]\n", "steps[0]: id is required"},
		{"no op", base + "steps: [{id: x}]\n", "steps[0]: op is required"},
		{"unknown op", base + "steps: [{op: upsert, id: x}]\n", `unknown op "upsert"`},
		{"set without fields", base + "steps: [{op: set, id: x}]\n", "fields are required for set"},
		{"clear without names", base + "steps: [{op: clear, id: x}]\n", "names are required for clear"},
		{"touch with fields", base + "steps: [{op: touch, id: x, fields: {a: 1}}]\n", "touch takes no fields"},
		{"latch without count", base + "steps: [{op: latch_init, id: x}]\n", "count must be at least 1"},
		{"count missing", base + "steps: [{op: touch, id: x}]\nassertions: [{type: published_count}]\n", "count is required"},
		{"state without id", base + "steps: [{op: touch, id: x}]\nassertions: [{type: final_state}]\n", "id is required for final_state"},
		{"unknown assertion", base + "steps: [{op: touch, id: x}]\nassertions: [{type: trace_order}]\n", `unknown assertion type "trace_order"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
