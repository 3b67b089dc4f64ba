package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetThenGet(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := execute(against(mr, "set", "objs", "x", "a=1", "b=two")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x v1 (inserted)\na: <absent> -> 1\nb: <absent> -> \"two\"\n", out)

	out, err = execute(against(mr, "get", "objs", "x")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x v1\na=1\nb=\"two\"\n", out)

	out, err = execute(against(mr, "get", "objs", "x", "a", "missing")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x v1\na=1\nmissing (absent)\n", out)
}

func TestSet_NoopIsUnchanged(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := execute(against(mr, "set", "objs", "x", "a=1")...)
	require.NoError(t, err)
	out, err := execute(against(mr, "set", "objs", "x", `a=1`)...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x unchanged\n", out)

	out, err = execute(against(mr, "set", "objs", "x", "a=2")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x v2\na: 1 -> 2\n", out)
}

func TestSet_JSON(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := execute(against(mr, "--format", "json", "set", "objs", "x", `tags=["a", "b"]`, "_note=hidden")...)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   mutationView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Modified)
	assert.True(t, resp.Data.Inserted)
	assert.Equal(t, int64(1), resp.Data.Version)
	require.NotNil(t, resp.Data.Payload)
	assert.Equal(t, `{"x":{"v":1,"tags":["a","b"]}}`, *resp.Data.Payload)
	require.Len(t, resp.Data.Diff, 2)
	assert.Equal(t, "tags", resp.Data.Diff[0].Field)
	assert.Nil(t, resp.Data.Diff[0].Before)
	assert.Equal(t, `["a","b"]`, string(resp.Data.Diff[0].After))
	assert.Equal(t, "_note", resp.Data.Diff[1].Field)
}

func TestSet_Errors(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := execute(against(mr, "set", "objs", "x", "novalue")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "expected field=value")

	out, err := execute(against(mr, "--format", "json", "set", "objs", "x", "v=3")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `"code":"ARGUMENT"`)

	_, err = execute(against(mr, "set", "objs", "a:b", "f=1")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid entity")

	assert.False(t, mr.Exists("objs:x"))
}

func TestClear(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := execute(against(mr, "set", "objs", "x", "a=1", "b=2")...)
	require.NoError(t, err)

	out, err := execute(against(mr, "clear", "objs", "x", "a", "zzz")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x v2\na: 1 -> <absent>\n", out)

	out, err = execute(against(mr, "clear", "objs", "x", "a")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x unchanged\n", out)
}

func TestTouch(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := execute(against(mr, "touch", "objs", "x")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x v1 (inserted)\n", out)

	out, err = execute(against(mr, "touch", "objs", "x")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x v2\n", out)
}

func TestDelete(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := execute(against(mr, "touch", "objs", "x")...)
	require.NoError(t, err)

	out, err := execute(against(mr, "delete", "objs", "x")...)
	require.NoError(t, err)
	assert.Equal(t, "objs:x deleted\n", out)

	out, err = execute(against(mr, "delete", "objs", "x")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "objs:x not found\n", out)
}

func TestGet_Missing(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := execute(against(mr, "get", "objs", "nope")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "objs:nope does not exist\n", out)
}

func TestListAndCount(t *testing.T) {
	mr := miniredis.RunT(t)
	c := storeClient(t, mr)
	for _, id := range []string{"c", "a", "b"} {
		e, err := c.Entity("objs", id)
		require.NoError(t, err)
		_, err = e.CheckedTouch(context.Background())
		require.NoError(t, err)
	}

	out, err := execute(against(mr, "count", "objs")...)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = execute(against(mr, "list", "objs")...)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, strings.Fields(out))

	out, err = execute(against(mr, "list", "objs", "--limit", "2")...)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(out), 2)

	out, err = execute(against(mr, "--format", "json", "list", "empty")...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"collection":"empty","ids":[]}}`, out)
}

func TestList_RejectsReservedCollection(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := execute(against(mr, "list", "@latch")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseAssignments(t *testing.T) {
	pairs, err := parseAssignments([]string{"n=1", "s=text", `q="quoted"`, "e=", "eq=a=b", "o={\"k\":true}"})
	require.NoError(t, err)
	assert.Equal(t, []any{
		"n", json.RawMessage("1"),
		"s", "text",
		"q", json.RawMessage(`"quoted"`),
		"e", "",
		"eq", "a=b",
		"o", json.RawMessage(`{"k":true}`),
	}, pairs)

	_, err = parseAssignments([]string{"=1"})
	assert.Error(t, err)
}
