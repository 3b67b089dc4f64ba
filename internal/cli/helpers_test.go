package cli

import (
	"bytes"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/vstore/internal/store"
	"github.com/roach88/vstore/internal/testutil"
)

// execute runs the root command with args and returns what it wrote to
// stdout.
func execute(args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// against prefixes args with the address of mr.
func against(mr *miniredis.Miniredis, args ...string) []string {
	return append([]string{"--addr", mr.Addr()}, args...)
}

// storeClient returns a store client connected to mr, for arranging state
// outside the command under test.
func storeClient(t *testing.T, mr *miniredis.Miniredis) *store.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := store.New(rdb, store.WithLogger(testutil.DiscardLogger()))
	t.Cleanup(func() {
		_ = c.Close()
		_ = rdb.Close()
	})
	return c
}
