package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/store"
	"github.com/roach88/vstore/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, store.DefaultInternalPrefix, *cfg.InternalPrefix)
	assert.Equal(t, int64(store.DefaultScanPageSize), cfg.ScanPageSize)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: redis.internal:6380
  db: 2
scan_page_size: 500
unsubscribe_timeout: 250ms
journal:
  path: /var/lib/vstore/journal.db
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, int64(500), cfg.ScanPageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.UnsubscribeTimeout)
	assert.Equal(t, "/var/lib/vstore/journal.db", cfg.Journal.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "_", *cfg.InternalPrefix)
}

func TestLoad_EmptyInternalPrefixOverridesDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, "internal_prefix: \"\"\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.InternalPrefix)
	assert.Equal(t, "", *cfg.InternalPrefix)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Redis, cfg.Redis)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "redis:\n  adress: x\n"))
	assert.ErrorContains(t, err, "adress")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		EnvRedisAddr:     "10.0.0.1:6379",
		EnvRedisPassword: "hunter2",
		EnvRedisDB:       "3",
		EnvLogLevel:      "debug",
	}))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts := cfg.RedisOptions()
	assert.Equal(t, "10.0.0.1:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
}

func TestApplyEnv_BadDB(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{EnvRedisDB: "three"}))
	assert.ErrorContains(t, err, EnvRedisDB)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Redis.Addr = ""
	cfg.ScanPageSize = 0
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"redis.addr", "scan_page_size", "log.level", "log.format"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf, false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	logger, err = cfg.NewLogger(&buf, true)
	require.NoError(t, err)
	logger.Debug("verbose")
	assert.Contains(t, buf.String(), "verbose")
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.ClientOptions(nil), 3)
	assert.Len(t, cfg.ClientOptions(testutil.DiscardLogger()), 4)
}
