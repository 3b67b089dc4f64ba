// Package config loads vstore settings from YAML files and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vstore/internal/store"
)

// Environment variables read by ApplyEnv.
const (
	EnvRedisAddr     = "VSTORE_REDIS_ADDR"
	EnvRedisPassword = "VSTORE_REDIS_PASSWORD"
	EnvRedisDB       = "VSTORE_REDIS_DB"
	EnvLogLevel      = "VSTORE_LOG_LEVEL"
)

// Config holds the settings of a vstore client.
type Config struct {
	Redis              RedisConfig   `yaml:"redis"`
	InternalPrefix     *string       `yaml:"internal_prefix,omitempty"`
	ScanPageSize       int64         `yaml:"scan_page_size,omitempty"`
	UnsubscribeTimeout time.Duration `yaml:"unsubscribe_timeout,omitempty"`
	Journal            JournalConfig `yaml:"journal"`
	Log                LogConfig     `yaml:"log"`
}

// RedisConfig selects the Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// JournalConfig locates the change journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text or json
}

// Default returns a Config with sensible defaults.
func Default() Config {
	prefix := store.DefaultInternalPrefix
	return Config{
		Redis:              RedisConfig{Addr: "localhost:6379"},
		InternalPrefix:     &prefix,
		ScanPageSize:       store.DefaultScanPageSize,
		UnsubscribeTimeout: 5 * time.Second,
		Log:                LogConfig{Level: "info", Format: "text"},
	}
}

// Merge applies non-zero values from source into c. InternalPrefix is a
// pointer so that an explicit empty prefix can override the default.
func (c *Config) Merge(source *Config) {
	if source.Redis.Addr != "" {
		c.Redis.Addr = source.Redis.Addr
	}
	if source.Redis.Username != "" {
		c.Redis.Username = source.Redis.Username
	}
	if source.Redis.Password != "" {
		c.Redis.Password = source.Redis.Password
	}
	if source.Redis.DB != 0 {
		c.Redis.DB = source.Redis.DB
	}
	if source.InternalPrefix != nil {
		prefix := *source.InternalPrefix
		c.InternalPrefix = &prefix
	}
	if source.ScanPageSize > 0 {
		c.ScanPageSize = source.ScanPageSize
	}
	if source.UnsubscribeTimeout > 0 {
		c.UnsubscribeTimeout = source.UnsubscribeTimeout
	}
	if source.Journal.Path != "" {
		c.Journal.Path = source.Journal.Path
	}
	if source.Log.Level != "" {
		c.Log.Level = source.Log.Level
	}
	if source.Log.Format != "" {
		c.Log.Format = source.Log.Format
	}
}

// Load reads a YAML config file and merges it over the defaults. Unknown
// keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var loaded Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&loaded); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.Merge(&loaded)
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables read through
// lookup, normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		c.Redis.Password = v
	}
	if v, ok := lookup(EnvRedisDB); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		c.Redis.DB = db
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must not be negative, got %d", c.Redis.DB))
	}
	if c.ScanPageSize <= 0 {
		errs = append(errs, fmt.Errorf("scan_page_size must be positive, got %d", c.ScanPageSize))
	}
	if c.UnsubscribeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("unsubscribe_timeout must be positive, got %s", c.UnsubscribeTimeout))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// RedisOptions returns connection options for go-redis.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Username: c.Redis.Username,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// ClientOptions returns store options reflecting the settings.
func (c *Config) ClientOptions(logger *slog.Logger) []store.Option {
	opts := []store.Option{
		store.WithScanPageSize(c.ScanPageSize),
		store.WithUnsubscribeTimeout(c.UnsubscribeTimeout),
	}
	if c.InternalPrefix != nil {
		opts = append(opts, store.WithInternalPrefix(*c.InternalPrefix))
	}
	if logger != nil {
		opts = append(opts, store.WithLogger(logger))
	}
	return opts
}

// NewLogger builds a logger writing to w in the configured format and level.
// verbose forces debug level.
func (c *Config) NewLogger(w io.Writer, verbose bool) (*slog.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
