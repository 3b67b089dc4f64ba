package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Runner is the subset of the Redis client the cache needs.
// *redis.Client and *redis.ClusterClient satisfy it.
type Runner interface {
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
}

// Observer receives script lifecycle events. Used for metrics.
type Observer interface {
	ScriptLoaded(name string)
	ScriptReloaded(name string)
}

type nopObserver struct{}

func (nopObserver) ScriptLoaded(string)   {}
func (nopObserver) ScriptReloaded(string) {}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		c.observer = o
	}
}

// Cache maps script bodies to server handles.
//
// Thread-safety: all methods are safe for concurrent use. Two goroutines
// racing on the first use of a script may both register it; the server
// returns the same handle for the same body, so the race is harmless.
type Cache struct {
	runner   Runner
	logger   *slog.Logger
	observer Observer

	mu      sync.RWMutex
	handles map[string]string // Script.Sum() -> server handle
}

// NewCache creates an empty cache over runner.
func NewCache(runner Runner, opts ...Option) *Cache {
	c := &Cache{
		runner:   runner,
		logger:   slog.Default(),
		observer: nopObserver{},
		handles:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// Reset forgets every cached handle.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = make(map[string]string)
}

// Eval executes s with the given keys and arguments and returns the raw reply.
//
// A nil reply is returned as redis.Nil, unwrapped, so callers can test for
// it with errors.Is.
func (c *Cache) Eval(ctx context.Context, s *Script, keys []string, args ...any) (any, error) {
	handle, err := c.handle(ctx, s)
	if err != nil {
		return nil, err
	}

	res, err := c.runner.EvalSha(ctx, handle, keys, args...).Result()
	if err == nil || errors.Is(err, redis.Nil) {
		return res, err
	}
	if !isNoScript(err) {
		return nil, &ExecError{Script: s.name, Op: "eval", Err: err}
	}

	// The server forgot the body. Register it again and retry once.
	c.logger.WarnContext(ctx, "script handle unknown to server, reloading",
		"script", s.name,
		"handle", handle,
	)
	c.evict(s)
	c.observer.ScriptReloaded(s.name)

	handle, err = c.handle(ctx, s)
	if err != nil {
		return nil, err
	}
	res, err = c.runner.EvalSha(ctx, handle, keys, args...).Result()
	if err == nil || errors.Is(err, redis.Nil) {
		return res, err
	}
	if isNoScript(err) {
		return nil, &ExecError{Script: s.name, Op: "eval", Err: fmt.Errorf("%w: %v", ErrStaleScript, err)}
	}
	return nil, &ExecError{Script: s.name, Op: "eval", Err: err}
}

// EvalSlice executes s and expects a multi-bulk reply.
func (c *Cache) EvalSlice(ctx context.Context, s *Script, keys []string, args ...any) ([]any, error) {
	res, err := c.Eval(ctx, s, keys, args...)
	if err != nil {
		return nil, err
	}
	out, ok := res.([]any)
	if !ok {
		return nil, &ExecError{Script: s.name, Op: "eval", Err: fmt.Errorf("unexpected reply type %T, want array", res)}
	}
	return out, nil
}

// EvalInt executes s and expects an integer reply.
func (c *Cache) EvalInt(ctx context.Context, s *Script, keys []string, args ...any) (int64, error) {
	res, err := c.Eval(ctx, s, keys, args...)
	if err != nil {
		return 0, err
	}
	n, ok := res.(int64)
	if !ok {
		return 0, &ExecError{Script: s.name, Op: "eval", Err: fmt.Errorf("unexpected reply type %T, want integer", res)}
	}
	return n, nil
}

// EvalString executes s and expects a bulk string reply.
func (c *Cache) EvalString(ctx context.Context, s *Script, keys []string, args ...any) (string, error) {
	res, err := c.Eval(ctx, s, keys, args...)
	if err != nil {
		return "", err
	}
	str, ok := res.(string)
	if !ok {
		return "", &ExecError{Script: s.name, Op: "eval", Err: fmt.Errorf("unexpected reply type %T, want string", res)}
	}
	return str, nil
}

// handle returns the cached server handle for s, registering it if needed.
func (c *Cache) handle(ctx context.Context, s *Script) (string, error) {
	c.mu.RLock()
	h, ok := c.handles[s.sum]
	c.mu.RUnlock()
	if ok {
		return h, nil
	}

	h, err := c.runner.ScriptLoad(ctx, s.src).Result()
	if err != nil {
		return "", &ExecError{Script: s.name, Op: "load", Err: err}
	}

	c.mu.Lock()
	c.handles[s.sum] = h
	c.mu.Unlock()

	c.observer.ScriptLoaded(s.name)
	c.logger.DebugContext(ctx, "script loaded",
		"script", s.name,
		"handle", h,
	)
	return h, nil
}

func (c *Cache) evict(s *Script) {
	c.mu.Lock()
	delete(c.handles, s.sum)
	c.mu.Unlock()
}

func isNoScript(err error) bool {
	return redis.HasErrorPrefix(err, "NOSCRIPT")
}
