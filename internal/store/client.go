package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/vstore/internal/codec"
	"github.com/roach88/vstore/internal/pubsub"
	"github.com/roach88/vstore/internal/script"
)

// DefaultScanPageSize is the COUNT hint for index scans.
const DefaultScanPageSize = 100

// Client is the entry point to the store. It owns the script cache, the
// local callback registry and any subscriptions opened through it.
//
// Thread-safety: a Client is safe for concurrent use; go-redis pools
// connections underneath. Clone gives a caller its own connection pool and
// its own callback registry.
type Client struct {
	rdb     *redis.Client
	ownsRDB bool

	scripts            *script.Cache
	codec              codec.Codec
	logger             *slog.Logger
	internalPrefix     string
	scanPageSize       int64
	ids                IDGenerator
	clock              Clock
	unsubscribeTimeout time.Duration
	registerer         prometheus.Registerer
	metrics            *metrics
	callbacks          *registry

	mu     sync.Mutex
	subs   []*pubsub.Subscription
	closed atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCodec sets the value codec. Change messages embed encoded values
// verbatim, so the codec must produce JSON.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) {
		c.codec = cd
	}
}

// WithInternalPrefix sets the prefix of fields that are never published.
// An empty prefix publishes every field. Default: "_".
func WithInternalPrefix(prefix string) Option {
	return func(c *Client) {
		c.internalPrefix = prefix
	}
}

// WithScanPageSize sets the COUNT hint used by index scans.
func WithScanPageSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.scanPageSize = n
		}
	}
}

// WithRegisterer registers the client's Prometheus collectors on reg.
// Without it the collectors are kept but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithIDGenerator sets the generator used by Index.New.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Client) {
		c.ids = g
	}
}

// WithClock sets the clock used for time-series scores.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithUnsubscribeTimeout bounds how long closing a subscription waits for
// the server to acknowledge.
func WithUnsubscribeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.unsubscribeTimeout = d
	}
}

// New creates a Client over rdb. The caller keeps ownership of rdb: Close
// does not close it.
func New(rdb *redis.Client, opts ...Option) *Client {
	c := &Client{
		rdb:                rdb,
		codec:              codec.Default,
		logger:             slog.Default(),
		internalPrefix:     DefaultInternalPrefix,
		scanPageSize:       DefaultScanPageSize,
		ids:                UUIDv7Generator{},
		clock:              SystemClock{},
		unsubscribeTimeout: pubsub.DefaultUnsubscribeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.init()
	return c
}

func (c *Client) init() {
	c.metrics = newMetrics(c.registerer)
	c.scripts = script.NewCache(c.rdb,
		script.WithLogger(c.logger),
		script.WithObserver(c.metrics),
	)
	c.callbacks = newRegistry()
}

// Clone returns an independent Client with the same settings, a new
// connection pool, an empty script cache and an empty callback registry.
// The clone owns its connections and closes them in Close.
func (c *Client) Clone() (*Client, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	opt := *c.rdb.Options()
	clone := &Client{
		rdb:                redis.NewClient(&opt),
		ownsRDB:            true,
		codec:              c.codec,
		logger:             c.logger,
		internalPrefix:     c.internalPrefix,
		scanPageSize:       c.scanPageSize,
		ids:                c.ids,
		clock:              c.clock,
		unsubscribeTimeout: c.unsubscribeTimeout,
		registerer:         c.registerer,
	}
	clone.init()
	return clone, nil
}

// Close closes every subscription opened through the client and drops all
// local callbacks. Subsequent operations fail with ErrClosed. Close is
// idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.callbacks.clear()
	c.scripts.Reset()

	if c.ownsRDB {
		if err := c.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) checkOpen() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Logger returns the logger the client was configured with.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Redis returns the underlying client.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Index returns the membership index of collection.
func (c *Client) Index(collection string) (*Index, error) {
	if err := validateCollection("index", collection); err != nil {
		return nil, err
	}
	return &Index{client: c, collection: collection}, nil
}

// TimeSeries returns collection as a time series.
func (c *Client) TimeSeries(collection string) (*TimeSeries, error) {
	if err := validateCollection("time series", collection); err != nil {
		return nil, err
	}
	return &TimeSeries{Index: &Index{client: c, collection: collection, series: true}}, nil
}

// Entity is shorthand for Index(collection) followed by Get(id).
func (c *Client) Entity(collection, id string) (*Entity, error) {
	x, err := c.Index(collection)
	if err != nil {
		return nil, err
	}
	return x.Get(id)
}

// Latch returns the count-down latch with the given id.
func (c *Client) Latch(id string) (*Latch, error) {
	if id == "" {
		return nil, newArgumentError("latch", "", "empty latch id")
	}
	return &Latch{client: c, id: id, key: LatchKey(id)}, nil
}

// OnInsert registers fn for entities of collection reaching version 1.
// The returned func unregisters it.
func (c *Client) OnInsert(collection string, fn InsertFunc) func() {
	return c.callbacks.onInsert(collection, fn)
}

// OnDelete registers fn for successful checked deletes in collection.
func (c *Client) OnDelete(collection string, fn DeleteFunc) func() {
	return c.callbacks.onDelete(collection, fn)
}

// OnChange registers fn for changes of field in collection. Wildcard
// matches every field.
func (c *Client) OnChange(collection, field string, fn ChangeFunc) func() {
	return c.callbacks.onChange(collection, field, fn)
}

// Subscribe opens a dedicated subscription and subscribes it to channel.
// More channels can be added through the returned Subscription.
func (c *Client) Subscribe(ctx context.Context, channel string, handler pubsub.Handler) (*pubsub.Subscription, error) {
	sub, err := c.NewSubscription()
	if err != nil {
		return nil, err
	}
	if err := sub.Subscribe(ctx, channel, handler); err != nil {
		c.forget(sub)
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

// NewSubscription opens a dedicated subscription with no channels.
func (c *Client) NewSubscription() (*pubsub.Subscription, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	sub := pubsub.New(c.rdb,
		pubsub.WithLogger(c.logger),
		pubsub.WithUnsubscribeTimeout(c.unsubscribeTimeout),
	)

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

func (c *Client) forget(sub *pubsub.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// Publish sends message on channel and returns the number of receivers.
func (c *Client) Publish(ctx context.Context, channel, message string) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	n, err := c.rdb.Publish(ctx, channel, message).Result()
	if err != nil {
		return 0, newTransactionError("publish", channel, err)
	}
	return n, nil
}

// MergeIfDistinct adds values to the set at setKey only if none of them is
// already a member, atomically. It returns the values that were already
// present; an empty result means the merge happened.
func (c *Client) MergeIfDistinct(ctx context.Context, setKey string, values []string) ([]string, error) {
	const op = "merge if distinct"
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if setKey == "" {
		return nil, newArgumentError(op, "", "empty set key")
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	reply, err := c.scripts.EvalSlice(ctx, mergeIfDistinctScript, []string{setKey}, args...)
	if err != nil {
		return nil, newTransactionError(op, setKey, err)
	}
	dups := make([]string, 0, len(reply))
	for _, r := range reply {
		s, ok := r.(string)
		if !ok {
			return nil, newTransactionError(op, setKey, fmt.Errorf("member is %T, want string", r))
		}
		dups = append(dups, s)
	}
	return dups, nil
}
