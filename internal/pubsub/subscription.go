package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultUnsubscribeTimeout bounds the acknowledgement wait in Close.
const DefaultUnsubscribeTimeout = 5 * time.Second

// receiveRetryDelay is the pause after a failed read before the listener
// tries again. go-redis reconnects and resubscribes on the next read.
const receiveRetryDelay = 100 * time.Millisecond

// ErrClosed is returned by operations on a closed Subscription.
var ErrClosed = errors.New("subscription closed")

// Handler receives one message. It runs on the listener goroutine, so a slow
// handler delays every later message on the same Subscription.
type Handler func(channel, message string)

// Subscriber is the part of the Redis client that opens pub/sub connections.
// *redis.Client satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Option configures a Subscription.
type Option func(*Subscription)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Subscription) {
		s.logger = logger
	}
}

// WithUnsubscribeTimeout bounds how long Close waits for the server to
// acknowledge unsubscribing.
func WithUnsubscribeTimeout(d time.Duration) Option {
	return func(s *Subscription) {
		s.unsubscribeTimeout = d
	}
}

type entry struct {
	handler Handler
	once    bool
}

type ackKey struct {
	kind    string // "subscribe" or "unsubscribe"
	channel string
}

// Subscription multiplexes any number of channels over one dedicated
// pub/sub connection.
//
// Thread-safety: Subscribe, Unsubscribe, SubscribeOnce and Close are safe
// for concurrent use. Handlers must not call Subscribe or Unsubscribe
// synchronously: both wait for an acknowledgement that only the listener
// goroutine can read. The same holds for Close, which also waits for the
// listener goroutine to exit; a handler that wants to close its
// Subscription must do so from a new goroutine.
type Subscription struct {
	ps                 *redis.PubSub
	logger             *slog.Logger
	unsubscribeTimeout time.Duration

	mu       sync.Mutex
	handlers map[string]*entry
	waiters  map[ackKey][]chan struct{}
	closed   bool

	done    chan struct{}
	stopped chan struct{}
}

// New opens a pub/sub connection and starts its listener goroutine.
func New(rdb Subscriber, opts ...Option) *Subscription {
	s := &Subscription{
		ps:                 rdb.Subscribe(context.Background()),
		logger:             slog.Default(),
		unsubscribeTimeout: DefaultUnsubscribeTimeout,
		handlers:           make(map[string]*entry),
		waiters:            make(map[ackKey][]chan struct{}),
		done:               make(chan struct{}),
		stopped:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.listen()
	return s
}

// Subscribe registers handler for channel and blocks until the server
// acknowledges the subscription. Subscribing again to the same channel
// replaces its handler.
func (s *Subscription) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return s.subscribe(ctx, channel, &entry{handler: handler})
}

// SubscribeOnce is Subscribe for a single message: the handler is dropped
// before it runs and the channel is unsubscribed without waiting for the
// acknowledgement.
func (s *Subscription) SubscribeOnce(ctx context.Context, channel string, handler Handler) error {
	return s.subscribe(ctx, channel, &entry{handler: handler, once: true})
}

func (s *Subscription) subscribe(ctx context.Context, channel string, e *entry) error {
	if channel == "" {
		return fmt.Errorf("subscribe: empty channel name")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.handlers[channel] = e
	ack := s.addWaiterLocked(ackKey{"subscribe", channel})
	s.mu.Unlock()

	if err := s.ps.Subscribe(ctx, channel); err != nil {
		s.mu.Lock()
		if s.handlers[channel] == e {
			delete(s.handlers, channel)
		}
		s.removeWaiterLocked(ackKey{"subscribe", channel}, ack)
		s.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	if err := s.await(ctx, ackKey{"subscribe", channel}, ack); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	s.logger.DebugContext(ctx, "subscribed", "channel", channel)
	return nil
}

// Unsubscribe drops the handler for channel and blocks until the server
// acknowledges.
func (s *Subscription) Unsubscribe(ctx context.Context, channel string) error {
	if channel == "" {
		return fmt.Errorf("unsubscribe: empty channel name")
	}
	if err := s.unsubscribe(ctx, []string{channel}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", channel, err)
	}
	return nil
}

func (s *Subscription) unsubscribe(ctx context.Context, channels []string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	acks := make([]chan struct{}, len(channels))
	for i, ch := range channels {
		delete(s.handlers, ch)
		acks[i] = s.addWaiterLocked(ackKey{"unsubscribe", ch})
	}
	s.mu.Unlock()

	err := s.ps.Unsubscribe(ctx, channels...)
	for i, ch := range channels {
		if err != nil {
			s.mu.Lock()
			s.removeWaiterLocked(ackKey{"unsubscribe", ch}, acks[i])
			s.mu.Unlock()
			continue
		}
		if werr := s.await(ctx, ackKey{"unsubscribe", ch}, acks[i]); werr != nil {
			err = werr
		}
	}
	return err
}

// Channels returns the channels with a registered handler, sorted.
func (s *Subscription) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.handlers))
	for ch := range s.handlers {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Close unsubscribes from every channel and releases the connection.
// Acknowledgement failures are logged, not returned. Close is idempotent.
// It blocks until the listener goroutine has exited, so it must not be
// called synchronously from a Handler.
func (s *Subscription) Close() error {
	channels := s.Channels()
	if len(channels) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.unsubscribeTimeout)
		if err := s.unsubscribe(ctx, channels); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Warn("unsubscribe on close failed",
				"channels", channels,
				"error", err.Error(),
			)
		}
		cancel()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handlers = make(map[string]*entry)
	s.mu.Unlock()

	close(s.done)
	err := s.ps.Close()
	<-s.stopped
	return err
}

func (s *Subscription) await(ctx context.Context, key ackKey, ack chan struct{}) error {
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.removeWaiterLocked(key, ack)
		s.mu.Unlock()
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

func (s *Subscription) addWaiterLocked(key ackKey) chan struct{} {
	ch := make(chan struct{})
	s.waiters[key] = append(s.waiters[key], ch)
	return ch
}

func (s *Subscription) removeWaiterLocked(key ackKey, ack chan struct{}) {
	list := s.waiters[key]
	for i, w := range list {
		if w == ack {
			s.waiters[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.waiters[key]) == 0 {
		delete(s.waiters, key)
	}
}

// listen reads from the connection until Close.
func (s *Subscription) listen() {
	defer close(s.stopped)

	for {
		msg, err := s.ps.Receive(context.Background())
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("pubsub receive failed", "error", err.Error())
			select {
			case <-s.done:
				return
			case <-time.After(receiveRetryDelay):
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			s.acknowledge(ackKey{m.Kind, m.Channel})
		case *redis.Message:
			s.deliver(m.Channel, m.Payload)
		case *redis.Pong:
		default:
			s.logger.Debug("pubsub ignored reply", "type", fmt.Sprintf("%T", msg))
		}
	}
}

// acknowledge releases the oldest waiter for key.
func (s *Subscription) acknowledge(key ackKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.waiters[key]
	if len(list) == 0 {
		return
	}
	close(list[0])
	if len(list) == 1 {
		delete(s.waiters, key)
	} else {
		s.waiters[key] = list[1:]
	}
}

func (s *Subscription) deliver(channel, payload string) {
	s.mu.Lock()
	e, ok := s.handlers[channel]
	if !ok {
		s.mu.Unlock()
		return
	}
	if e.once {
		// UNSUBSCRIBE goes out under the lock so that a Subscribe racing
		// with this delivery always sends its SUBSCRIBE afterwards.
		delete(s.handlers, channel)
		ctx, cancel := context.WithTimeout(context.Background(), s.unsubscribeTimeout)
		err := s.ps.Unsubscribe(ctx, channel)
		cancel()
		if err != nil {
			s.logger.Warn("one-time unsubscribe failed",
				"channel", channel,
				"error", err.Error(),
			)
		}
	}
	s.mu.Unlock()

	e.handler(channel, payload)
}
