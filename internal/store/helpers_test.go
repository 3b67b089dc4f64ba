package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/testutil"
)

// newTestClient returns a Client over a fresh in-process Redis.
func newTestClient(t *testing.T, opts ...Option) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := testutil.NewRedis(t)
	opts = append([]Option{
		WithLogger(testutil.DiscardLogger()),
		WithUnsubscribeTimeout(time.Second),
	}, opts...)
	c := New(rdb, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func mustEntity(t *testing.T, c *Client, collection, id string) *Entity {
	t.Helper()
	e, err := c.Entity(collection, id)
	require.NoError(t, err)
	return e
}

// channelLog records messages published on one channel.
type channelLog struct {
	t       *testing.T
	c       *Client
	channel string

	mu   sync.Mutex
	msgs []string
}

// watchChannel subscribes to channel and records its messages.
func watchChannel(t *testing.T, c *Client, channel string) *channelLog {
	t.Helper()
	l := &channelLog{t: t, c: c, channel: channel}
	_, err := c.Subscribe(context.Background(), channel, func(_, msg string) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.msgs = append(l.msgs, msg)
	})
	require.NoError(t, err)
	return l
}

// settle publishes a marker and waits for it, so every message published
// before the call has been delivered. It returns the messages seen before
// the marker and resets the log.
func (l *channelLog) settle() []string {
	l.t.Helper()
	const marker = "--settle--"
	_, err := l.c.Publish(context.Background(), l.channel, marker)
	require.NoError(l.t, err)

	var out []string
	require.Eventually(l.t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, m := range l.msgs {
			if m == marker {
				out = append([]string(nil), l.msgs[:i]...)
				l.msgs = append([]string(nil), l.msgs[i+1:]...)
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return out
}
