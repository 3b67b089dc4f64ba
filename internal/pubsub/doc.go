// Package pubsub implements a multi-channel Redis subscriber.
//
// One Subscription owns one pub/sub connection and one listener goroutine.
// Subscribe and Unsubscribe block until the server acknowledges them; the
// listener matches acknowledgements to waiting callers by kind and channel
// and dispatches messages to per-channel handlers in arrival order.
package pubsub
