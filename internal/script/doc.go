// Package script runs server-side Lua transaction bodies through a handle
// cache.
//
// Each Script is registered with SCRIPT LOAD on first use and executed with
// EVALSHA afterwards. When the server no longer recognizes a handle (it was
// restarted, or SCRIPT FLUSH ran) the Cache evicts the handle, registers the
// body again and retries the call exactly once. A second NOSCRIPT reply is
// returned as an error wrapping ErrStaleScript. There is no retry loop and no
// batching: every call is one synchronous round trip, two on recovery.
package script
