// Package store provides versioned entities over Redis.
//
// An entity is addressed by (collection, id) and stored as a hash. Every
// mutation that other processes should observe goes through one of four
// checked operations (touch, set, clear, delete), each a single Lua script
// that compares, writes, bumps the version, maintains the collection index
// and publishes a change message atomically. No client-side locks or retry
// loops are layered on top; script atomicity linearizes writers per entity.
//
// # Key layout
//
//	<collection>          sorted set of member ids (the index)
//	<collection>:<id>     entity hash, version in field "v"
//	<collection>:change   change channel
//	@latch:<id>           count-down latch hash
//
// Collections and ids must not contain ":"; collections must not start
// with "@".
//
// # Change messages
//
//	{"<id>":{"v":<version>,"<field>":<value>,...}}   insert or update
//	{"<id>":null}                                    delete
//
// "v" comes first, followed by the changed public fields in caller order.
// Fields whose name starts with the internal prefix ("_" by default) are
// versioned, diffed and passed to local callbacks but never published.
//
// # Local callbacks
//
// OnInsert, OnDelete and OnChange register callbacks scoped to one Client.
// They run synchronously on the mutating goroutine after the script has
// committed: insert callbacks first, then for each changed field its field
// callbacks followed by the wildcard callbacks.
package store
