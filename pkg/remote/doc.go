// Package remote shares one key-value backend between processes.
//
// A Hub wraps any storage backend and serves it over HTTP: plain REST
// for reads and writes, a WebSocket stream for change events. A Client
// connects to a hub and behaves like a local backend, including native
// change events, so bindings in separate processes converge on the same
// values.
package remote
