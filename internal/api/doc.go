// Package api serves the hub's websocket API.
//
// A connection goes through an authentication phase first: when the
// hub has an API token the server sends auth_required and expects an
// auth message carrying the token; without a token the server sends
// auth_ok straight away. After that the client sends commands as JSON
// objects with a type and a client-chosen id. Ids must strictly
// increase within a connection; every command is answered by exactly
// one result frame carrying the same id (ping is answered by pong).
//
// Commands that open a stream, subscribe_events and integration
// preview commands, register a cancel function under their command id.
// Subsequent event frames reuse that id, and unsubscribe_events ends
// the stream. All remaining subscriptions are cancelled when the
// connection goes away, whichever way it goes.
//
// Each connection has one reader and one writer goroutine, following
// the usual gorilla/websocket layout with ping/pong keepalive. Command
// handlers run synchronously on the reader; event delivery goes
// through a bounded queue, and a client that falls too far behind is
// disconnected instead of back-pressuring the hub's event bus.
//
// The same HTTP server also exposes Prometheus metrics on /metrics and
// a health probe on /healthz.
package api
