// Package gateway is the conversational relay's connection layer.
//
// # Overview
//
// The gateway package owns the HTTP server that carries both the WebSocket
// endpoint and the REST API. Every live connection becomes a Client that
// implements session.Sender, so the broadcaster can deliver frames to it
// without knowing anything about websockets.
//
// # Session lifecycle
//
// A connection moves through three states:
//
//	CONNECTED -> JOINED -> CLOSED
//
// Upgrading registers a session and emits a welcome frame with the session
// id. A join frame binds the session to one conversation after checking the
// participant list; a rejected join leaves the session connected but
// unbound. Disconnecting removes the session and, when it was bound, tells
// the conversation it left.
//
// # Wire protocol
//
// Every frame in both directions is an envelope:
//
//	{"type": "send", "payload": {"body": "hi"}}
//
// Inbound types: join, leave, typing, send, read. Outbound: welcome, error,
// and the broadcast events joined, left, typing, new-message, message-sent,
// read-receipt. All 64-bit ids cross the wire as strings.
//
// # Ordering
//
// A send persists the message before anything is fanned out. The sender's
// ack (message-sent) follows the fan-out and is skipped when the session
// disappeared while the write was in flight; the message stays durable
// either way.
//
// # HTTP API
//
//   - GET  /ws - WebSocket upgrade (token via header or ?token=)
//   - POST /api/messages - Send a message without a live session
//   - GET  /api/conversations/{conversationID}/messages - History, oldest first
//   - GET  /api/conversations?businessId=N - The caller's conversations
//   - GET  /healthz - Liveness plus live session count
//
// # Key files
//
//   - gateway.go: Gateway struct, routes, Run and shutdown
//   - client.go: websocket pumps and the outbound queue
//   - events.go: frame decoding and the wire message shape
//   - handlers.go: protocol transitions per frame type
//   - api.go: REST handlers
package gateway
