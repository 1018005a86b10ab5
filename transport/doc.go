// Package transport implements the client side of a single persistent game
// server connection.
//
// A Connection owns the socket, an optional TLS session and the queues and
// buffers in between. It is driven from one goroutine: each tick, a Driver
// asks the Poller which sockets are ready and hands the events to
// Connection.Process, which reads into the receive buffer and drains the
// outbound queues without ever blocking. Frames are then pulled out with
// Connection.NextFrame, normally by a packet.Router.
//
// A connection may start under TLS and later be downgraded to plaintext at
// the server's request. See EncryptionMode.
package transport
