// Package client ties a transport.Connection, its Poller and the packet
// router together into one game session: it authenticates after connecting,
// keeps the connection alive with heartbeats, reacts to the packets the
// protocol itself needs, and hands everything else to the application.
//
// A Client is driven by calling Tick from the application's main loop. It is
// not safe for concurrent use, except for Snapshot which may be called from
// any goroutine.
package client
