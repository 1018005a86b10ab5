// Package net implements the wire primitives of the game protocol.
//
// This includes the frame codec (an 8-byte length prefix followed by the
// payload), the receive buffer frames are extracted from, and a message
// (a single payload built or parsed field by field).
package net
