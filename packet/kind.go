// Package packet defines the closed set of packet kinds exchanged with the
// game server, builders and parsers for their fields, and the router which
// hands received packets to their handlers.
package packet

import (
	"fmt"

	tnet "badc0de.net/pkg/gamenet/net"
)

// Kind is the discriminant at the start of every payload. It is a uint16 on
// the wire, which is why a frame is never shorter than two bytes.
//
// Implementation detail: iota is not used so that values stay greppable when
// looking at a hex dump.
type Kind uint16

const (
	// KindOnlineCheck is the heartbeat. It carries no fields and needs no
	// handler.
	KindOnlineCheck Kind = 0x00

	// Client to server.
	KindLogin     Kind = 0x01
	KindReconnect Kind = 0x03

	// Server to client.
	KindHandShake     Kind = 0x02
	KindReconnectCode Kind = 0x04
	KindLoginFailed   Kind = 0x06
	KindKick          Kind = 0x07

	// KindPlaintext is sent by the server to request the downgrade to a
	// plaintext channel, and echoed back by the client as the last secured
	// packet.
	KindPlaintext Kind = 0x05
)

func (k Kind) String() string {
	switch k {
	case KindOnlineCheck:
		return "OnlineCheck"
	case KindLogin:
		return "Login"
	case KindHandShake:
		return "HandShake"
	case KindReconnect:
		return "Reconnect"
	case KindReconnectCode:
		return "ReconnectCode"
	case KindPlaintext:
		return "Plaintext"
	case KindLoginFailed:
		return "LoginFailed"
	case KindKick:
		return "Kick"
	default:
		return fmt.Sprintf("Kind(0x%04X)", uint16(k))
	}
}

// ReadKind consumes the discriminant from the start of msg.
func ReadKind(msg *tnet.Message) (Kind, error) {
	k, err := msg.ReadUint16()
	if err != nil {
		return 0, err
	}
	return Kind(k), nil
}

// WriteKind starts a new packet of the passed kind.
func WriteKind(w *tnet.Message, k Kind) error {
	return w.WriteUint16(uint16(k))
}
