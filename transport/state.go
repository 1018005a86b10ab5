package transport

import "fmt"

// ConnectionState is the lifecycle of one physical connection. A Closed
// connection is never reused.
type ConnectionState uint8

const (
	StateOpen ConnectionState = iota
	// StateClosing is entered on fatal errors or RequestClose; the next
	// Process deregisters the socket.
	StateClosing
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", uint8(s))
	}
}

// PollInterest is the set of readiness notifications registered for a socket.
type PollInterest uint8

const (
	InterestNone      PollInterest = 0
	InterestRead      PollInterest = 1 << 0
	InterestWrite     PollInterest = 1 << 1
	InterestReadWrite              = InterestRead | InterestWrite
)

// Add returns the union of both interests.
func (i PollInterest) Add(o PollInterest) PollInterest {
	return i | o
}

// Remove returns i without any of the bits in o.
func (i PollInterest) Remove(o PollInterest) PollInterest {
	return i &^ o
}

func (i PollInterest) IsReadable() bool { return i&InterestRead != 0 }
func (i PollInterest) IsWritable() bool { return i&InterestWrite != 0 }

func (i PollInterest) String() string {
	switch i {
	case InterestNone:
		return "None"
	case InterestRead:
		return "Read"
	case InterestWrite:
		return "Write"
	case InterestReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("PollInterest(%d)", uint8(i))
	}
}

// EncryptionMode is the protocol-level state layered over the physical
// connection.
//
// The server may negotiate authentication under TLS and then ask for the rest
// of the session to be carried in plaintext. While the switch is in progress
// (EncryptionWriteTransfering), reads are already raw, but the secured queue
// is still written through the TLS session until it drains.
type EncryptionMode uint8

const (
	EncryptionNone EncryptionMode = iota
	EncryptionReadWrite
	EncryptionWriteTransfering
)

func (m EncryptionMode) String() string {
	switch m {
	case EncryptionNone:
		return "None"
	case EncryptionReadWrite:
		return "ReadWrite"
	case EncryptionWriteTransfering:
		return "WriteTransfering"
	default:
		return fmt.Sprintf("EncryptionMode(%d)", uint8(m))
	}
}
