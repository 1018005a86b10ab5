package transport

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	// ErrClosed is returned when sending on a connection which is no longer
	// open.
	ErrClosed = errors.New("connection closed")

	// ErrNotSecured is returned when a secured send is requested on a
	// connection without a TLS session, or after the downgrade completed.
	ErrNotSecured = errors.New("connection is not secured")

	// ErrWouldBlock is what the TLS session reports when it has no more
	// ciphertext to work with, or too much of it waiting to be sent.
	ErrWouldBlock error = wouldBlockError{}
)

// wouldBlockError satisfies net.Error with Temporary() set, which is what
// crypto/tls needs to see to not treat a read that is merely not ready yet as
// a permanent failure.
type wouldBlockError struct{}

func (wouldBlockError) Error() string   { return "operation would block" }
func (wouldBlockError) Timeout() bool   { return true }
func (wouldBlockError) Temporary() bool { return true }

// BadConnectionError is returned by Connect when no address of the host
// accepted the connection, or the TLS handshake failed.
type BadConnectionError struct {
	Addr string
	Err  error
}

func (e *BadConnectionError) Error() string {
	return fmt.Sprintf("bad connection to %s: %v", e.Addr, e.Err)
}

func (e *BadConnectionError) Unwrap() error { return e.Err }

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, ErrWouldBlock)
}

func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
