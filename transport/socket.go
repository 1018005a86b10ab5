package transport

import (
	"io"
	"net"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Socket is the non-blocking byte stream a Connection drives. Read and Write
// return unix.EAGAIN when the operation would block, and a zero-byte Read
// without an error means the peer closed the connection.
type Socket interface {
	io.Reader
	io.Writer
	io.Closer
	// Fd is the descriptor registered with the poller.
	Fd() int
	RemoteAddr() net.Addr
}

// rawSocket issues single non-blocking read(2)/write(2) calls on a connected
// TCP socket, bypassing the runtime's wait-for-readiness so that would-block
// is reported to the caller instead of parking the goroutine.
type rawSocket struct {
	conn *net.TCPConn
	rc   syscall.RawConn
	fd   int
}

func newRawSocket(conn *net.TCPConn) (*rawSocket, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return nil, errors.Wrap(err, "getting raw conn")
	}
	s := &rawSocket{conn: conn, rc: rc, fd: -1}
	if err := rc.Control(func(fd uintptr) { s.fd = int(fd) }); err != nil {
		return nil, errors.Wrap(err, "getting socket descriptor")
	}
	return s, nil
}

func (s *rawSocket) Read(p []byte) (n int, err error) {
	if cerr := s.rc.Read(func(fd uintptr) bool {
		n, err = unix.Read(int(fd), p)
		return true
	}); cerr != nil {
		return 0, cerr
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func (s *rawSocket) Write(p []byte) (n int, err error) {
	if cerr := s.rc.Write(func(fd uintptr) bool {
		n, err = unix.Write(int(fd), p)
		return true
	}); cerr != nil {
		return 0, cerr
	}
	if n < 0 {
		n = 0
	}
	return n, err
}

func (s *rawSocket) Close() error         { return s.conn.Close() }
func (s *rawSocket) Fd() int              { return s.fd }
func (s *rawSocket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
