package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Session is a transport security session which does no I/O of its own:
// ciphertext is fed in from the socket and taken out towards it by the
// Connection, which keeps the socket non-blocking.
type Session interface {
	// ReadTLS reads ciphertext from r once.
	ReadTLS(r io.Reader) (int, error)
	// ProcessNewPackets decrypts whatever complete records were read.
	ProcessNewPackets() error
	// PlaintextAvailable is how many decrypted bytes ReadPlaintext can return.
	PlaintextAvailable() int
	ReadPlaintext(p []byte) (int, error)
	// WritePlaintext encrypts p. It returns ErrWouldBlock, consuming nothing,
	// while too much ciphertext is waiting to be flushed.
	WritePlaintext(p []byte) (int, error)
	// WantsWrite reports whether ciphertext is waiting for WriteTLS.
	WantsWrite() bool
	// WriteTLS writes as much pending ciphertext to w as it accepts.
	WriteTLS(w io.Writer) (int, error)
	// PeerClosed reports whether the peer sent close_notify.
	PeerClosed() bool
	// SendCloseNotify queues a close_notify alert.
	SendCloseNotify()
}

// maxPendingCiphertext is how much encrypted data may pile up before
// WritePlaintext starts refusing more.
const maxPendingCiphertext = 256 * 1024

// tlsSession adapts a crypto/tls client, which wants a net.Conn, to the
// Session shape. The handshake runs over the real socket; afterwards the
// tls.Conn talks to in-memory buffers only.
type tlsSession struct {
	conn    *sessionConn
	tls     *tls.Conn
	plain   bytes.Buffer
	scratch []byte
	readBuf []byte
	closed  bool
}

// newTLSSession performs a blocking handshake on raw. This happens once,
// inside Connect, before the socket is handed to the event loop.
func newTLSSession(ctx context.Context, raw net.Conn, cfg *tls.Config, timeout time.Duration) (*tlsSession, error) {
	sc := &sessionConn{Conn: raw}
	tc := tls.Client(sc, cfg)

	if timeout > 0 {
		raw.SetDeadline(time.Now().Add(timeout))
	}
	err := tc.HandshakeContext(ctx)
	raw.SetDeadline(time.Time{})
	if err != nil {
		return nil, err
	}
	sc.detach()

	st := tc.ConnectionState()
	glog.Infof("tls session with %v: %s, %s", raw.RemoteAddr(), tls.VersionName(st.Version), tls.CipherSuiteName(st.CipherSuite))

	return &tlsSession{
		conn:    sc,
		tls:     tc,
		scratch: make([]byte, 16*1024+512),
		readBuf: make([]byte, 16*1024),
	}, nil
}

func (s *tlsSession) ReadTLS(r io.Reader) (int, error) {
	n, err := r.Read(s.scratch)
	if n > 0 {
		s.conn.in.Write(s.scratch[:n])
	}
	return n, err
}

func (s *tlsSession) ProcessNewPackets() error {
	if s.closed {
		return nil
	}
	for {
		n, err := s.tls.Read(s.readBuf)
		if n > 0 {
			s.plain.Write(s.readBuf[:n])
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrWouldBlock):
			return nil
		case err == io.EOF:
			s.closed = true
			return nil
		default:
			return err
		}
	}
}

func (s *tlsSession) PlaintextAvailable() int { return s.plain.Len() }

func (s *tlsSession) ReadPlaintext(p []byte) (int, error) {
	return s.plain.Read(p)
}

func (s *tlsSession) WritePlaintext(p []byte) (int, error) {
	if s.conn.out.Len() >= maxPendingCiphertext {
		return 0, ErrWouldBlock
	}
	return s.tls.Write(p)
}

func (s *tlsSession) WantsWrite() bool { return s.conn.out.Len() > 0 }

func (s *tlsSession) WriteTLS(w io.Writer) (int, error) {
	n, err := w.Write(s.conn.out.Bytes())
	if n > 0 {
		s.conn.out.Next(n)
	}
	return n, err
}

func (s *tlsSession) PeerClosed() bool { return s.closed }

func (s *tlsSession) SendCloseNotify() {
	if err := s.tls.CloseWrite(); err != nil {
		glog.V(1).Infof("queueing close_notify: %v", err)
	}
}

// sessionConn is the net.Conn the tls.Conn sees. Until detach it passes
// through to the real connection; after it, reads come from in, returning
// ErrWouldBlock when it is empty, and writes go to out.
type sessionConn struct {
	net.Conn

	detached bool
	in, out  bytes.Buffer
}

func (c *sessionConn) detach() { c.detached = true }

func (c *sessionConn) Read(p []byte) (int, error) {
	if !c.detached {
		return c.Conn.Read(p)
	}
	if c.in.Len() == 0 {
		return 0, ErrWouldBlock
	}
	return c.in.Read(p)
}

func (c *sessionConn) Write(p []byte) (int, error) {
	if !c.detached {
		return c.Conn.Write(p)
	}
	return c.out.Write(p)
}

// Close is a no-op once detached; the socket belongs to the Connection.
func (c *sessionConn) Close() error {
	if !c.detached {
		return c.Conn.Close()
	}
	return nil
}

func (c *sessionConn) SetDeadline(t time.Time) error {
	if !c.detached {
		return c.Conn.SetDeadline(t)
	}
	return nil
}

func (c *sessionConn) SetReadDeadline(t time.Time) error {
	if !c.detached {
		return c.Conn.SetReadDeadline(t)
	}
	return nil
}

func (c *sessionConn) SetWriteDeadline(t time.Time) error {
	if !c.detached {
		return c.Conn.SetWriteDeadline(t)
	}
	return nil
}
