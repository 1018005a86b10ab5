package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/trace"

	tnet "badc0de.net/pkg/gamenet/net"
)

// scratchSize is the size of the buffer raw reads go through.
const scratchSize = 16 * 1024

// Options configure a Connection.
type Options struct {
	// TLS enables the secure session. Nil means the connection is plaintext
	// from the start. An empty ServerName defaults to the dialed host.
	TLS *tls.Config

	// HandshakeTimeout bounds the blocking TLS handshake in Connect.
	HandshakeTimeout time.Duration

	// DrainPlaintext makes a writable event flush the whole plaintext queue.
	// By default only one payload is written per event, which is how the
	// plaintext path has always been paced.
	DrainPlaintext bool

	// Token is what the connection registers its socket under.
	Token Token
}

// Stats are running totals for one connection.
type Stats struct {
	BytesRead    uint64
	BytesWritten uint64
	FramesRead   uint64
}

// Connection is one physical connection to the game server.
//
// It is the sole owner of its socket, TLS session, outbound queues and receive
// buffer, and must only be used from the goroutine driving it.
type Connection struct {
	sock     Socket
	session  Session
	registry Registry
	opts     Options
	addr     string

	state    ConnectionState
	interest PollInterest
	mode     EncryptionMode
	// broken is set once the socket itself failed, so no final flush is
	// attempted on it.
	broken bool
	// discard is set once the close was asked for on this side; what is
	// still buffered is not handed out anymore.
	discard bool

	secured outboundQueue
	plain   outboundQueue
	recv    tnet.ReceiveBuffer
	scratch []byte

	stats  Stats
	events trace.EventLog
}

// Connect resolves host and tries a blocking connect to each of its addresses
// in turn. With opts.TLS set, the TLS handshake is also completed here. This
// is the only blocking operation of the package: the returned Connection is
// registered with registry and is driven by readiness events from then on.
func Connect(ctx context.Context, host string, port int, registry Registry, opts Options) (*Connection, error) {
	hostport := net.JoinHostPort(host, strconv.Itoa(port))

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, &BadConnectionError{Addr: hostport, Err: err}
	}

	var d net.Dialer
	var conn net.Conn
	lastErr := errors.New("no addresses")
	for _, a := range addrs {
		candidate := net.JoinHostPort(a, strconv.Itoa(port))
		c, err := d.DialContext(ctx, "tcp", candidate)
		if err != nil {
			glog.V(1).Infof("connecting to %s: %v", candidate, err)
			lastErr = err
			continue
		}
		conn = c
		break
	}
	if conn == nil {
		return nil, &BadConnectionError{Addr: hostport, Err: lastErr}
	}

	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, &BadConnectionError{Addr: hostport, Err: errors.Errorf("unexpected connection type %T", conn)}
	}
	tcp.SetNoDelay(true)

	var session Session
	if opts.TLS != nil {
		cfg := opts.TLS.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		s, err := newTLSSession(ctx, tcp, cfg, opts.HandshakeTimeout)
		if err != nil {
			tcp.Close()
			return nil, &BadConnectionError{Addr: hostport, Err: errors.Wrap(err, "tls handshake")}
		}
		session = s
	}

	sock, err := newRawSocket(tcp)
	if err != nil {
		tcp.Close()
		return nil, &BadConnectionError{Addr: hostport, Err: err}
	}

	c, err := NewConnection(sock, session, registry, opts)
	if err != nil {
		tcp.Close()
		return nil, &BadConnectionError{Addr: hostport, Err: err}
	}
	glog.Infof("connected to %s (%v)", hostport, sock.RemoteAddr())
	return c, nil
}

// NewConnection wraps an already connected non-blocking socket and registers
// it for reading. A non-nil session must have completed its handshake; the
// connection then starts in EncryptionReadWrite.
func NewConnection(sock Socket, session Session, registry Registry, opts Options) (*Connection, error) {
	c := &Connection{
		sock:     sock,
		session:  session,
		registry: registry,
		opts:     opts,
		addr:     "<unknown>",
		state:    StateOpen,
		interest: InterestRead,
		mode:     EncryptionNone,
		scratch:  make([]byte, scratchSize),
	}
	if a := sock.RemoteAddr(); a != nil {
		c.addr = a.String()
	}
	if session != nil {
		c.mode = EncryptionReadWrite
	}
	c.events = trace.NewEventLog("transport.Connection", c.addr)

	if err := registry.Register(sock.Fd(), opts.Token, c.interest); err != nil {
		c.events.Errorf("register: %v", err)
		c.events.Finish()
		return nil, errors.Wrap(err, "registering socket")
	}
	c.events.Printf("open, encryption %v", c.mode)

	if session != nil {
		// The handshake may have read past its last record.
		c.pumpSession()
	}
	return c, nil
}

func (c *Connection) State() ConnectionState { return c.state }
func (c *Connection) Mode() EncryptionMode   { return c.mode }
func (c *Connection) Interest() PollInterest { return c.interest }
func (c *Connection) Token() Token           { return c.opts.Token }
func (c *Connection) RemoteAddr() string     { return c.addr }
func (c *Connection) Stats() Stats           { return c.stats }

// Pending returns the number of payloads waiting in each outbound queue.
func (c *Connection) Pending() (secured, plain int) {
	return c.secured.Len(), c.plain.Len()
}

// Process handles one readiness event.
func (c *Connection) Process(ev Event) {
	if c.state == StateClosed {
		return
	}

	if ev.Readable && c.state == StateOpen {
		if c.mode == EncryptionReadWrite {
			c.readSecured()
		} else {
			c.readRaw()
		}
	}

	if ev.Writable && !c.broken {
		if c.mode != EncryptionNone {
			c.writeSecured()
		} else {
			c.writeRaw()
		}
	}

	if c.mode == EncryptionWriteTransfering && !c.broken && c.secured.Len() == 0 && !c.session.WantsWrite() {
		c.completeDowngrade()
	}
	c.updateInterest()

	if c.state == StateClosing {
		c.finish()
		return
	}
	c.reregister()
}

// Enqueue queues an already framed payload. Secured payloads go through the
// TLS session and are written while the connection is encrypted; plaintext
// ones are only written once it is not. Interest is updated right away, so a
// send from within a packet handler is picked up by the very next poll.
func (c *Connection) Enqueue(frame []byte, secure bool) error {
	if c.state != StateOpen {
		return ErrClosed
	}
	if secure {
		if c.mode == EncryptionNone {
			return ErrNotSecured
		}
		c.secured.Push(frame)
	} else {
		c.plain.Push(frame)
	}
	glog.V(3).Infof("%s: queued %d bytes (secure=%v)", c.addr, len(frame), secure)

	c.interest = c.interest.Add(InterestWrite)
	return c.reregister()
}

// RequestClose starts a cooperative close. What is queued gets one more
// chance to be flushed by the next writable event, after which the socket is
// deregistered and closed.
func (c *Connection) RequestClose() {
	if c.state != StateOpen {
		return
	}
	if c.session != nil && c.mode != EncryptionNone {
		c.session.SendCloseNotify()
	}
	c.discard = true
	c.setClosing("close requested")
	c.interest = c.interest.Add(InterestWrite)
	c.reregister()
}

// Abort closes the connection right away, without waiting for a writable
// event to flush what is queued. It is for connections which never got
// going, as nothing might be left to drive them to Closed otherwise.
func (c *Connection) Abort() {
	if c.state == StateClosed {
		return
	}
	c.broken = true
	c.discard = true
	c.setClosing("aborted")
	c.finish()
}

// IsOpen reports whether the connection still accepts packets, i.e. nobody
// asked for it to be closed yet.
func (c *Connection) IsOpen() bool { return c.state == StateOpen }

// BeginDowngrade switches an encrypted connection to EncryptionWriteTransfering:
// from now on reads are raw, and once the secured queue has been flushed the
// connection is fully plaintext.
func (c *Connection) BeginDowngrade() error {
	if c.state != StateOpen {
		return ErrClosed
	}
	if c.mode != EncryptionReadWrite {
		return errors.Errorf("cannot downgrade from encryption mode %v", c.mode)
	}
	c.mode = EncryptionWriteTransfering
	c.events.Printf("downgrade started, %d secured payloads queued", c.secured.Len())
	glog.Infof("%s: switching to plaintext once %d secured payloads are flushed", c.addr, c.secured.Len())

	// Process has to run for the downgrade to complete even if nothing is
	// queued.
	c.interest = c.interest.Add(InterestWrite)
	return c.reregister()
}

// NextFrame extracts the next complete frame from the receive buffer. A
// framing error leaves the stream unusable and starts closing the connection.
//
// After RequestClose no more frames are returned. A connection the peer
// closed still returns whatever had arrived before.
func (c *Connection) NextFrame() ([]byte, bool, error) {
	if c.discard {
		return nil, false, nil
	}
	frame, ok, err := tnet.TryExtractFrame(&c.recv)
	if err != nil {
		c.events.Errorf("framing: %v", err)
		glog.Errorf("%s: framing: %v", c.addr, err)
		if c.state == StateOpen {
			c.setClosing("protocol violation")
			c.interest = c.interest.Add(InterestWrite)
			c.reregister()
		}
		return nil, false, err
	}
	if ok {
		c.stats.FramesRead++
	}
	return frame, ok, nil
}

func (c *Connection) readSecured() {
	for {
		n, err := c.session.ReadTLS(c.sock)
		if n > 0 {
			c.stats.BytesRead += uint64(n)
			if !c.pumpSession() {
				return
			}
		}
		switch {
		case err == nil && n == 0:
			c.fail("secured read", io.EOF)
			return
		case err == nil:
			continue
		case isInterrupted(err):
			continue
		case isWouldBlock(err):
			return
		default:
			c.fail("secured read", err)
			return
		}
	}
}

// pumpSession decrypts what the session has and appends the plaintext to the
// receive buffer. It returns false once the connection is closing.
func (c *Connection) pumpSession() bool {
	if err := c.session.ProcessNewPackets(); err != nil {
		c.fail("tls", err)
		return false
	}
	if n := c.session.PlaintextAvailable(); n > 0 {
		buf := make([]byte, n)
		n, err := c.session.ReadPlaintext(buf)
		if err != nil && err != io.EOF {
			c.fail("reading plaintext", err)
			return false
		}
		c.recv.Write(buf[:n])
		glog.V(3).Infof("%s: %d plaintext bytes", c.addr, n)
	}
	if c.session.PeerClosed() {
		c.setClosing("peer sent close_notify")
		return false
	}
	return true
}

func (c *Connection) readRaw() {
	for {
		n, err := c.sock.Read(c.scratch)
		if n > 0 {
			c.stats.BytesRead += uint64(n)
			c.recv.Write(c.scratch[:n])
			glog.V(3).Infof("%s: read %d bytes", c.addr, n)
		}
		switch {
		case err == nil && n == 0:
			c.fail("read", io.EOF)
			return
		case err == nil:
			continue
		case isInterrupted(err):
			continue
		case isWouldBlock(err):
			return
		default:
			c.fail("read", err)
			return
		}
	}
}

func (c *Connection) writeSecured() {
	for c.secured.Len() > 0 {
		p := c.secured.Pop()
		n, err := c.session.WritePlaintext(p)
		if err != nil {
			c.secured.PushFront(p[n:])
			if isInterrupted(err) {
				continue
			}
			if isWouldBlock(err) {
				break
			}
			c.fail("tls write", err)
			return
		}
		if n < len(p) {
			c.secured.PushFront(p[n:])
			break
		}
	}

	for c.session.WantsWrite() {
		n, err := c.session.WriteTLS(c.sock)
		c.stats.BytesWritten += uint64(n)
		switch {
		case err == nil && n == 0:
			return
		case err == nil:
			continue
		case isInterrupted(err):
			continue
		case isWouldBlock(err):
			return
		default:
			c.fail("secured write", err)
			return
		}
	}
}

func (c *Connection) writeRaw() {
	for c.plain.Len() > 0 {
		p := c.plain.Pop()
		n, err := writeAll(c.sock, p)
		c.stats.BytesWritten += uint64(n)
		if err != nil {
			if isWouldBlock(err) {
				// Only the unwritten rest goes back, or the peer would
				// see the first n bytes twice.
				c.plain.PushFront(p[n:])
				return
			}
			c.fail("write", err)
			return
		}
		if !c.opts.DrainPlaintext {
			return
		}
	}
}

// writeAll writes p, retrying on EINTR, and returns how much was written.
func writeAll(w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			if isInterrupted(err) {
				continue
			}
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

func (c *Connection) completeDowngrade() {
	c.secured = outboundQueue{}
	c.session = nil
	c.mode = EncryptionNone
	c.events.Printf("downgrade complete, %d plaintext payloads queued", c.plain.Len())
	glog.Infof("%s: connection is now plaintext", c.addr)
}

// pending reports whether anything can be written in the current mode.
func (c *Connection) pending() bool {
	if c.mode != EncryptionNone {
		return c.secured.Len() > 0 || c.session.WantsWrite()
	}
	return c.plain.Len() > 0
}

func (c *Connection) updateInterest() {
	c.interest = InterestRead
	if c.pending() {
		c.interest = c.interest.Add(InterestWrite)
	}
}

func (c *Connection) reregister() error {
	if c.state == StateClosed {
		return ErrClosed
	}
	if err := c.registry.Reregister(c.sock.Fd(), c.opts.Token, c.interest); err != nil {
		c.fail("reregister", err)
		return errors.Wrap(err, "reregistering socket")
	}
	return nil
}

func (c *Connection) setClosing(reason string) {
	if c.state != StateOpen {
		return
	}
	c.state = StateClosing
	c.events.Printf("closing: %s", reason)
	glog.Infof("%s: closing: %s", c.addr, reason)
}

func (c *Connection) fail(op string, err error) {
	c.broken = true
	c.events.Errorf("%s: %v", op, err)
	if err == io.EOF {
		glog.Infof("%s: %s: peer closed the connection", c.addr, op)
	} else {
		glog.Errorf("%s: %s: %v", c.addr, op, err)
	}
	c.setClosing(op + " failed")
}

// finish deregisters and closes the socket.
func (c *Connection) finish() {
	if err := c.registry.Deregister(c.sock.Fd()); err != nil {
		glog.Errorf("%s: deregister: %v", c.addr, err)
	}
	if err := c.sock.Close(); err != nil {
		glog.V(1).Infof("%s: close: %v", c.addr, err)
	}
	c.state = StateClosed
	c.interest = InterestNone
	c.session = nil
	c.events.Printf("closed; read %d bytes, wrote %d bytes, %d frames", c.stats.BytesRead, c.stats.BytesWritten, c.stats.FramesRead)
	c.events.Finish()
	glog.Infof("%s: connection closed", c.addr)
}
