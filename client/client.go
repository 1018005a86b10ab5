package client

import (
	"context"
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/gamenet/net"
	"badc0de.net/pkg/gamenet/packet"
	"badc0de.net/pkg/gamenet/transport"
)

// connToken is what the single connection is registered with the poller as.
const connToken transport.Token = 1

// ErrNotConnected is returned by operations needing a live connection.
var ErrNotConnected = errors.New("not connected")

// ReconnectStore persists the reconnect code across connections and runs of
// the program.
type ReconnectStore interface {
	ReconnectCode() string
	// SetReconnectCode stores code; an empty code forgets it.
	SetReconnectCode(code string) error
}

// Options configure a Client.
type Options struct {
	Host string
	Port int

	// TLS, when set, makes every connection start encrypted. Login and
	// Reconnect are then always sent encrypted.
	TLS              *tls.Config
	HandshakeTimeout time.Duration
	DrainPlaintext   bool

	Account       string
	Password      string
	ClientVersion uint16

	// HeartbeatInterval is how often OnlineCheck is sent. Zero disables it.
	HeartbeatInterval time.Duration

	// OnDisconnect is called once, from Tick, after a connection closed.
	OnDisconnect func()
}

// Status is what Tick reports.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
)

func (s Status) String() string {
	if s == StatusConnected {
		return "Connected"
	}
	return "Disconnected"
}

// Snapshot is a copy of the session state, safe to hand to other goroutines.
type Snapshot struct {
	Connected      bool
	Addr           string
	State          string
	Encryption     string
	Token          string
	PendingSecured int
	PendingPlain   int
	Stats          transport.Stats
	ConnectedAt    time.Time
	Connects       int
}

// Client is one game session, reconnected as often as the caller likes.
type Client struct {
	opts   Options
	store  ReconnectStore
	router *packet.Router[*Client]

	poller *transport.Poller
	conn   *transport.Connection
	driver *transport.Driver

	token         string
	connectedAt   time.Time
	lastHeartbeat time.Time
	lastStats     transport.Stats
	connects      int
	notified      bool

	snapshot atomic.Value
}

// New creates a client. The handlers are used for the game's own packet
// kinds; a handler for one of the kinds the client handles itself replaces
// the built-in one.
func New(opts Options, store ReconnectStore, handlers map[packet.Kind]packet.HandlerFunc[*Client]) *Client {
	table := map[packet.Kind]packet.HandlerFunc[*Client]{
		packet.KindHandShake:     handleHandShake,
		packet.KindReconnectCode: handleReconnectCode,
		packet.KindPlaintext:     handlePlaintext,
		packet.KindLoginFailed:   handleLoginFailed,
		packet.KindKick:          handleKick,
	}
	for k, h := range handlers {
		table[k] = h
	}

	c := &Client{
		opts:   opts,
		store:  store,
		router: packet.NewRouter(table),
		poller: transport.NewPoller(transport.DefaultEventCapacity),
	}
	c.router.OnDispatch = func(k packet.Kind) {
		framesDispatched.WithLabelValues(k.String()).Inc()
	}
	c.snapshot.Store(Snapshot{})
	return c
}

// Connect opens a fresh connection and authenticates on it, with the stored
// reconnect code if there is one, with the account otherwise. Any previous
// connection must be closed.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil && c.conn.State() != transport.StateClosed {
		return errors.New("already connected")
	}

	conn, err := transport.Connect(ctx, c.opts.Host, c.opts.Port, c.poller, transport.Options{
		TLS:              c.opts.TLS,
		HandshakeTimeout: c.opts.HandshakeTimeout,
		DrainPlaintext:   c.opts.DrainPlaintext,
		Token:            connToken,
	})
	if err != nil {
		connectFailures.Inc()
		return err
	}
	c.conn = conn
	c.driver = transport.NewDriver(c.poller, conn)
	c.token = ""
	c.connectedAt = time.Now()
	c.lastHeartbeat = c.connectedAt
	c.lastStats = transport.Stats{}
	c.notified = false
	c.connects++
	connects.Inc()

	if err := c.authenticate(); err != nil {
		// Nothing has been sent yet, so there is nothing to flush.
		conn.Abort()
		c.publish()
		return errors.Wrap(err, "authenticating")
	}
	c.publish()
	return nil
}

func (c *Client) authenticate() error {
	msg := tnet.NewMessage()
	if code := c.store.ReconnectCode(); code != "" {
		glog.Infof("resuming session with stored reconnect code")
		if err := packet.Reconnect(msg, code); err != nil {
			return err
		}
	} else {
		glog.Infof("logging in as %q", c.opts.Account)
		if err := packet.Login(msg, packet.LoginRequest{
			Account:       c.opts.Account,
			Password:      c.opts.Password,
			ClientVersion: c.opts.ClientVersion,
		}); err != nil {
			return err
		}
	}
	return c.Send(msg, c.opts.TLS != nil)
}

// Tick processes whatever the connection has ready, dispatches the received
// packets and sends a heartbeat when one is due. It never blocks.
func (c *Client) Tick(now time.Time) Status {
	if c.conn == nil {
		return StatusDisconnected
	}
	if c.conn.State() != transport.StateClosed {
		if _, err := c.driver.PollOnce(0); err != nil {
			glog.Errorf("polling: %v", err)
			c.conn.RequestClose()
		}
	}

	// Frames received right before a close are still delivered.
	if _, err := c.router.Drain(c.conn, c); err != nil {
		protocolErrors.Inc()
	}
	c.heartbeat(now)
	c.account()
	c.publish()

	if c.conn.State() == transport.StateClosed {
		if !c.notified {
			c.notified = true
			disconnects.Inc()
			glog.Infof("disconnected from %s after %v", c.conn.RemoteAddr(), now.Sub(c.connectedAt))
			if c.opts.OnDisconnect != nil {
				c.opts.OnDisconnect()
			}
		}
		return StatusDisconnected
	}
	return StatusConnected
}

// heartbeat queues OnlineCheck on the plaintext queue. While the connection
// is still encrypted it waits there, so only one is ever queued.
func (c *Client) heartbeat(now time.Time) {
	if c.opts.HeartbeatInterval <= 0 || c.conn.State() != transport.StateOpen {
		return
	}
	if now.Sub(c.lastHeartbeat) < c.opts.HeartbeatInterval {
		return
	}
	if _, plain := c.conn.Pending(); plain > 0 {
		return
	}
	msg := tnet.NewMessage()
	if err := packet.OnlineCheck(msg); err != nil {
		glog.Errorf("building heartbeat: %v", err)
		return
	}
	if err := c.Send(msg, false); err != nil {
		glog.Errorf("sending heartbeat: %v", err)
		return
	}
	c.lastHeartbeat = now
	heartbeats.Inc()
}

func (c *Client) account() {
	st := c.conn.Stats()
	bytesRead.Add(float64(st.BytesRead - c.lastStats.BytesRead))
	bytesWritten.Add(float64(st.BytesWritten - c.lastStats.BytesWritten))
	c.lastStats = st
}

// Send frames msg and queues it. Secured packets can only be sent while the
// connection is fully encrypted: once the downgrade started, the server no
// longer expects anything encrypted after the acknowledgement.
func (c *Client) Send(msg *tnet.Message, secure bool) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if secure && c.conn.Mode() != transport.EncryptionReadWrite {
		return transport.ErrNotSecured
	}
	frame, err := msg.Finalize()
	if err != nil {
		return errors.Wrap(err, "framing packet")
	}
	return c.conn.Enqueue(frame, secure)
}

// Close starts closing the connection. Tick has to keep being called until it
// reports StatusDisconnected for the queued packets to be flushed.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.RequestClose()
	}
}

// HandshakeToken is the token the server sent in HandShake on the current
// connection, if any.
func (c *Client) HandshakeToken() string { return c.token }

// Connection returns the current connection, or nil before the first Connect.
func (c *Client) Connection() *transport.Connection { return c.conn }

// Snapshot returns the session state as of the last Tick.
func (c *Client) Snapshot() Snapshot {
	return c.snapshot.Load().(Snapshot)
}

func (c *Client) publish() {
	secured, plain := c.conn.Pending()
	c.snapshot.Store(Snapshot{
		Connected:      c.conn.State() != transport.StateClosed,
		Addr:           c.conn.RemoteAddr(),
		State:          c.conn.State().String(),
		Encryption:     c.conn.Mode().String(),
		Token:          c.token,
		PendingSecured: secured,
		PendingPlain:   plain,
		Stats:          c.conn.Stats(),
		ConnectedAt:    c.connectedAt,
		Connects:       c.connects,
	})
}
