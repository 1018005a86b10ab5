package client

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"badc0de.net/pkg/flagutil/v1"
	"badc0de.net/pkg/gamenet/login"
	tnet "badc0de.net/pkg/gamenet/net"
	"badc0de.net/pkg/gamenet/packet"
	"badc0de.net/pkg/gamenet/secrets"
	"badc0de.net/pkg/gamenet/transport"
	"badc0de.net/pkg/gamenet/ttesting"
)

func TestMain(m *testing.M) {
	flagutil.Parse()
	os.Exit(m.Run())
}

type memStore struct {
	code string
	sets int
}

func (s *memStore) ReconnectCode() string { return s.code }
func (s *memStore) SetReconnectCode(code string) error {
	s.code = code
	s.sets++
	return nil
}

// observed collects the packet kinds the server received.
type observed struct {
	mu    sync.Mutex
	kinds []packet.Kind
}

func (o *observed) add(k packet.Kind) {
	o.mu.Lock()
	o.kinds = append(o.kinds, k)
	o.mu.Unlock()
}

func (o *observed) saw(k packet.Kind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, got := range o.kinds {
		if got == k {
			return true
		}
	}
	return false
}

type testServer struct {
	addr *net.TCPAddr
	seen *observed
	l    net.Listener
	g    errgroup.Group
}

func startServer(t *testing.T, opts login.Options) *testServer {
	t.Helper()
	ts := &testServer{seen: &observed{}}
	opts.Accounts = map[string]string{"alice": "secret"}
	opts.Observe = ts.seen.add
	srv, err := login.NewServer(opts)
	if err != nil {
		t.Fatal(err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ts.l = l
	ts.addr = l.Addr().(*net.TCPAddr)
	ts.g.Go(func() error { return srv.Accept(l) })
	t.Cleanup(func() {
		l.Close()
		if err := ts.g.Wait(); err != nil {
			t.Errorf("Accept: %v", err)
		}
	})
	return ts
}

func (ts *testServer) options() Options {
	return Options{
		Host:              "127.0.0.1",
		Port:              ts.addr.Port,
		Account:           "alice",
		Password:          "secret",
		ClientVersion:     1,
		HandshakeTimeout:  5 * time.Second,
		HeartbeatInterval: 10 * time.Millisecond,
	}
}

// tickUntil ticks c until cond holds, failing the test after a few seconds.
func tickUntil(t *testing.T, c *Client, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; snapshot %+v", what, c.Snapshot())
		}
		c.Tick(time.Now())
		time.Sleep(time.Millisecond)
	}
}

func closeAndWait(t *testing.T, c *Client) {
	t.Helper()
	c.Close()
	tickUntil(t, c, "disconnect", func() bool { return c.Tick(time.Now()) == StatusDisconnected })
}

func TestPlaintextSession(t *testing.T) {
	ts := startServer(t, login.Options{})
	store := &memStore{}
	disconnects := 0
	opts := ts.options()
	opts.OnDisconnect = func() { disconnects++ }
	c := New(opts, store, nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Errorf("second Connect on a live connection succeeded")
	}
	tickUntil(t, c, "handshake", func() bool { return c.HandshakeToken() != "" })
	tickUntil(t, c, "reconnect code", func() bool { return store.code != "" })
	tickUntil(t, c, "heartbeat at the server", func() bool { return ts.seen.saw(packet.KindOnlineCheck) })
	if !ts.seen.saw(packet.KindLogin) {
		t.Errorf("server never saw Login")
	}

	snap := c.Snapshot()
	if !snap.Connected || snap.Encryption != transport.EncryptionNone.String() {
		t.Errorf("snapshot %+v", snap)
	}

	closeAndWait(t, c)
	for i := 0; i < 3; i++ {
		c.Tick(time.Now())
	}
	ttesting.AssertEqualInt(t, "OnDisconnect calls", disconnects, 1)
	if err := c.Send(tnet.NewMessage(), false); err == nil {
		t.Errorf("Send after close succeeded")
	}
}

func TestReconnectWithStoredCode(t *testing.T) {
	ts := startServer(t, login.Options{})
	store := &memStore{}
	c := New(ts.options(), store, nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tickUntil(t, c, "reconnect code", func() bool { return store.code != "" })
	first := c.HandshakeToken()
	closeAndWait(t, c)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnecting: %v", err)
	}
	tickUntil(t, c, "second handshake", func() bool { return c.HandshakeToken() != "" })
	if !ts.seen.saw(packet.KindReconnect) {
		t.Errorf("server never saw Reconnect")
	}
	if c.HandshakeToken() == first {
		t.Errorf("same token on a new connection")
	}
	ttesting.AssertEqualInt(t, "connects", c.Snapshot().Connects, 2)
	closeAndWait(t, c)
}

func TestLoginFailedClosesAndForgetsCode(t *testing.T) {
	ts := startServer(t, login.Options{})
	store := &memStore{code: "stale"}
	opts := ts.options()
	// The server closes right after replying; anything left unread there
	// would reset the connection before the reply is read.
	opts.HeartbeatInterval = 0
	c := New(opts, store, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tickUntil(t, c, "disconnect", func() bool { return c.Tick(time.Now()) == StatusDisconnected })
	ttesting.AssertEqualString(t, "stored code", store.code, "")
}

func TestApplicationHandler(t *testing.T) {
	ts := startServer(t, login.Options{})
	var tokens []string
	c := New(ts.options(), &memStore{}, map[packet.Kind]packet.HandlerFunc[*Client]{
		packet.KindHandShake: func(c *Client, body *tnet.Message) error {
			tok, err := packet.ReadHandShake(body)
			tokens = append(tokens, tok)
			return err
		},
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tickUntil(t, c, "handshake", func() bool { return len(tokens) > 0 })
	ttesting.AssertEqualString(t, "built-in handler replaced", c.HandshakeToken(), "")
	closeAndWait(t, c)
}

func TestTLSSessionWithDowngrade(t *testing.T) {
	cert, pemCert, err := secrets.SelfSigned("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	pool, err := secrets.ParseCertPool(pemCert)
	if err != nil {
		t.Fatal(err)
	}
	ts := startServer(t, login.Options{
		TLS:       &tls.Config{Certificates: []tls.Certificate{cert}},
		Downgrade: true,
	})

	opts := ts.options()
	opts.TLS = secrets.ClientTLSConfig(pool, "")
	store := &memStore{}
	c := New(opts, store, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := c.Snapshot().Encryption; got != transport.EncryptionReadWrite.String() {
		t.Errorf("encryption after connect %s", got)
	}

	tickUntil(t, c, "downgrade", func() bool {
		return c.Connection().Mode() == transport.EncryptionNone
	})
	if c.HandshakeToken() == "" || store.code == "" {
		t.Errorf("token %q code %q; want both received under tls", c.HandshakeToken(), store.code)
	}
	if err := c.Send(tnet.NewMessage(), true); err == nil {
		t.Errorf("secured Send after downgrade succeeded")
	}

	// The heartbeat has to make it through as plaintext.
	tickUntil(t, c, "heartbeat at the server", func() bool { return ts.seen.saw(packet.KindOnlineCheck) })
	if !ts.seen.saw(packet.KindPlaintext) {
		t.Errorf("server never saw the plaintext acknowledgement")
	}
	closeAndWait(t, c)
}

func TestTLSUntrustedServer(t *testing.T) {
	cert, _, err := secrets.SelfSigned("127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	_, otherPEM, _ := secrets.SelfSigned("127.0.0.1")
	pool, _ := secrets.ParseCertPool(otherPEM)

	ts := startServer(t, login.Options{TLS: &tls.Config{Certificates: []tls.Certificate{cert}}})
	opts := ts.options()
	opts.TLS = secrets.ClientTLSConfig(pool, "")
	c := New(opts, &memStore{}, nil)
	err = c.Connect(context.Background())
	if _, ok := err.(*transport.BadConnectionError); !ok {
		t.Errorf("got %v; want a BadConnectionError", err)
	}
	ttesting.AssertStringer(t, "tick status", c.Tick(time.Now()), StatusDisconnected)
}

func TestFailedAuthenticationDoesNotWedge(t *testing.T) {
	ts := startServer(t, login.Options{})
	c := New(ts.options(), &memStore{}, nil)
	// Too long to fit a frame, so Login cannot even be queued.
	c.opts.Password = strings.Repeat("x", 9000)

	if err := c.Connect(context.Background()); err == nil {
		t.Fatalf("Connect with an unframeable login succeeded")
	}
	ttesting.AssertStringer(t, "state after failed authentication", c.Connection().State(), transport.StateClosed)

	c.opts.Password = "secret"
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnecting: %v", err)
	}
	tickUntil(t, c, "handshake", func() bool { return c.HandshakeToken() != "" })
	closeAndWait(t, c)
}
