// Package login is a reference server for the game protocol. It serves each
// connection on its own goroutine with plain blocking I/O, and is what the
// client is tested against.
package login

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"io"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/gamenet/net"
	"badc0de.net/pkg/gamenet/packet"
)

// Options configure a LoginServer.
type Options struct {
	// Accounts maps account names to passwords.
	Accounts map[string]string

	// TLS, when set, makes every connection start with a TLS handshake.
	TLS *tls.Config

	// Downgrade makes the server request a plaintext channel right after a
	// successful login on an encrypted connection.
	Downgrade bool

	// ReadTimeout bounds the wait for each packet. Zero means one minute.
	ReadTimeout time.Duration

	// Observe, if set, is called with the kind of every received packet.
	Observe func(packet.Kind)
}

// LoginServer authenticates clients and then keeps their connection alive.
type LoginServer struct {
	opts Options

	mu    sync.Mutex
	codes map[string]string // reconnect code to account
}

func NewServer(opts Options) (*LoginServer, error) {
	if opts.Downgrade && opts.TLS == nil {
		return nil, errors.New("login: downgrade needs tls")
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = time.Minute
	}
	return &LoginServer{
		opts:  opts,
		codes: map[string]string{},
	}, nil
}

// Accept serves every connection l accepts until l is closed.
func (s *LoginServer) Accept(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "accepting")
		}
		go func() {
			if err := s.Serve(conn); err != nil {
				glog.Errorf("%v: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// Serve speaks the protocol on conn until the client goes away. conn is
// closed on return.
func (s *LoginServer) Serve(conn net.Conn) error {
	defer conn.Close()
	glog.Infoln("accepted connection from ", conn.RemoteAddr())

	sess := &session{conn: conn, rw: conn}
	if s.opts.TLS != nil {
		sess.records = &recordConn{Conn: conn}
		sess.tls = tls.Server(sess.records, s.opts.TLS)
		conn.SetDeadline(time.Now().Add(s.opts.ReadTimeout))
		if err := sess.tls.Handshake(); err != nil {
			return errors.Wrap(err, "tls handshake")
		}
		conn.SetDeadline(time.Time{})
		sess.rw = sess.tls
	}

	msg, kind, err := s.read(sess)
	if err != nil {
		return err
	}
	account, ok, err := s.authenticate(kind, msg)
	if err != nil {
		return err
	}
	if !ok {
		glog.Infof("%v: authentication failed", conn.RemoteAddr())
		return sess.send(func(w *tnet.Message) error {
			return packet.LoginFailed(w, "invalid credentials")
		})
	}
	glog.Infof("%v: %q authenticated", conn.RemoteAddr(), account)

	token, err := randomString()
	if err != nil {
		return err
	}
	code, err := s.issueCode(account)
	if err != nil {
		return err
	}
	if err := sess.send(func(w *tnet.Message) error { return packet.HandShake(w, token) }); err != nil {
		return err
	}
	if err := sess.send(func(w *tnet.Message) error { return packet.ReconnectCode(w, code) }); err != nil {
		return err
	}
	if s.opts.Downgrade {
		if err := sess.send(packet.Plaintext); err != nil {
			return err
		}
		sess.awaitingAck = true
	}

	for {
		msg, kind, err := s.read(sess)
		if err == io.EOF {
			glog.Infof("%v: client went away", conn.RemoteAddr())
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case kind == packet.KindPlaintext && sess.awaitingAck:
			// That was the last encrypted packet; the tls.Conn has not
			// read past it.
			sess.awaitingAck = false
			sess.rw = conn
			glog.Infof("%v: connection is now plaintext", conn.RemoteAddr())
		case kind == packet.KindOnlineCheck:
			// Receiving it is all there is to it.
		default:
			glog.Warningf("%v: unexpected %v with %d bytes", conn.RemoteAddr(), kind, msg.Len())
			return sess.send(func(w *tnet.Message) error {
				return packet.Kick(w, "unexpected "+kind.String())
			})
		}
	}
}

// read reads one packet and its kind. A clean close between packets is
// reported as io.EOF.
func (s *LoginServer) read(sess *session) (*tnet.Message, packet.Kind, error) {
	sess.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	msg, err := tnet.ReadMessage(sess.rw)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		return nil, 0, err
	}
	kind, err := packet.ReadKind(msg)
	if err != nil {
		return nil, 0, err
	}
	glog.V(2).Infof("%v: received %v", sess.conn.RemoteAddr(), kind)
	if s.opts.Observe != nil {
		s.opts.Observe(kind)
	}
	return msg, kind, nil
}

func (s *LoginServer) authenticate(kind packet.Kind, msg *tnet.Message) (string, bool, error) {
	switch kind {
	case packet.KindLogin:
		req, err := packet.ReadLogin(msg)
		if err != nil {
			return "", false, errors.Wrap(err, "reading login")
		}
		pwd, ok := s.opts.Accounts[req.Account]
		return req.Account, ok && pwd == req.Password, nil
	case packet.KindReconnect:
		code, err := packet.ReadReconnect(msg)
		if err != nil {
			return "", false, errors.Wrap(err, "reading reconnect")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		account, ok := s.codes[code]
		// Codes are single use.
		delete(s.codes, code)
		return account, ok, nil
	default:
		return "", false, errors.Errorf("expected login, got %v", kind)
	}
}

func (s *LoginServer) issueCode(account string) (string, error) {
	code, err := randomString()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.codes[code] = account
	s.mu.Unlock()
	return code, nil
}

func randomString() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating random string")
	}
	return hex.EncodeToString(b), nil
}
