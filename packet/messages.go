package packet

// This file contains functions to build each packet into a net.Message, and
// to parse the fields of the ones the other side sends. Parsers are passed the
// body, meaning the kind has already been consumed.

import (
	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/gamenet/net"
)

// LoginRequest is the body of KindLogin.
type LoginRequest struct {
	Account, Password string
	ClientVersion     uint16
}

// OnlineCheck writes the heartbeat packet.
func OnlineCheck(w *tnet.Message) error {
	return WriteKind(w, KindOnlineCheck)
}

// Login writes the initial authentication packet.
func Login(w *tnet.Message, req LoginRequest) error {
	if err := WriteKind(w, KindLogin); err != nil {
		return err
	}
	if err := w.WriteUint16(req.ClientVersion); err != nil {
		return err
	}
	if err := w.WritePrefixedString(req.Account); err != nil {
		return err
	}
	return w.WritePrefixedString(req.Password)
}

func ReadLogin(r *tnet.Message) (LoginRequest, error) {
	var req LoginRequest
	var err error
	if req.ClientVersion, err = r.ReadUint16(); err != nil {
		return req, errors.Wrap(err, "client version")
	}
	if req.Account, err = r.ReadPrefixedString(); err != nil {
		return req, errors.Wrap(err, "account")
	}
	if req.Password, err = r.ReadPrefixedString(); err != nil {
		return req, errors.Wrap(err, "password")
	}
	return req, nil
}

// Reconnect asks the server to resume the session that was handed the passed
// reconnect code, instead of authenticating again.
func Reconnect(w *tnet.Message, code string) error {
	if err := WriteKind(w, KindReconnect); err != nil {
		return err
	}
	return w.WritePrefixedString(code)
}

func ReadReconnect(r *tnet.Message) (string, error) {
	code, err := r.ReadPrefixedString()
	return code, errors.Wrap(err, "reconnect code")
}

// HandShake confirms a successful login, handing the client the server's
// session token.
func HandShake(w *tnet.Message, token string) error {
	if err := WriteKind(w, KindHandShake); err != nil {
		return err
	}
	return w.WritePrefixedString(token)
}

func ReadHandShake(r *tnet.Message) (string, error) {
	token, err := r.ReadPrefixedString()
	return token, errors.Wrap(err, "handshake token")
}

// ReconnectCode hands the client a code it should persist and replay with
// Reconnect.
func ReconnectCode(w *tnet.Message, code string) error {
	if err := WriteKind(w, KindReconnectCode); err != nil {
		return err
	}
	return w.WritePrefixedString(code)
}

func ReadReconnectCode(r *tnet.Message) (string, error) {
	code, err := r.ReadPrefixedString()
	return code, errors.Wrap(err, "reconnect code")
}

// Plaintext requests (server) or acknowledges (client) the switch to a
// plaintext channel. It has no fields.
func Plaintext(w *tnet.Message) error {
	return WriteKind(w, KindPlaintext)
}

// LoginFailed tells the client why Login or Reconnect was refused.
func LoginFailed(w *tnet.Message, reason string) error {
	if err := WriteKind(w, KindLoginFailed); err != nil {
		return err
	}
	return w.WritePrefixedString(reason)
}

func ReadLoginFailed(r *tnet.Message) (string, error) {
	reason, err := r.ReadPrefixedString()
	return reason, errors.Wrap(err, "login failure reason")
}

// Kick tells the client the server is dropping the connection.
func Kick(w *tnet.Message, reason string) error {
	if err := WriteKind(w, KindKick); err != nil {
		return err
	}
	return w.WritePrefixedString(reason)
}

func ReadKick(r *tnet.Message) (string, error) {
	reason, err := r.ReadPrefixedString()
	return reason, errors.Wrap(err, "kick reason")
}
