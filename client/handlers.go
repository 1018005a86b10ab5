package client

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/gamenet/net"
	"badc0de.net/pkg/gamenet/packet"
)

func handleHandShake(c *Client, body *tnet.Message) error {
	token, err := packet.ReadHandShake(body)
	if err != nil {
		return err
	}
	c.token = token
	glog.Infof("handshake with %s complete", c.conn.RemoteAddr())
	return nil
}

// handleReconnectCode persists the code. Failing to do so only costs a full
// login next time, so the session goes on.
func handleReconnectCode(c *Client, body *tnet.Message) error {
	code, err := packet.ReadReconnectCode(body)
	if err != nil {
		return err
	}
	if err := c.store.SetReconnectCode(code); err != nil {
		glog.Errorf("storing reconnect code: %v", err)
	}
	return nil
}

// handlePlaintext starts the downgrade and acknowledges it with the last
// encrypted packet of the connection.
func handlePlaintext(c *Client, body *tnet.Message) error {
	if err := c.conn.BeginDowngrade(); err != nil {
		return errors.Wrap(err, "plaintext requested")
	}
	ack := tnet.NewMessage()
	if err := packet.Plaintext(ack); err != nil {
		return err
	}
	frame, err := ack.Finalize()
	if err != nil {
		return err
	}
	downgrades.Inc()
	return c.conn.Enqueue(frame, true)
}

func handleLoginFailed(c *Client, body *tnet.Message) error {
	reason, err := packet.ReadLoginFailed(body)
	if err != nil {
		return err
	}
	glog.Warningf("login failed: %s", reason)
	// A rejected reconnect code will not start working later.
	if err := c.store.SetReconnectCode(""); err != nil {
		glog.Errorf("clearing reconnect code: %v", err)
	}
	c.conn.RequestClose()
	return nil
}

func handleKick(c *Client, body *tnet.Message) error {
	reason, err := packet.ReadKick(body)
	if err != nil {
		return err
	}
	glog.Warningf("kicked by server: %s", reason)
	c.conn.RequestClose()
	return nil
}
