package login

import (
	"crypto/tls"
	"io"
	"net"

	"github.com/golang/glog"

	tnet "badc0de.net/pkg/gamenet/net"
)

// session is the per-connection state of Serve.
type session struct {
	conn net.Conn
	// rw is where packets are read from and written to: conn itself, or
	// tls on top of records while encrypted.
	rw      io.ReadWriter
	tls     *tls.Conn
	records *recordConn

	awaitingAck bool
}

// send builds a packet with build and writes it out whole.
func (sess *session) send(build func(w *tnet.Message) error) error {
	msg := tnet.NewMessage()
	if err := build(msg); err != nil {
		glog.Errorln("error generating message: ", err)
		return err
	}
	b, err := msg.Finalize()
	if err != nil {
		glog.Errorf("error finalizing message: %s", err)
		return err
	}
	wr, err := sess.rw.Write(b)
	if err != nil {
		glog.Errorf("error writing message: %s", err)
		return err
	}
	glog.V(2).Infof("written %d bytes", wr)
	return nil
}
