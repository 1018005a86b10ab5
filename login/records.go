package login

import (
	"encoding/binary"
	"net"
)

const recordHeaderLen = 5

// recordConn hands the tls.Conn on top of it no more than one TLS record at a
// time. The tls.Conn otherwise reads ahead, and after the switch to plaintext
// whatever it read ahead would be lost.
type recordConn struct {
	net.Conn

	header    [recordHeaderLen]byte
	headerN   int
	remaining int
}

func (c *recordConn) Read(p []byte) (int, error) {
	if c.remaining == 0 {
		want := recordHeaderLen - c.headerN
		if len(p) > want {
			p = p[:want]
		}
		n, err := c.Conn.Read(p)
		copy(c.header[c.headerN:], p[:n])
		c.headerN += n
		if c.headerN == recordHeaderLen {
			c.headerN = 0
			c.remaining = int(binary.BigEndian.Uint16(c.header[3:]))
		}
		return n, err
	}

	if len(p) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.Conn.Read(p)
	c.remaining -= n
	return n, err
}
