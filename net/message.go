package net

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Message is a single payload, either being built for sending or being parsed
// after it was extracted from a frame.
//
// All integers are little endian. Strings are prefixed with their length as
// a uint16.
type Message struct {
	bytes.Buffer
}

// NewMessage creates an empty message, ready to be written into.
func NewMessage() *Message {
	return &Message{Buffer: bytes.Buffer{}}
}

// NewMessageFrom wraps a received payload so its fields can be read.
func NewMessageFrom(payload []byte) *Message {
	return &Message{Buffer: *bytes.NewBuffer(payload)}
}

// ReadMessage reads one whole frame from a blocking reader.
func ReadMessage(r io.Reader) (*Message, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errors.Wrap(err, "message len read error")
	}

	glog.V(3).Infof("incoming message len: %d", n)
	if !validLength(n) {
		return nil, errors.Wrapf(ErrFrameLength, "got length %d", n)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "message read error")
	}
	return NewMessageFrom(b), nil
}

func (msg *Message) ReadUint8() (uint8, error) {
	b, err := msg.ReadByte()
	if err != nil {
		return 0, errors.Wrap(err, "reading uint8")
	}
	return b, nil
}

func (msg *Message) ReadUint16() (uint16, error) {
	var v uint16
	if err := binary.Read(msg, binary.LittleEndian, &v); err != nil {
		return 0, errors.Wrap(err, "reading uint16")
	}
	return v, nil
}

func (msg *Message) ReadUint32() (uint32, error) {
	var v uint32
	if err := binary.Read(msg, binary.LittleEndian, &v); err != nil {
		return 0, errors.Wrap(err, "reading uint32")
	}
	return v, nil
}

func (msg *Message) WriteUint16(v uint16) error {
	return binary.Write(msg, binary.LittleEndian, v)
}

func (msg *Message) WriteUint32(v uint32) error {
	return binary.Write(msg, binary.LittleEndian, v)
}

// ReadPrefixedString reads a uint16 length followed by that many bytes.
func (msg *Message) ReadPrefixedString() (string, error) {
	sz, err := msg.ReadUint16()
	if err != nil {
		return "", errors.Wrap(err, "reading string size")
	}
	if int(sz) > msg.Len() {
		return "", errors.Errorf("reading string: size %d exceeds remaining %d bytes", sz, msg.Len())
	}
	return string(msg.Next(int(sz))), nil
}

func (msg *Message) WritePrefixedString(s string) error {
	if len(s) > 0xFFFF {
		return errors.Errorf("writing string: %d bytes do not fit a uint16 size", len(s))
	}
	if err := msg.WriteUint16(uint16(len(s))); err != nil {
		return errors.Wrap(err, "writing string size")
	}

	n, err := msg.Buffer.WriteString(s)
	if err != nil {
		return errors.Wrap(err, "writing string")
	}
	if n != len(s) {
		return errors.Errorf("writing string: not all was written")
	}
	return nil
}

// Finalize prepends the message length, returning the bytes that go onto the
// wire. The message itself is left untouched.
func (msg *Message) Finalize() ([]byte, error) {
	return Encode(msg.Bytes())
}
