package net

import (
	"bytes"
	"testing"

	"badc0de.net/pkg/gamenet/ttesting"
)

func TestMessageFields(t *testing.T) {
	msg := NewMessage()
	msg.WriteUint16(0x0102)
	msg.WritePrefixedString("account")
	msg.WriteUint32(0xDEADBEEF)
	msg.WriteByte(7)

	in := NewMessageFrom(msg.Bytes())
	v16, err := in.ReadUint16()
	if err != nil {
		t.Fatalf("ReadUint16: %v", err)
	}
	s, err := in.ReadPrefixedString()
	if err != nil {
		t.Fatalf("ReadPrefixedString: %v", err)
	}
	v32, err := in.ReadUint32()
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	b, err := in.ReadUint8()
	if err != nil {
		t.Fatalf("ReadUint8: %v", err)
	}

	ttesting.AssertEqualInt(t, "uint16", int(v16), 0x0102)
	ttesting.AssertEqualString(t, "string", s, "account")
	ttesting.AssertEqualInt(t, "uint32", int(v32), 0xDEADBEEF)
	ttesting.AssertEqualInt(t, "uint8", int(b), 7)
	ttesting.AssertEqualInt(t, "all consumed", in.Len(), 0)
}

func TestReadPrefixedStringTruncated(t *testing.T) {
	msg := NewMessage()
	msg.WriteUint16(10)
	msg.Write([]byte("abc"))
	if _, err := NewMessageFrom(msg.Bytes()).ReadPrefixedString(); err == nil {
		t.Errorf("got no error for a string running past the payload")
	}
}

func TestReadMessage(t *testing.T) {
	msg := NewMessage()
	msg.WritePrefixedString("upgrade-token")
	enc, err := msg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r := bytes.NewReader(append(enc, enc...))
	for i := 0; i < 2; i++ {
		got, err := ReadMessage(r)
		if err != nil {
			t.Fatalf("ReadMessage #%d: %v", i, err)
		}
		ttesting.AssertEqualBytes(t, "payload", got.Bytes(), msg.Bytes())
	}
	if _, err := ReadMessage(r); err == nil {
		t.Errorf("got no error at end of stream")
	}
}
