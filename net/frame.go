package net

import (
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const (
	// LengthPrefixSize is the size of the unsigned frame length which
	// precedes every payload on the wire.
	LengthPrefixSize = 8

	// MinFrameLength and MaxFrameLength bound the payload length. Anything
	// outside of the range means the stream is desynchronized.
	MinFrameLength = 2
	MaxFrameLength = 8192
)

// ErrFrameLength is returned when a frame length is outside of
// [MinFrameLength, MaxFrameLength].
var ErrFrameLength = errors.New("frame length out of range")

func validLength(n uint64) bool {
	return n >= MinFrameLength && n <= MaxFrameLength
}

// Encode prefixes the payload with its length, producing bytes which can be
// handed to the send path unmodified.
func Encode(payload []byte) ([]byte, error) {
	if !validLength(uint64(len(payload))) {
		return nil, errors.Wrapf(ErrFrameLength, "encoding %d byte payload", len(payload))
	}

	out := make([]byte, LengthPrefixSize, LengthPrefixSize+len(payload))
	out = append(out, payload...)
	binary.LittleEndian.PutUint64(out[:LengthPrefixSize], uint64(len(payload)))
	return out, nil
}

// TryExtractFrame consumes one complete frame from rb and returns its payload.
//
// If not enough bytes are buffered yet, ok is false and nothing is consumed;
// the caller should retry once more data has arrived. A length outside of the
// permitted range yields an error wrapping ErrFrameLength. The stream cannot be
// resynchronized after that and the connection must be closed.
func TryExtractFrame(rb *ReceiveBuffer) (payload []byte, ok bool, err error) {
	if rb.Buffered() < LengthPrefixSize {
		return nil, false, nil
	}

	n := binary.LittleEndian.Uint64(rb.Next(LengthPrefixSize))
	if !validLength(n) {
		rb.Unread(LengthPrefixSize)
		return nil, false, errors.Wrapf(ErrFrameLength, "got length %d", n)
	}

	if uint64(rb.Buffered()) < n {
		// Not everything's here yet; the length gets read again next time.
		rb.Unread(LengthPrefixSize)
		glog.V(3).Infof("frame of %d bytes incomplete, %d buffered", n, rb.Buffered()-LengthPrefixSize)
		return nil, false, nil
	}

	payload = make([]byte, n)
	copy(payload, rb.Next(int(n)))
	rb.truncateIfDrained()
	return payload, true, nil
}
