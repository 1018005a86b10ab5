package net

// ReceiveBuffer accumulates bytes read from the connection until complete
// frames can be extracted.
//
// Data is always appended at the write cursor, which sits at the end of the
// buffered data. Reads consume from the read cursor forward. Once everything
// written has been read, the buffer is truncated to empty, and once more than
// half of it has been read, Write moves the unread rest to the front. Memory
// use stays bounded by the largest burst of unread data either way.
//
// Only Write moves data, so bytes consumed by Next can always be restored
// with Unread until the next Write.
type ReceiveBuffer struct {
	data []byte
	rpos int
}

// Write appends p at the write cursor. It never fails.
func (b *ReceiveBuffer) Write(p []byte) (int, error) {
	b.truncateIfDrained()
	b.compact()
	b.data = append(b.data, p...)
	return len(p), nil
}

// Buffered returns the number of unread bytes.
func (b *ReceiveBuffer) Buffered() int {
	return len(b.data) - b.rpos
}

// Next consumes and returns up to n unread bytes. The returned slice is only
// valid until the next Write.
func (b *ReceiveBuffer) Next(n int) []byte {
	if n > b.Buffered() {
		n = b.Buffered()
	}
	p := b.data[b.rpos : b.rpos+n]
	b.rpos += n
	return p
}

// Unread moves the read cursor back by n bytes, making them readable again.
func (b *ReceiveBuffer) Unread(n int) {
	if n > b.rpos {
		n = b.rpos
	}
	b.rpos -= n
}

// compact moves the unread bytes to the front once the read ones take up
// more than half of the buffer.
func (b *ReceiveBuffer) compact() {
	if b.rpos == 0 || b.rpos <= len(b.data)/2 {
		return
	}
	n := copy(b.data, b.data[b.rpos:])
	b.data = b.data[:n]
	b.rpos = 0
}

// truncateIfDrained empties the buffer once the read cursor has caught up
// with the write cursor.
func (b *ReceiveBuffer) truncateIfDrained() {
	if b.rpos == len(b.data) {
		b.data = b.data[:0]
		b.rpos = 0
	}
}
