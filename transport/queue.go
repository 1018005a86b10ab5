package transport

// outboundQueue is a FIFO of framed payloads waiting to be written.
type outboundQueue struct {
	items [][]byte
}

func (q *outboundQueue) Len() int { return len(q.items) }

func (q *outboundQueue) Push(p []byte) {
	q.items = append(q.items, p)
}

// PushFront puts back what is left of a payload that could not be written in
// full, so that it goes out before anything queued after it.
func (q *outboundQueue) PushFront(p []byte) {
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items)
	q.items[0] = p
}

func (q *outboundQueue) Pop() []byte {
	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return p
}
