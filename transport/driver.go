package transport

import (
	"time"

	"github.com/golang/glog"
)

// Driver pumps readiness events from a Poller into one Connection, once per
// application tick.
type Driver struct {
	poller *Poller
	conn   *Connection
	events []Event
}

func NewDriver(poller *Poller, conn *Connection) *Driver {
	return &Driver{
		poller: poller,
		conn:   conn,
		events: make([]Event, 0, poller.capacity),
	}
}

// PollOnce polls for at most timeout, which should be zero or short, and
// processes whatever is ready. It reports disconnected once the connection
// is Closed so the caller can decide whether to reconnect.
func (d *Driver) PollOnce(timeout time.Duration) (disconnected bool, err error) {
	if d.conn.State() == StateClosed {
		return true, nil
	}

	d.events, err = d.poller.Poll(d.events, timeout)
	if err != nil {
		return false, err
	}
	for _, ev := range d.events {
		if ev.Token != d.conn.Token() {
			glog.V(2).Infof("event for unknown token %d", ev.Token)
			continue
		}
		d.conn.Process(ev)
	}
	return d.conn.State() == StateClosed, nil
}
