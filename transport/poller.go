package transport

import (
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultEventCapacity bounds how many events one poll returns. There is only
// one connection of interest, so this is generous.
const DefaultEventCapacity = 32

// Token identifies a registered socket in the events a Poller returns.
type Token uintptr

// Event is a readiness notification for one socket.
type Event struct {
	Token    Token
	Readable bool
	Writable bool
}

// Registry is where a Connection keeps its readiness interest up to date.
type Registry interface {
	Register(fd int, token Token, interest PollInterest) error
	Reregister(fd int, token Token, interest PollInterest) error
	Deregister(fd int) error
}

type registration struct {
	token    Token
	interest PollInterest
}

// Poller is a poll(2) based readiness source.
type Poller struct {
	regs     map[int]registration
	capacity int

	pfds   []unix.PollFd
	tokens []Token
}

func NewPoller(capacity int) *Poller {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &Poller{
		regs:     map[int]registration{},
		capacity: capacity,
	}
}

func (p *Poller) Register(fd int, token Token, interest PollInterest) error {
	if _, ok := p.regs[fd]; ok {
		return errors.Errorf("fd %d already registered", fd)
	}
	p.regs[fd] = registration{token: token, interest: interest}
	glog.V(3).Infof("poller: registered fd %d token %d for %v", fd, token, interest)
	return nil
}

func (p *Poller) Reregister(fd int, token Token, interest PollInterest) error {
	if _, ok := p.regs[fd]; !ok {
		return errors.Errorf("fd %d not registered", fd)
	}
	p.regs[fd] = registration{token: token, interest: interest}
	return nil
}

func (p *Poller) Deregister(fd int) error {
	if _, ok := p.regs[fd]; !ok {
		return errors.Errorf("fd %d not registered", fd)
	}
	delete(p.regs, fd)
	glog.V(3).Infof("poller: deregistered fd %d", fd)
	return nil
}

// Poll waits up to timeout for readiness and appends the resulting events to
// events[:0]. A zero or negative timeout returns immediately. An interrupted poll returns
// no events and no error.
func (p *Poller) Poll(events []Event, timeout time.Duration) ([]Event, error) {
	events = events[:0]
	p.pfds = p.pfds[:0]
	p.tokens = p.tokens[:0]

	for fd, r := range p.regs {
		var mask int16
		if r.interest.IsReadable() {
			mask |= unix.POLLIN
		}
		if r.interest.IsWritable() {
			mask |= unix.POLLOUT
		}
		if mask == 0 {
			continue
		}
		p.pfds = append(p.pfds, unix.PollFd{Fd: int32(fd), Events: mask})
		p.tokens = append(p.tokens, r.token)
	}
	if len(p.pfds) == 0 {
		return events, nil
	}

	// A negative timeout would make poll(2) wait forever.
	if timeout < 0 {
		timeout = 0
	}
	n, err := unix.Poll(p.pfds, int(timeout/time.Millisecond))
	if err != nil {
		if isInterrupted(err) {
			return events, nil
		}
		return events, errors.Wrap(err, "poll")
	}
	if n == 0 {
		return events, nil
	}

	for i, pfd := range p.pfds {
		if pfd.Revents == 0 {
			continue
		}
		if len(events) == p.capacity {
			break
		}
		ev := Event{Token: p.tokens[i]}
		// Errors and hangups surface through the read path, which sees the
		// zero-byte read or the error itself.
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			ev.Readable = true
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			ev.Writable = true
		}
		events = append(events, ev)
	}
	return events, nil
}
