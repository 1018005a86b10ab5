package transport

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerReadiness(t *testing.T) {
	a, b := socketpair(t)
	p := NewPoller(0)
	if err := p.Register(a, 7, InterestRead); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(a, 7, InterestRead); err == nil {
		t.Errorf("registering twice succeeded")
	}

	evs, err := p.Poll(nil, 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(evs) != 0 {
		t.Errorf("got %v before anything was written", evs)
	}

	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	evs, err = p.Poll(evs, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(evs) != 1 || evs[0].Token != 7 || !evs[0].Readable || evs[0].Writable {
		t.Errorf("got %+v; want one readable event for token 7", evs)
	}

	if err := p.Reregister(a, 7, InterestWrite); err != nil {
		t.Fatalf("Reregister: %v", err)
	}
	evs, _ = p.Poll(evs, 0)
	if len(evs) != 1 || !evs[0].Writable || evs[0].Readable {
		t.Errorf("got %+v; want one writable event", evs)
	}

	if err := p.Reregister(a, 7, InterestNone); err != nil {
		t.Fatalf("Reregister: %v", err)
	}
	evs, _ = p.Poll(evs, 0)
	if len(evs) != 0 {
		t.Errorf("got %+v with no interest", evs)
	}

	if err := p.Deregister(a); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if err := p.Deregister(a); err == nil {
		t.Errorf("deregistering twice succeeded")
	}
	if err := p.Reregister(a, 7, InterestRead); err == nil {
		t.Errorf("reregistering an unknown fd succeeded")
	}
}

func TestPollerReportsHangupAsReadable(t *testing.T) {
	a, b := socketpair(t)
	p := NewPoller(0)
	p.Register(a, 1, InterestRead)
	unix.Shutdown(b, unix.SHUT_WR)

	evs, err := p.Poll(nil, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(evs) != 1 || !evs[0].Readable {
		t.Errorf("got %+v; want readable on hangup", evs)
	}
}

func TestPollerNegativeTimeoutDoesNotBlock(t *testing.T) {
	a, _ := socketpair(t)
	p := NewPoller(0)
	p.Register(a, 1, InterestRead)

	start := time.Now()
	evs, err := p.Poll(nil, -time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(evs) != 0 {
		t.Errorf("got %+v with nothing to read", evs)
	}
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Errorf("Poll with a negative timeout took %v", d)
	}
}
