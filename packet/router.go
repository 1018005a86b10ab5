package packet

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/gamenet/net"
)

var (
	// ErrUnknownKind means no handler is registered for a received kind,
	// which indicates a version mismatch or a desynchronized stream.
	ErrUnknownKind = errors.New("unknown packet kind")

	// ErrShortFrame means a frame was too short to carry a kind.
	ErrShortFrame = errors.New("frame too short for packet kind")
)

// HandlerFunc handles the body of one packet. The state is only valid for the
// duration of the call.
type HandlerFunc[S any] func(state S, body *tnet.Message) error

// FrameSource is where the router pulls frames from; normally a
// transport.Connection.
type FrameSource interface {
	// NextFrame returns the next complete frame, or ok=false if none is
	// buffered. An error means the stream cannot be trusted anymore.
	NextFrame() (frame []byte, ok bool, err error)
	RequestClose()
	// IsOpen reports whether nobody asked for the source to be closed yet.
	IsOpen() bool
}

// Router maps each packet kind to its handler.
type Router[S any] struct {
	handlers map[Kind]HandlerFunc[S]

	// OnDispatch, if set, is called after each successfully handled packet.
	OnDispatch func(Kind)
}

// NewRouter creates a router with a fixed handler table. The passed map is
// copied.
func NewRouter[S any](handlers map[Kind]HandlerFunc[S]) *Router[S] {
	r := &Router[S]{
		handlers: make(map[Kind]HandlerFunc[S], len(handlers)),
	}
	for k, h := range handlers {
		r.handlers[k] = h
	}
	return r
}

// Dispatch decodes the kind of frame and invokes its handler with the rest of
// the payload. KindOnlineCheck is accepted without a handler.
func (r *Router[S]) Dispatch(state S, frame []byte) error {
	if len(frame) < 2 {
		return errors.Wrapf(ErrShortFrame, "got %d bytes", len(frame))
	}
	body := tnet.NewMessageFrom(frame)
	kind, err := ReadKind(body)
	if err != nil {
		return errors.Wrap(err, "reading packet kind")
	}

	if kind == KindOnlineCheck {
		glog.V(3).Infof("online check received")
		r.dispatched(kind)
		return nil
	}

	h, ok := r.handlers[kind]
	if !ok {
		return errors.Wrapf(ErrUnknownKind, "%v", kind)
	}
	glog.V(2).Infof("dispatching %v (%d bytes)", kind, body.Len())
	if err := h(state, body); err != nil {
		return errors.Wrapf(err, "handling %v", kind)
	}
	r.dispatched(kind)
	return nil
}

func (r *Router[S]) dispatched(kind Kind) {
	if r.OnDispatch != nil {
		r.OnDispatch(kind)
	}
}

// Drain dispatches every complete frame src has buffered, returning how many
// were handled.
//
// Once a handler closes src, the frames behind that packet are dropped: the
// session is over and they must not change anything anymore. If src was
// already closing when Drain was called, as after the peer closed the
// connection, what it still has buffered is delivered.
//
// Any error, be it in framing, an unknown kind or a failing handler, closes
// the connection: a packet which could not be applied in full likely means the
// protocol is out of sync, and reconnecting is the only safe way out.
func (r *Router[S]) Drain(src FrameSource, state S) (int, error) {
	handled := 0
	for {
		frame, ok, err := src.NextFrame()
		if err != nil {
			glog.Errorf("extracting frame: %v; closing connection", err)
			src.RequestClose()
			return handled, err
		}
		if !ok {
			return handled, nil
		}

		wasOpen := src.IsOpen()
		if err := r.Dispatch(state, frame); err != nil {
			glog.Errorf("packet dispatch: %v; closing connection", err)
			src.RequestClose()
			return handled, err
		}
		handled++
		if wasOpen && !src.IsOpen() {
			glog.V(2).Infof("connection closed by a handler; not dispatching what is buffered behind it")
			return handled, nil
		}
	}
}
