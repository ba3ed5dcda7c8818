package session

import (
	"context"

	"github.com/benjazzy/turtle-wrangler/internal/turtlelink"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// Session combines a Link, Sender, and Receiver into the single per-turtle
// unit the Manager holds a handle to (spec.md §4.1's "per-turtle session").
type Session struct {
	Name string

	link     *turtlelink.Link
	sender   *Sender
	receiver *Receiver

	cancel context.CancelFunc
}

// New starts the link's I/O loops and the sender/receiver goroutines, and
// returns the running Session. onTerminate is invoked exactly once when the
// underlying link goes away, letting the Manager drop its entry.
func New(ctx context.Context, name string, link *turtlelink.Link, hooks Hooks, onTerminate func()) *Session {
	ctx, cancel := context.WithCancel(ctx)

	sender := NewSender(name, link, onTerminate)
	receiver := NewReceiver(name, hooks)

	s := &Session{
		Name:     name,
		link:     link,
		sender:   sender,
		receiver: receiver,
		cancel:   cancel,
	}

	go link.Run(ctx)
	go sender.Run(ctx)
	go func() {
		// link.Events closes when the link terminates; stopping the sender
		// then fires onTerminate.
		receiver.Run(link.Events(), sender.Control())
		sender.Close()
	}()

	return s
}

// Send enqueues a fire-and-forget command.
func (s *Session) Send(ctx context.Context, cmd wire.TurtleCommand) error {
	return s.sender.Send(ctx, cmd)
}

// Request issues a request/response round trip.
func (s *Session) Request(ctx context.Context, req wire.RequestBody) (wire.ResponsePayload, error) {
	return s.sender.Request(ctx, req)
}

// Lock acquires exclusive use of the session's command queue.
func (s *Session) Lock(ctx context.Context) (*LockGuard, error) {
	return s.sender.Lock(ctx)
}

// Done reports when the session has fully terminated.
func (s *Session) Done() <-chan struct{} {
	return s.sender.Done()
}

// Close tears the session down: sends a WS close frame and closes the
// socket, cancels the link's context, stops the sender, and fails any
// outstanding request or lock attempt. The link's own readLoop blocks on
// conn.ReadMessage with no regard for ctx, so cancelling ctx alone would
// never unblock it — link.Close must be called directly (spec.md §4.6 /
// §8 scenario 4: re-Register must close the old session's WS connection).
func (s *Session) Close() {
	s.link.Close()
	s.sender.Close()
	s.cancel()
}
