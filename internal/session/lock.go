package session

import (
	"context"

	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// LockGuard grants its holder exclusive use of a turtle's command queue
// (spec.md §4.3's lock mode). The holder must call Unlock when done; the
// sender additionally enforces an absolute lockCap independent of the
// guard's own lifetime, so a caller that forgets to unlock cannot wedge the
// turtle forever.
type LockGuard struct {
	sender   *Sender
	unlocked bool
}

func newLockGuard(s *Sender) *LockGuard {
	return &LockGuard{sender: s}
}

// Send enqueues a command on the holder's private queue, ahead of any
// non-holder traffic (which is paused for the duration of the lock).
func (g *LockGuard) Send(ctx context.Context, cmd wire.TurtleCommand) error {
	select {
	case g.sender.lockbox <- guardSendMsg{cmd: cmd}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.sender.done:
		return ErrDisconnected
	}
}

// Request behaves like Sender.Request but is scoped to the lock holder's
// private queue.
func (g *LockGuard) Request(ctx context.Context, req wire.RequestBody) (wire.ResponsePayload, error) {
	result := make(chan responseOutcome, 1)
	select {
	case g.sender.lockbox <- guardRequestMsg{req: req, result: result}:
	case <-ctx.Done():
		return wire.ResponsePayload{}, ctx.Err()
	case <-g.sender.done:
		return wire.ResponsePayload{}, ErrDisconnected
	}
	select {
	case out := <-result:
		return out.payload, out.err
	case <-ctx.Done():
		return wire.ResponsePayload{}, ctx.Err()
	case <-g.sender.done:
		return wire.ResponsePayload{}, ErrDisconnected
	}
}

// UpdatePosition is a convenience wrapper used by Manager.SendTurtlePosition
// to push a stored position and heading to the turtle while holding the lock.
func (g *LockGuard) UpdatePosition(ctx context.Context, c wire.Coords, heading wire.Heading) error {
	return g.Send(ctx, wire.UpdatePositionCommand(c, heading))
}

// Unlock releases the lock, resuming the normal command queue. Safe to call
// once; a second call is a no-op since the sender has already moved on.
func (g *LockGuard) Unlock() {
	if g.unlocked {
		return
	}
	g.unlocked = true
	select {
	case g.sender.lockbox <- guardUnlockMsg{}:
	case <-g.sender.done:
	}
}
