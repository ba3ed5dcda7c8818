package manager

import (
	"context"

	"github.com/benjazzy/turtle-wrangler/internal/session"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

type registerMsg struct {
	name   string
	sess   *session.Session
	result chan error
}

type disconnectMsg struct {
	name   string
	result chan error
}

type broadcastMsg struct {
	cmd    wire.TurtleCommand
	result chan error
}

type getTurtleResult struct {
	sess *session.Session
	ok   bool
}

type getTurtleMsg struct {
	name   string
	result chan getTurtleResult
}

type updatePositionMsg struct {
	name   string
	pos    wire.Coords
	result chan error
}

type updateHeadingMsg struct {
	name    string
	heading wire.Heading
	result  chan error
}

type updateFuelMsg struct {
	name   string
	level  int64
	result chan error
}

type sendTurtlePositionMsg struct {
	name   string
	result chan error
}

type reportMsg struct {
	name    string
	pos     wire.Coords
	heading wire.Heading
	fuel    wire.Fuel
}

type turtleEventMsg struct {
	name string
	evt  wire.TurtleEvent
}

type subscribeResult struct {
	ch          <-chan ConnEvent
	unsubscribe func()
}

type clientSubscribeMsg struct {
	result chan subscribeResult
}

type unsubscribeMsg struct {
	id uint64
}

type statusMsg struct {
	result chan Status
}

func (m *Manager) post(ctx context.Context, msg any) error {
	select {
	case m.mailbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

// Register attaches sess as the Connected session for name, closing any
// previously-connected session first (spec.md §4.6).
func (m *Manager) Register(ctx context.Context, name string, sess *session.Session) error {
	result := make(chan error, 1)
	if err := m.post(ctx, registerMsg{name: name, sess: sess, result: result}); err != nil {
		return err
	}
	return waitErr(ctx, result, m.done)
}

// Disconnect closes name's current session, if any, and broadcasts
// Disconnected.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	result := make(chan error, 1)
	if err := m.post(ctx, disconnectMsg{name: name, result: result}); err != nil {
		return err
	}
	return waitErr(ctx, result, m.done)
}

// Broadcast sends cmd to every Connected turtle. Per-turtle send failures
// are logged, not returned.
func (m *Manager) Broadcast(ctx context.Context, cmd wire.TurtleCommand) error {
	result := make(chan error, 1)
	if err := m.post(ctx, broadcastMsg{cmd: cmd, result: result}); err != nil {
		return err
	}
	return waitErr(ctx, result, m.done)
}

// GetTurtle returns the Connected session for name, if any.
func (m *Manager) GetTurtle(ctx context.Context, name string) (*session.Session, bool, error) {
	result := make(chan getTurtleResult, 1)
	if err := m.post(ctx, getTurtleMsg{name: name, result: result}); err != nil {
		return nil, false, err
	}
	select {
	case out := <-result:
		return out.sess, out.ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-m.done:
		return nil, false, ErrClosed
	}
}

// UpdatePosition writes name's position through to the DB.
func (m *Manager) UpdatePosition(ctx context.Context, name string, pos wire.Coords) error {
	result := make(chan error, 1)
	if err := m.post(ctx, updatePositionMsg{name: name, pos: pos, result: result}); err != nil {
		return err
	}
	return waitErr(ctx, result, m.done)
}

// UpdateHeading writes name's heading through to the DB.
func (m *Manager) UpdateHeading(ctx context.Context, name string, heading wire.Heading) error {
	result := make(chan error, 1)
	if err := m.post(ctx, updateHeadingMsg{name: name, heading: heading, result: result}); err != nil {
		return err
	}
	return waitErr(ctx, result, m.done)
}

// UpdateFuel writes name's fuel level through to the DB.
func (m *Manager) UpdateFuel(ctx context.Context, name string, level int64) error {
	result := make(chan error, 1)
	if err := m.post(ctx, updateFuelMsg{name: name, level: level, result: result}); err != nil {
		return err
	}
	return waitErr(ctx, result, m.done)
}

// SendTurtlePosition looks up name's DB row and, via a session lock, pushes
// an UpdatePosition command to the turtle (spec.md §9 Open Question 3: this
// always takes the lock path).
func (m *Manager) SendTurtlePosition(ctx context.Context, name string) error {
	result := make(chan error, 1)
	if err := m.post(ctx, sendTurtlePositionMsg{name: name, result: result}); err != nil {
		return err
	}
	return waitErr(ctx, result, m.done)
}

// ClientSubscribe registers a new Subscriber, replays Connected/Disconnected
// for every known turtle, and returns the event channel plus an unsubscribe
// function.
func (m *Manager) ClientSubscribe(ctx context.Context) (<-chan ConnEvent, func(), error) {
	result := make(chan subscribeResult, 1)
	if err := m.post(ctx, clientSubscribeMsg{result: result}); err != nil {
		return nil, nil, err
	}
	select {
	case out := <-result:
		return out.ch, out.unsubscribe, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-m.done:
		return nil, nil, ErrClosed
	}
}

// Status returns a snapshot of turtle counts for the operator console and
// HTTP status endpoint.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	result := make(chan Status, 1)
	if err := m.post(ctx, statusMsg{result: result}); err != nil {
		return Status{}, err
	}
	select {
	case out := <-result:
		return out, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-m.done:
		return Status{}, ErrClosed
	}
}

func waitErr(ctx context.Context, result chan error, done chan struct{}) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrClosed
	}
}
