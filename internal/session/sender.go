// Package session implements the per-turtle session machine: SessionSender
// (command queue, single-in-flight, request/response correlation, lock
// mode) and SessionReceiver (event classification/dispatch), per spec.md
// §4.3-§4.4. Both are single-owner tasks: all mutable state is touched only
// inside each type's own run() goroutine, never guarded by a mutex, per
// spec.md §5 and §9's replacement of actor-framework hierarchies with
// typed-channel tasks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benjazzy/turtle-wrangler/internal/turtlelink"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

const (
	// ackTimeout is how long the sender waits for an Ok before resending
	// the same envelope.
	ackTimeout = 5 * time.Second

	// lockCap is the absolute lifetime of the locked mode, independent of
	// whether the holder ever calls Unlock.
	lockCap = 10 * time.Second

	// mailboxDepth matches spec.md §5's "small, e.g. 1-8" per-session
	// control channel guidance.
	mailboxDepth = 8
)

// ErrDisconnected is returned to any caller whose request or lock attempt
// was still outstanding when the session terminated.
var ErrDisconnected = errors.New("session: turtle disconnected")

// ErrLockFailed is returned when a lock attempt's ping round-trip fails.
var ErrLockFailed = errors.New("session: lock ping did not receive a pong")

type mode int

const (
	modeNormal mode = iota
	modeLocked
	modeLockDrain
)

type envelope struct {
	id  uint64
	cmd wire.TurtleCommand
}

type queueEntry struct {
	isLock bool
	cmd    wire.TurtleCommand
}

type responseOutcome struct {
	payload wire.ResponsePayload
	err     error
}

type lockResult struct {
	guard *LockGuard
	err   error
}

// mailbox message types. Using distinct types (rather than one struct with
// a tag) keeps each handler's inputs explicit, in the style of the
// teacher's tagged MessageType switch in heartbeat/websocket.go.
type sendMsg struct{ cmd wire.TurtleCommand }
type requestMsg struct {
	req    wire.RequestBody
	result chan responseOutcome
}
type lockMsg struct{ result chan lockResult }
type closeMsg struct{}

type guardSendMsg struct{ cmd wire.TurtleCommand }
type guardRequestMsg struct {
	req    wire.RequestBody
	result chan responseOutcome
}
type guardUnlockMsg struct{}

// Sender is the SessionSender half of a turtle session (spec.md §4.3).
type Sender struct {
	name string
	link *turtlelink.Link

	mailbox chan any
	lockbox chan any
	control chan wire.TurtleEvent

	// onTerminate is invoked once, from run(), when the sender shuts down
	// for any reason (link error, explicit Close). It lets the owning
	// Session notify the Manager without the sender holding a reference
	// back to it.
	onTerminate func()

	done chan struct{}
}

// NewSender constructs a Sender bound to an already-running Link.
// onTerminate is called exactly once when the sender's run loop exits.
func NewSender(name string, link *turtlelink.Link, onTerminate func()) *Sender {
	s := &Sender{
		name:        name,
		link:        link,
		mailbox:     make(chan any, mailboxDepth),
		lockbox:     make(chan any, mailboxDepth),
		control:     make(chan wire.TurtleEvent, mailboxDepth),
		onTerminate: onTerminate,
		done:        make(chan struct{}),
	}
	return s
}

// Control returns the channel the SessionReceiver feeds Ok/Ready/Response
// events into.
func (s *Sender) Control() chan<- wire.TurtleEvent {
	return s.control
}

// Send enqueues a user command in FIFO order behind any already queued.
func (s *Sender) Send(ctx context.Context, cmd wire.TurtleCommand) error {
	return s.post(ctx, sendMsg{cmd: cmd})
}

// Request allocates a request id, enqueues the wrapping command, and blocks
// until the matching Response arrives, ctx is cancelled, or the session
// terminates.
func (s *Sender) Request(ctx context.Context, req wire.RequestBody) (wire.ResponsePayload, error) {
	result := make(chan responseOutcome, 1)
	if err := s.post(ctx, requestMsg{req: req, result: result}); err != nil {
		return wire.ResponsePayload{}, err
	}
	select {
	case out := <-result:
		return out.payload, out.err
	case <-ctx.Done():
		return wire.ResponsePayload{}, ctx.Err()
	case <-s.done:
		return wire.ResponsePayload{}, ErrDisconnected
	}
}

// Lock requests exclusive access. It blocks until the Ping/Pong round trip
// resolves the lock (success) or fails it, ctx is cancelled, or the session
// terminates.
func (s *Sender) Lock(ctx context.Context) (*LockGuard, error) {
	result := make(chan lockResult, 1)
	if err := s.post(ctx, lockMsg{result: result}); err != nil {
		return nil, err
	}
	select {
	case out := <-result:
		return out.guard, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrDisconnected
	}
}

// Close terminates the sender: its run loop exits and invokes onTerminate,
// and any Request or Lock call still waiting returns ErrDisconnected. The
// link itself is closed by Session.Close, not here.
func (s *Sender) Close() {
	select {
	case s.mailbox <- closeMsg{}:
	case <-s.done:
	}
}

// Done reports when the sender's run loop has exited.
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

func (s *Sender) post(ctx context.Context, msg any) error {
	select {
	case s.mailbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrDisconnected
	}
}

// Run is the sender's single-owner event loop. It must be started in its
// own goroutine and runs until Close is called or the link terminates.
func (s *Sender) Run(ctx context.Context) {
	defer close(s.done)
	defer s.terminate()

	st := &senderState{
		pending: make(map[uint64]chan responseOutcome),
	}

	for {
		var retryC <-chan time.Time
		if st.retryTimer != nil {
			retryC = st.retryTimer.C
		}
		var lockDeadlineC <-chan time.Time
		if st.lockDeadline != nil {
			lockDeadlineC = st.lockDeadline.C
		}

		if st.mode == modeLocked || st.mode == modeLockDrain {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-s.control:
				if !ok {
					return
				}
				s.handleControl(st, evt)
			case msg, ok := <-s.lockbox:
				if !ok {
					return
				}
				s.handleLockMsg(st, msg)
			case <-retryC:
				s.handleRetry(st)
			case <-lockDeadlineC:
				s.forceUnlock(st)
			case msg, ok := <-s.mailbox:
				if !ok {
					return
				}
				if _, isClose := msg.(closeMsg); isClose {
					return
				}
				// Main-path sends/requests/locks still get queued (FIFO
				// preserved) even though they won't dispatch until the
				// lock drains.
				s.handleMailbox(st, msg)
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-s.control:
				if !ok {
					return
				}
				s.handleControl(st, evt)
			case msg, ok := <-s.mailbox:
				if !ok {
					return
				}
				if _, isClose := msg.(closeMsg); isClose {
					return
				}
				s.handleMailbox(st, msg)
			case <-retryC:
				s.handleRetry(st)
			}
		}
	}
}

func (s *Sender) terminate() {
	if s.onTerminate != nil {
		s.onTerminate()
	}
}

// senderState holds all mutable sender state; it is only ever touched from
// within Run's goroutine.
type senderState struct {
	ready    bool
	inflight *envelope
	nextID   uint64

	mainQueue []queueEntry
	lockQueue []wire.TurtleCommand

	pending map[uint64]chan responseOutcome

	mode mode

	retryTimer *time.Timer

	lockWaiter   chan lockResult
	lockPingID   uint64
	lockGranted  bool
	lockDeadline *time.Timer
}

func (s *Sender) handleMailbox(st *senderState, msg any) {
	switch m := msg.(type) {
	case sendMsg:
		st.mainQueue = append(st.mainQueue, queueEntry{cmd: m.cmd})
		s.tryDispatch(st)
	case requestMsg:
		id := st.allocID()
		st.pending[id] = m.result
		st.mainQueue = append(st.mainQueue, queueEntry{
			cmd: wire.RequestCommand(wire.RequestEnvelope{ID: id, Request: m.req}),
		})
		s.tryDispatch(st)
	case lockMsg:
		if st.lockWaiter != nil {
			// Only one lock attempt may be outstanding at a time.
			m.result <- lockResult{err: fmt.Errorf("session: lock already requested")}
			return
		}
		st.lockWaiter = m.result
		st.mainQueue = append(st.mainQueue, queueEntry{isLock: true})
		s.tryDispatch(st)
	}
}

func (st *senderState) allocID() uint64 {
	id := st.nextID
	st.nextID++
	return id
}

func (s *Sender) tryDispatch(st *senderState) {
	if !st.ready || st.inflight != nil {
		return
	}

	switch st.mode {
	case modeNormal:
		if len(st.mainQueue) == 0 {
			return
		}
		entry := st.mainQueue[0]
		st.mainQueue = st.mainQueue[1:]
		if entry.isLock {
			s.beginLock(st)
			return
		}
		s.dispatch(st, entry.cmd)
	case modeLocked:
		if len(st.lockQueue) == 0 {
			return
		}
		cmd := st.lockQueue[0]
		st.lockQueue = st.lockQueue[1:]
		s.dispatch(st, cmd)
	case modeLockDrain:
		// No new dispatch while draining; handleControl's Ok path
		// transitions to Normal once inflight clears.
	}
}

// dispatch writes cmd to the wire as the next envelope. Caller guarantees
// ready && inflight == nil.
func (s *Sender) dispatch(st *senderState, cmd wire.TurtleCommand) {
	id := st.allocID()
	env := wire.CommandEnvelope{ID: id, Command: cmd}
	st.inflight = &envelope{id: id, cmd: cmd}
	st.ready = false
	s.writeEnvelope(env)
	s.armRetry(st)
}

func (s *Sender) writeEnvelope(env wire.CommandEnvelope) {
	data, err := wire.EncodeEnvelope(env)
	if err != nil {
		slog.Error("session: failed to encode command envelope", "name", s.name, "error", err)
		return
	}
	if err := s.link.Send(context.Background(), data); err != nil {
		slog.Debug("session: failed to write command envelope", "name", s.name, "error", err)
	}
}

func (s *Sender) armRetry(st *senderState) {
	if st.retryTimer != nil {
		st.retryTimer.Stop()
	}
	st.retryTimer = time.NewTimer(ackTimeout)
}

func (s *Sender) handleRetry(st *senderState) {
	if st.inflight == nil {
		return
	}
	slog.Warn("session: command ack timed out, resending", "name", s.name, "envelope_id", st.inflight.id)
	env := wire.CommandEnvelope{ID: st.inflight.id, Command: st.inflight.cmd}
	s.writeEnvelope(env)
	s.armRetry(st)
}

func (s *Sender) handleControl(st *senderState, evt wire.TurtleEvent) {
	switch evt.Type {
	case wire.EvtOk:
		if st.inflight == nil || evt.ID == nil || st.inflight.id != *evt.ID {
			slog.Warn("session: ok for unexpected id, ignoring", "name", s.name, "id", evt.ID)
			return
		}
		if st.retryTimer != nil {
			st.retryTimer.Stop()
			st.retryTimer = nil
		}
		st.inflight = nil
		if st.mode == modeLockDrain {
			s.finishDrain(st)
			return
		}
		s.tryDispatch(st)
	case wire.EvtReady:
		st.ready = true
		s.tryDispatch(st)
	case wire.EvtResponse:
		s.handleResponse(st, evt)
	default:
		slog.Debug("session: sender ignoring non-control event", "name", s.name, "type", evt.Type)
	}
}

func (s *Sender) handleResponse(st *senderState, evt wire.TurtleEvent) {
	if evt.Response == nil {
		slog.Warn("session: response event missing body", "name", s.name)
		return
	}
	id := evt.Response.ID

	if st.mode == modeLocked && !st.lockGranted && id == st.lockPingID {
		s.resolveLockPing(st, evt.Response.Response)
		return
	}

	sink, ok := st.pending[id]
	if !ok {
		slog.Warn("session: response for unknown request id, dropping", "name", s.name, "id", id)
		return
	}
	delete(st.pending, id)
	sink <- responseOutcome{payload: wire.ResponsePayload{Body: evt.Response.Response}}
}

func (s *Sender) beginLock(st *senderState) {
	st.mode = modeLocked
	st.lockGranted = false
	st.lockDeadline = time.NewTimer(lockCap)

	id := st.allocID()
	st.lockPingID = id
	// The ping's response is intercepted directly in handleResponse rather
	// than routed through st.pending, since resolving it also resolves the
	// LockGuard — not an ordinary request sink.
	s.dispatch(st, wire.RequestCommand(wire.RequestEnvelope{
		ID:      id,
		Request: wire.RequestBody{Type: wire.ReqPing},
	}))
}

func (s *Sender) resolveLockPing(st *senderState, body wire.ResponseBody) {
	waiter := st.lockWaiter
	st.lockWaiter = nil

	if body.Type != wire.RespPong {
		slog.Warn("session: lock ping did not receive a pong", "name", s.name)
		s.exitLocked(st)
		if waiter != nil {
			waiter <- lockResult{err: ErrLockFailed}
		}
		return
	}

	st.lockGranted = true
	if waiter != nil {
		waiter <- lockResult{guard: newLockGuard(s)}
	}
	s.tryDispatch(st)
}

func (s *Sender) handleLockMsg(st *senderState, msg any) {
	switch m := msg.(type) {
	case guardSendMsg:
		st.lockQueue = append(st.lockQueue, m.cmd)
		s.tryDispatch(st)
	case guardRequestMsg:
		id := st.allocID()
		st.pending[id] = m.result
		st.lockQueue = append(st.lockQueue, wire.RequestCommand(wire.RequestEnvelope{ID: id, Request: m.req}))
		s.tryDispatch(st)
	case guardUnlockMsg:
		s.beginDrain(st)
	}
}

func (s *Sender) beginDrain(st *senderState) {
	if st.mode != modeLocked {
		return
	}
	st.mode = modeLockDrain
	if st.inflight == nil {
		s.finishDrain(st)
	}
}

func (s *Sender) finishDrain(st *senderState) {
	s.exitLocked(st)
	s.tryDispatch(st)
}

func (s *Sender) forceUnlock(st *senderState) {
	slog.Warn("session: lock lifetime cap reached, forcing unlock", "name", s.name)
	if st.lockWaiter != nil {
		waiter := st.lockWaiter
		st.lockWaiter = nil
		waiter <- lockResult{err: ErrLockFailed}
	}
	s.exitLocked(st)
	s.tryDispatch(st)
}

func (s *Sender) exitLocked(st *senderState) {
	st.mode = modeNormal
	st.lockGranted = false
	st.lockQueue = nil
	if st.lockDeadline != nil {
		st.lockDeadline.Stop()
		st.lockDeadline = nil
	}
}
