// Package manager implements the Manager, the single-owner turtle registry
// and Subscriber fan-out hub (spec.md §4.6). Like internal/session, it is a
// single goroutine reading a mailbox; no mutex guards its state.
package manager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benjazzy/turtle-wrangler/internal/db"
	"github.com/benjazzy/turtle-wrangler/internal/session"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// mailboxDepth matches spec.md §5's "Manager: ≈100" backpressure guidance.
const mailboxDepth = 100

// subscriberDepth is the per-subscriber buffered sink capacity; a full sink
// causes that subscriber to be pruned on the next broadcast attempt.
const subscriberDepth = 32

type entry struct {
	session   *session.Session
	connected bool
}

type subscriber struct {
	id   uint64
	sink chan ConnEvent
}

// Manager is the turtle registry handle. Call Run in its own goroutine,
// then use the exported methods to interact with it from any goroutine.
type Manager struct {
	db *db.DB

	mailbox chan any
	done    chan struct{}
}

// New constructs a Manager backed by database. Call Run to start it.
func New(database *db.DB) *Manager {
	return &Manager{
		db:      database,
		mailbox: make(chan any, mailboxDepth),
		done:    make(chan struct{}),
	}
}

// Done reports when the Manager's run loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Run is the Manager's single-owner event loop.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	st := &state{
		order:       nil,
		turtles:     make(map[string]*entry),
		subscribers: make(map[uint64]subscriber),
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.mailbox:
			m.dispatch(ctx, st, msg)
		}
	}
}

type state struct {
	order       []string
	turtles     map[string]*entry
	subscribers map[uint64]subscriber
	nextSubID   uint64
}

func (m *Manager) dispatch(ctx context.Context, st *state, msg any) {
	switch mm := msg.(type) {
	case registerMsg:
		m.handleRegister(ctx, st, mm)
	case disconnectMsg:
		m.handleDisconnect(st, mm)
	case broadcastMsg:
		m.handleBroadcast(ctx, st, mm)
	case getTurtleMsg:
		e, ok := st.turtles[mm.name]
		res := getTurtleResult{ok: ok}
		if ok && e.connected {
			res.sess = e.session
		} else {
			res.ok = false
		}
		mm.result <- res
	case updatePositionMsg:
		err := m.db.UpdatePosition(ctx, mm.name, mm.pos)
		mm.result <- err
	case updateHeadingMsg:
		err := m.db.UpdateHeading(ctx, mm.name, mm.heading)
		mm.result <- err
	case updateFuelMsg:
		err := m.db.UpdateFuel(ctx, mm.name, mm.level)
		mm.result <- err
	case sendTurtlePositionMsg:
		m.handleSendPosition(ctx, st, mm)
	case clientSubscribeMsg:
		m.handleClientSubscribe(st, mm)
	case unsubscribeMsg:
		delete(st.subscribers, mm.id)
	case turtleEventMsg:
		m.broadcast(st, ConnEvent{Type: EventTurtleEvent, Name: mm.name, Event: mm.evt})
	case reportMsg:
		m.handleReport(ctx, mm)
	case statusMsg:
		mm.result <- m.buildStatus(st)
	}
}

func (m *Manager) handleRegister(ctx context.Context, st *state, mm registerMsg) {
	if e, ok := st.turtles[mm.name]; ok {
		if e.connected && e.session != nil {
			e.session.Close()
		}
	} else {
		st.order = append(st.order, mm.name)
		st.turtles[mm.name] = &entry{}
	}
	st.turtles[mm.name].session = mm.sess
	st.turtles[mm.name].connected = true

	m.broadcast(st, ConnEvent{Type: EventConnected, Name: mm.name})

	if mm.result != nil {
		mm.result <- nil
	}
}

func (m *Manager) handleDisconnect(st *state, mm disconnectMsg) {
	e, ok := st.turtles[mm.name]
	if !ok || !e.connected {
		if mm.result != nil {
			mm.result <- nil
		}
		return
	}
	if e.session != nil {
		e.session.Close()
	}
	e.session = nil
	e.connected = false

	m.broadcast(st, ConnEvent{Type: EventDisconnected, Name: mm.name})

	if mm.result != nil {
		mm.result <- nil
	}
}

func (m *Manager) handleBroadcast(ctx context.Context, st *state, mm broadcastMsg) {
	for _, name := range st.order {
		e := st.turtles[name]
		if e == nil || !e.connected || e.session == nil {
			continue
		}
		if err := e.session.Send(ctx, mm.cmd); err != nil {
			slog.Warn("manager: broadcast send failed", "name", name, "error", err)
		}
	}
	if mm.result != nil {
		mm.result <- nil
	}
}

func (m *Manager) handleSendPosition(ctx context.Context, st *state, mm sendTurtlePositionMsg) {
	e, ok := st.turtles[mm.name]
	if !ok || !e.connected || e.session == nil {
		mm.result <- fmt.Errorf("manager: turtle %q not connected", mm.name)
		return
	}
	row, err := m.db.GetTurtle(ctx, mm.name)
	if err != nil {
		mm.result <- fmt.Errorf("manager: loading position for %q: %w", mm.name, err)
		return
	}

	sess := e.session
	guard, err := sess.Lock(ctx)
	if err != nil {
		mm.result <- fmt.Errorf("manager: locking %q to push position: %w", mm.name, err)
		return
	}
	defer guard.Unlock()

	if err := guard.UpdatePosition(ctx, wire.Coords{X: row.X, Y: row.Y, Z: row.Z}, row.Heading); err != nil {
		mm.result <- fmt.Errorf("manager: pushing position to %q: %w", mm.name, err)
		return
	}
	mm.result <- nil
}

func (m *Manager) handleReport(ctx context.Context, mm reportMsg) {
	if err := m.db.UpdatePosition(ctx, mm.name, mm.pos); err != nil {
		slog.Warn("manager: report position write-through failed", "name", mm.name, "error", err)
	}
	if err := m.db.UpdateHeading(ctx, mm.name, mm.heading); err != nil {
		slog.Warn("manager: report heading write-through failed", "name", mm.name, "error", err)
	}
	if err := m.db.UpdateFuel(ctx, mm.name, mm.fuel.Level); err != nil {
		slog.Warn("manager: report fuel write-through failed", "name", mm.name, "error", err)
	}
}

func (m *Manager) handleClientSubscribe(st *state, mm clientSubscribeMsg) {
	id := st.nextSubID
	st.nextSubID++
	sink := make(chan ConnEvent, subscriberDepth)
	st.subscribers[id] = subscriber{id: id, sink: sink}

	for _, name := range st.order {
		e := st.turtles[name]
		evtType := EventDisconnected
		if e != nil && e.connected {
			evtType = EventConnected
		}
		select {
		case sink <- ConnEvent{Type: evtType, Name: name}:
		default:
			slog.Warn("manager: new subscriber's sink full during replay, dropping remaining replay", "name", name)
		}
	}

	mm.result <- subscribeResult{
		ch: sink,
		unsubscribe: func() {
			select {
			case m.mailbox <- unsubscribeMsg{id: id}:
			case <-m.done:
			}
		},
	}
}

// broadcast implements send-or-prune fan-out (spec.md §9): a subscriber
// whose sink is full is dropped rather than allowed to block the Manager.
func (m *Manager) broadcast(st *state, evt ConnEvent) {
	for id, sub := range st.subscribers {
		select {
		case sub.sink <- evt:
		default:
			slog.Warn("manager: subscriber sink full, pruning", "subscriber_id", id)
			close(sub.sink)
			delete(st.subscribers, id)
		}
	}
}
