package manager

import (
	"context"
	"time"

	"github.com/benjazzy/turtle-wrangler/internal/session"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// hookTimeout bounds how long the Receiver waits in OnGetPosition for
// SendTurtlePosition, which includes the session lock's ping round trip.
// Report, event and terminate posts do not use it.
const hookTimeout = time.Second

// HooksFor builds the session.Hooks for a turtle identified as name. Per
// spec.md §9's "cyclic handle references" note, the Session is built with
// these hooks before it is ever registered with the Manager, so hooks
// close over name rather than a Session reference.
func (m *Manager) HooksFor(name string) session.Hooks {
	return session.Hooks{
		OnReport: func(pos wire.Coords, heading wire.Heading, fuel wire.Fuel) {
			m.postReport(name, pos, heading, fuel)
		},
		// OnInspection is left unwired: every event, Inspection included,
		// already reaches Subscribers via OnEvent below, satisfying
		// spec.md §6.4's "Inspection to Subscribers only" without a
		// second broadcast path.
		OnGetPosition: func() {
			ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
			defer cancel()
			_ = m.SendTurtlePosition(ctx, name)
		},
		OnEvent: func(evt wire.TurtleEvent) {
			m.postTurtleEvent(name, evt)
		},
	}
}

// OnTerminate builds the one-shot callback passed to session.New; it fires
// exactly once when the underlying link goes away for any reason.
func (m *Manager) OnTerminate(name string) func() {
	return func() {
		m.postTerminated(name)
	}
}

func (m *Manager) postReport(name string, pos wire.Coords, heading wire.Heading, fuel wire.Fuel) {
	select {
	case m.mailbox <- reportMsg{name: name, pos: pos, heading: heading, fuel: fuel}:
	case <-m.done:
	}
}

func (m *Manager) postTurtleEvent(name string, evt wire.TurtleEvent) {
	select {
	case m.mailbox <- turtleEventMsg{name: name, evt: evt}:
	case <-m.done:
	}
}

func (m *Manager) postTerminated(name string) {
	select {
	case m.mailbox <- disconnectMsg{name: name}:
	case <-m.done:
	}
}
