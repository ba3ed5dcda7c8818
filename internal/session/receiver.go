package session

import (
	"encoding/json"
	"log/slog"

	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// Hooks are the Manager-side callbacks a Receiver dispatches into. Session
// takes no direct dependency on the manager package — wiring happens here
// via plain function values, keeping internal/session free of an import
// cycle with internal/manager (spec.md §6.4).
type Hooks struct {
	// OnReport fires for a turtle's periodic Report event: position,
	// heading, and fuel, written through to the DB and broadcast.
	OnReport func(pos wire.Coords, heading wire.Heading, fuel wire.Fuel)

	// OnInspection fires for a top-level (unsolicited) Inspection event,
	// broadcast to subscribers only — distinct from an Inspection carried
	// as a Response to a pending request (spec.md §9 Open Question 2).
	OnInspection func(block wire.Block)

	// OnGetPosition fires when a turtle asks the server to push its
	// authoritative position; per spec.md §9 this always goes through the
	// lock path (resolved Open Question 3).
	OnGetPosition func()

	// OnEvent fires for every decoded event, control frames included, so
	// the Manager can mirror raw wire traffic to its subscriber set.
	OnEvent func(evt wire.TurtleEvent)
}

// Receiver is the SessionReceiver half of a turtle session (spec.md §4.4).
// It owns no mutable state beyond what's needed to read from the Link's
// event channel and the hooks it dispatches into, so it needs no mailbox
// of its own.
type Receiver struct {
	name  string
	hooks Hooks
}

// NewReceiver constructs a Receiver. hooks may leave any field nil; a nil
// hook for an event type that fires is simply a no-op.
func NewReceiver(name string, hooks Hooks) *Receiver {
	return &Receiver{name: name, hooks: hooks}
}

// Run classifies and dispatches events from in until in is closed. control
// is the Sender's control channel; Run forwards Ok,
// Ready, and Response events there and everything else to hooks.
func (r *Receiver) Run(in <-chan wire.TurtleEvent, control chan<- wire.TurtleEvent) {
	for evt := range in {
		if r.hooks.OnEvent != nil {
			r.hooks.OnEvent(evt)
		}

		switch evt.Type {
		case wire.EvtOk, wire.EvtReady, wire.EvtResponse:
			control <- evt
		case wire.EvtReport:
			r.handleReport(evt)
		case wire.EvtInspection:
			r.handleInspection(evt)
		case wire.EvtGetPosition:
			if r.hooks.OnGetPosition != nil {
				r.hooks.OnGetPosition()
			}
		default:
			slog.Debug("session: receiver ignoring unknown event type", "name", r.name, "type", evt.Type)
		}
	}
}

func (r *Receiver) handleReport(evt wire.TurtleEvent) {
	if r.hooks.OnReport == nil {
		return
	}
	var pos wire.Coords
	if evt.Position != nil {
		pos = *evt.Position
	}
	var fuel wire.Fuel
	if evt.Fuel != nil {
		fuel = *evt.Fuel
	}
	r.hooks.OnReport(pos, evt.Heading, fuel)
}

func (r *Receiver) handleInspection(evt wire.TurtleEvent) {
	if r.hooks.OnInspection == nil {
		return
	}
	if len(evt.Block) == 0 {
		slog.Warn("session: inspection event missing block payload", "name", r.name)
		return
	}
	var block wire.Block
	if err := json.Unmarshal(evt.Block, &block); err != nil {
		slog.Warn("session: dropping malformed inspection block", "name", r.name, "error", err)
		return
	}
	r.hooks.OnInspection(block)
}
