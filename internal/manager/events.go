package manager

import "github.com/benjazzy/turtle-wrangler/internal/wire"

// EventType tags the variant of a ConnEvent delivered to Subscribers.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventTurtleEvent  EventType = "turtle_event"
)

// ConnEvent is the spec's TurtleConnectionMessage: what the Manager
// broadcasts to every Subscriber (operator console, client sessions).
type ConnEvent struct {
	Type  EventType
	Name  string
	Event wire.TurtleEvent // populated only for EventTurtleEvent
}
