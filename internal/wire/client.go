package wire

import "encoding/json"

// ClientCommandType tags the variant of a Command sent by a client.
type ClientCommandType string

const (
	ClientCmdGetTurtles ClientCommandType = "get_turtles"
	ClientCmdMove       ClientCommandType = "move"
)

// Command is a framed JSON message sent from a client to the Wrangler.
type Command struct {
	Type      ClientCommandType `json:"type"`
	Name      string            `json:"name,omitempty"`
	Direction Direction         `json:"direction,omitempty"`
}

// ClientEventType tags the variant of an Event sent to a client.
type ClientEventType string

const (
	ClientEvtTurtles            ClientEventType = "turtles"
	ClientEvtTurtleConnected    ClientEventType = "turtle_connected"
	ClientEvtTurtleDisconnected ClientEventType = "turtle_disconnected"
	ClientEvtTurtleEvent        ClientEventType = "turtle_event"
)

// Turtle is the client-facing projection of a persisted turtle row.
type Turtle struct {
	Name    string     `json:"name"`
	X       int64      `json:"x"`
	Y       int64      `json:"y"`
	Z       int64      `json:"z"`
	Heading Heading    `json:"heading"`
	Type    TurtleType `json:"type"`
	Fuel    int64      `json:"fuel"`
}

// Event is a framed JSON message sent from the Wrangler to a client.
type Event struct {
	Type    ClientEventType `json:"type"`
	Turtles []Turtle        `json:"turtles,omitempty"`
	Name    string          `json:"name,omitempty"`
	TEvent  *TurtleEvent    `json:"event,omitempty"`
}

// TurtlesEvent builds a "turtles" snapshot event.
func TurtlesEvent(turtles []Turtle) Event {
	return Event{Type: ClientEvtTurtles, Turtles: turtles}
}

// TurtleConnectedEvent builds a "turtle_connected" event.
func TurtleConnectedEvent(name string) Event {
	return Event{Type: ClientEvtTurtleConnected, Name: name}
}

// TurtleDisconnectedEvent builds a "turtle_disconnected" event.
func TurtleDisconnectedEvent(name string) Event {
	return Event{Type: ClientEvtTurtleDisconnected, Name: name}
}

// TurtleEventEvent wraps a raw TurtleEvent for fan-out to clients.
func TurtleEventEvent(name string, evt TurtleEvent) Event {
	return Event{Type: ClientEvtTurtleEvent, Name: name, TEvent: &evt}
}

// DecodeCommand unmarshals one framed client message into a Command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
