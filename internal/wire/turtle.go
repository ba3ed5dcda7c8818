// Package wire defines the JSON message shapes exchanged with turtles
// (over WebSocket) and clients (over framed TCP).
package wire

import (
	"encoding/json"
	"fmt"
)

// Heading is one of the four cardinal directions a turtle can face.
type Heading string

const (
	HeadingNorth Heading = "n"
	HeadingSouth Heading = "s"
	HeadingEast  Heading = "e"
	HeadingWest  Heading = "w"
)

// TurtleType determines a turtle's fuel tank capacity.
type TurtleType string

const (
	TurtleNormal   TurtleType = "normal"
	TurtleAdvanced TurtleType = "advanced"
)

// MaxFuel returns the fixed fuel capacity for a turtle type. Unknown types
// are treated as Normal.
func (t TurtleType) MaxFuel() int64 {
	if t == TurtleAdvanced {
		return 100000
	}
	return 20000
}

// Coords is a turtle's position in the world.
type Coords struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
	Z int64 `json:"z"`
}

// Fuel is the fuel payload carried on a Report event.
type Fuel struct {
	Level int64 `json:"level"`
	Max   int64 `json:"max"`
}

// Direction is used by the move command and client Move requests.
type Direction string

const (
	DirForward Direction = "f"
	DirBack    Direction = "b"
	DirLeft    Direction = "l"
	DirRight   Direction = "r"
	DirUp      Direction = "u"
	DirDown    Direction = "d"
)

// ---------------------------------------------------------------------------
// Commands (server -> turtle)
// ---------------------------------------------------------------------------

// CommandType tags the variant of a TurtleCommand.
type CommandType string

const (
	CmdForward        CommandType = "forward"
	CmdBack           CommandType = "back"
	CmdTurnLeft       CommandType = "turn_left"
	CmdTurnRight      CommandType = "turn_right"
	CmdReboot         CommandType = "reboot"
	CmdInspect        CommandType = "inspect"
	CmdMove           CommandType = "move"
	CmdUpdatePosition CommandType = "update_position"
	CmdRequest        CommandType = "request"
)

// TurtleCommand is a command a session may send to a turtle. Only the
// optional fields relevant to Type are populated.
type TurtleCommand struct {
	Type      CommandType `json:"type"`
	Direction Direction   `json:"direction,omitempty"`
	Coords    *Coords     `json:"coords,omitempty"`
	Heading   Heading     `json:"heading,omitempty"`
	Request   *RequestEnvelope `json:"request,omitempty"`
}

// ForwardCommand, BackCommand, TurnLeftCommand, TurnRightCommand, RebootCommand
// and InspectCommand take no parameters.
func ForwardCommand() TurtleCommand   { return TurtleCommand{Type: CmdForward} }
func BackCommand() TurtleCommand      { return TurtleCommand{Type: CmdBack} }
func TurnLeftCommand() TurtleCommand  { return TurtleCommand{Type: CmdTurnLeft} }
func TurnRightCommand() TurtleCommand { return TurtleCommand{Type: CmdTurnRight} }
func RebootCommand() TurtleCommand    { return TurtleCommand{Type: CmdReboot} }
func InspectCommand() TurtleCommand   { return TurtleCommand{Type: CmdInspect} }

// MoveCommand moves the turtle in a single direction (used by client Move requests).
func MoveCommand(dir Direction) TurtleCommand {
	return TurtleCommand{Type: CmdMove, Direction: dir}
}

// UpdatePositionCommand pushes an authoritative position/heading to the turtle.
func UpdatePositionCommand(coords Coords, heading Heading) TurtleCommand {
	return TurtleCommand{Type: CmdUpdatePosition, Coords: &coords, Heading: heading}
}

// RequestCommand wraps a sub-protocol Request inside a command envelope.
func RequestCommand(req RequestEnvelope) TurtleCommand {
	return TurtleCommand{Type: CmdRequest, Request: &req}
}

// RequestType tags the variant of a Request.
type RequestType string

const (
	ReqInspect RequestType = "inspect"
	ReqPing    RequestType = "ping"
)

// RequestEnvelope is the sub-protocol request carried inside a command
// envelope, correlated by its own id (disjoint from the envelope id).
type RequestEnvelope struct {
	ID      uint64      `json:"id"`
	Request RequestBody `json:"request"`
}

// RequestBody holds the request tag; it carries no parameters for either
// variant defined by the protocol.
type RequestBody struct {
	Type RequestType `json:"type"`
}

// CommandEnvelope is the {id, command} frame written to the wire. The
// retry contract: on a 5s ack timeout the sender resends the exact same
// envelope (same id) rather than minting a new one, so turtle firmware
// must treat re-delivery of a given id as idempotent.
type CommandEnvelope struct {
	ID      uint64        `json:"id"`
	Command TurtleCommand `json:"command"`
}

// ---------------------------------------------------------------------------
// Events (turtle -> server)
// ---------------------------------------------------------------------------

// EventType tags the variant of a TurtleEvent.
type EventType string

const (
	EvtOk          EventType = "ok"
	EvtReady       EventType = "ready"
	EvtResponse    EventType = "response"
	EvtReport      EventType = "report"
	EvtInspection  EventType = "inspection"
	EvtGetPosition EventType = "get_position"
)

// TurtleEvent is a decoded inbound message from a turtle. Only the fields
// relevant to Type are populated. ID is a pointer, not a bare uint64: an "ok"
// event always carries an id, including the valid id 0 (spec.md §8 scenario
// 1's `{"type":"ok","id":0}`), while a "ready" event carries no id field at
// all — a plain uint64 with `omitempty` could not represent "present and
// zero" distinctly from "absent" and would silently drop id 0 on re-encode.
type TurtleEvent struct {
	Type     EventType         `json:"type"`
	ID       *uint64           `json:"id,omitempty"`
	Response *ResponseEnvelope `json:"response,omitempty"`
	Position *Coords           `json:"position,omitempty"`
	Heading  Heading           `json:"heading,omitempty"`
	Fuel     *Fuel             `json:"fuel,omitempty"`
	Block    json.RawMessage   `json:"block,omitempty"`
}

// ResponseType tags the variant of a ResponseBody.
type ResponseType string

const (
	RespInspection ResponseType = "inspection"
	RespPong       ResponseType = "pong"
)

// ResponseBody is the payload of a sub-protocol response.
type ResponseBody struct {
	Type  ResponseType    `json:"type"`
	Block json.RawMessage `json:"block,omitempty"`
}

// ResponseEnvelope correlates a ResponseBody back to the RequestEnvelope
// that requested it, by id.
type ResponseEnvelope struct {
	ID       uint64       `json:"id"`
	Response ResponseBody `json:"response"`
}

// ResponsePayload is the decoded response body a completed request returns.
// A failed request reports its error separately, alongside a zero payload.
type ResponsePayload struct {
	Body ResponseBody
}

// IsPong reports whether the payload is a Pong response.
func (r ResponsePayload) IsPong() bool {
	return r.Body.Type == RespPong
}

// DecodeEvent unmarshals one WebSocket text frame into a TurtleEvent.
func DecodeEvent(data []byte) (TurtleEvent, error) {
	var evt TurtleEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return TurtleEvent{}, fmt.Errorf("wire: decoding turtle event: %w", err)
	}
	return evt, nil
}

// EncodeEvent marshals a TurtleEvent back to its wire form. Used by tests
// to check the spec's round-trip property and by anything that needs to
// replay a decoded event verbatim.
func EncodeEvent(evt TurtleEvent) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding turtle event: %w", err)
	}
	return data, nil
}

// EventID builds the *uint64 an "ok" event's ID field requires, including
// the valid id 0.
func EventID(id uint64) *uint64 {
	return &id
}

// EncodeEnvelope marshals a command envelope for writing as a WS text frame.
func EncodeEnvelope(env CommandEnvelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding command envelope: %w", err)
	}
	return data, nil
}
