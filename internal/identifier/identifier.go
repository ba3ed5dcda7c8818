// Package identifier runs the handshake state machine a freshly-upgraded
// turtle WebSocket goes through before it becomes a Session (spec.md
// §4.5). It is deliberately stateless between sockets: ids are parsed and
// discarded, never persisted.
package identifier

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/benjazzy/turtle-wrangler/internal/names"
)

// firstFrameDeadline is how long a newly-upgraded socket has to send its id
// before being dropped.
const firstFrameDeadline = 500 * time.Millisecond

// Result is the outcome of a successful handshake.
type Result struct {
	ID   uint64
	Name string
}

// Identify reads the turtle's numeric id off conn, looks up its assigned
// name, and sends the name back as a plain text frame. Any failure along
// the way (deadline, wrong frame type, unparseable id, write failure) is
// returned as an error; the caller is expected to close the connection.
func Identify(conn *websocket.Conn) (Result, error) {
	if err := conn.SetReadDeadline(time.Now().Add(firstFrameDeadline)); err != nil {
		return Result{}, fmt.Errorf("identifier: setting read deadline: %w", err)
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return Result{}, fmt.Errorf("identifier: reading id frame: %w", err)
	}
	if msgType != websocket.TextMessage {
		return Result{}, fmt.Errorf("identifier: expected text frame, got type %d", msgType)
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return Result{}, fmt.Errorf("identifier: parsing id %q: %w", data, err)
	}
	if f < 0 {
		return Result{}, fmt.Errorf("identifier: negative id %v", f)
	}
	id := uint64(f)

	name := names.ForID(id)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(name)); err != nil {
		return Result{}, fmt.Errorf("identifier: sending assigned name: %w", err)
	}

	return Result{ID: id, Name: name}, nil
}
