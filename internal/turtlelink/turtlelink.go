// Package turtlelink owns the WebSocket transport to one turtle: the
// ping/pong heartbeat, inbound event decoding, and outbound text frame
// writes (spec.md §4.2).
package turtlelink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

const (
	// pingInterval is how often the Link sends a WebSocket ping frame.
	pingInterval = 5 * time.Second

	// pongWait is how long the Link waits for any inbound traffic before
	// considering the connection dead.
	pongWait = 10 * time.Second

	// closeGrace is the best-effort deadline for a graceful close handshake.
	closeGrace = 100 * time.Millisecond
)

// Link is one full-duplex WebSocket session to a turtle. All data-frame
// writes happen on the write loop's goroutine, since *websocket.Conn forbids
// concurrent writers; pong and close frames go through WriteControl, which
// gorilla allows from any goroutine.
type Link struct {
	conn *websocket.Conn
	name string

	events chan wire.TurtleEvent
	out    chan []byte
	closed chan struct{}

	closeOnce sync.Once
}

// New wraps an already-upgraded WebSocket connection. name is used only for
// log correlation; it may be empty before identification completes.
func New(conn *websocket.Conn, name string) *Link {
	l := &Link{
		conn:   conn,
		name:   name,
		events: make(chan wire.TurtleEvent, 16),
		out:    make(chan []byte, 8),
		closed: make(chan struct{}),
	}
	return l
}

// Events returns the channel of decoded inbound turtle events. It is closed
// when the link terminates.
func (l *Link) Events() <-chan wire.TurtleEvent {
	return l.events
}

// Run starts the link's read and write loops and blocks until the read side
// ends (I/O error, close frame, read deadline, or Close). Cancelling ctx
// stops only the write loop; it does not unblock the read side.
func (l *Link) Run(ctx context.Context) {
	l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPingHandler(func(string) error {
		l.conn.SetReadDeadline(time.Now().Add(pongWait))
		return l.conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(closeGrace))
	})
	l.conn.SetPongHandler(func(string) error {
		l.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go l.writeLoop(ctx, done)
	l.readLoop()
	close(done)
	l.Close()
}

// readLoop decodes inbound text frames until the socket errors or closes.
func (l *Link) readLoop() {
	defer close(l.events)

	for {
		msgType, data, err := l.conn.ReadMessage()
		if err != nil {
			slog.Debug("turtlelink: read loop ending", "name", l.name, "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		l.conn.SetReadDeadline(time.Now().Add(pongWait))

		evt, err := wire.DecodeEvent(data)
		if err != nil {
			slog.Warn("turtlelink: dropping malformed turtle event", "name", l.name, "error", err)
			continue
		}

		select {
		case l.events <- evt:
		case <-l.closed:
			return
		}
	}
}

// writeLoop owns the connection's write side: periodic pings plus outbound
// command envelopes handed in via Send.
func (l *Link) writeLoop(ctx context.Context, readDone chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case <-l.closed:
			return
		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(closeGrace)); err != nil {
				slog.Debug("turtlelink: ping failed, closing", "name", l.name, "error", err)
				return
			}
		case data := <-l.out:
			if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("turtlelink: write failed, closing", "name", l.name, "error", err)
				return
			}
		}
	}
}

// Send enqueues an already-serialized text frame for delivery. It blocks
// only as long as the outbound buffer is full; ctx cancellation and link
// closure both abort the send.
func (l *Link) Send(ctx context.Context, data []byte) error {
	select {
	case l.out <- data:
		return nil
	case <-l.closed:
		return fmt.Errorf("turtlelink: link to %q closed", l.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close performs a graceful WebSocket close with a short grace period, then
// closes the socket. Safe to call multiple times and concurrently.
func (l *Link) Close() {
	l.closeOnce.Do(func() {
		close(l.closed)
		_ = l.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace),
		)
		_ = l.conn.Close()
	})
}
