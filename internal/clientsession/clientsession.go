// Package clientsession services one client TCP connection: framed JSON
// Commands in, framed JSON Events out, subscribed to the Manager for
// connect/disconnect/turtle-event fan-out (spec.md §4.8).
package clientsession

import (
	"context"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/benjazzy/turtle-wrangler/internal/db"
	"github.com/benjazzy/turtle-wrangler/internal/framing"
	"github.com/benjazzy/turtle-wrangler/internal/manager"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// outboundDepth is the per-connection outbound frame buffer.
const outboundDepth = 32

// readBufSize is the chunk size read per conn.Read call; framing.Decoder
// reassembles frames across reads.
const readBufSize = 4096

// Run services conn until it closes or ctx is cancelled.
func Run(ctx context.Context, conn net.Conn, mgr *manager.Manager, database *db.DB) {
	defer conn.Close()

	connID := uuid.NewString()
	slog.Info("clientsession: connected", "conn_id", connID, "remote_addr", conn.RemoteAddr())
	defer slog.Info("clientsession: disconnected", "conn_id", connID, "remote_addr", conn.RemoteAddr())

	events, unsubscribe, err := mgr.ClientSubscribe(ctx)
	if err != nil {
		slog.Warn("clientsession: subscribing to manager failed", "conn_id", connID, "remote_addr", conn.RemoteAddr(), "error", err)
		return
	}
	defer unsubscribe()

	out := make(chan []byte, outboundDepth)
	done := make(chan struct{})

	// conn.Read does not observe ctx, so closing conn is what ends readLoop
	// on cancellation.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go writeLoop(conn, connID, out, done)
	go forwardEvents(events, out, done)

	readLoop(ctx, conn, connID, mgr, database, out, done)
	close(done)
}

func writeLoop(conn net.Conn, connID string, out <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case data := <-out:
			if _, err := conn.Write(data); err != nil {
				slog.Debug("clientsession: write failed", "conn_id", connID, "remote_addr", conn.RemoteAddr(), "error", err)
				return
			}
		case <-done:
			return
		}
	}
}

func forwardEvents(events <-chan manager.ConnEvent, out chan<- []byte, done <-chan struct{}) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := framing.Encode(toWireEvent(evt))
			if err != nil {
				slog.Warn("clientsession: encoding subscriber event failed", "error", err)
				continue
			}
			select {
			case out <- data:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

func toWireEvent(evt manager.ConnEvent) wire.Event {
	switch evt.Type {
	case manager.EventConnected:
		return wire.TurtleConnectedEvent(evt.Name)
	case manager.EventDisconnected:
		return wire.TurtleDisconnectedEvent(evt.Name)
	default:
		return wire.TurtleEventEvent(evt.Name, evt.Event)
	}
}

func readLoop(ctx context.Context, conn net.Conn, connID string, mgr *manager.Manager, database *db.DB, out chan<- []byte, done <-chan struct{}) {
	dec := framing.NewDecoder()
	buf := make([]byte, readBufSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			slog.Debug("clientsession: read loop ending", "conn_id", connID, "remote_addr", conn.RemoteAddr(), "error", err)
			return
		}
		for _, frame := range dec.Feed(buf[:n]) {
			cmd, err := wire.DecodeCommand(frame)
			if err != nil {
				slog.Warn("clientsession: dropping malformed command", "conn_id", connID, "remote_addr", conn.RemoteAddr(), "error", err)
				continue
			}
			handleCommand(ctx, cmd, mgr, database, out, done)
		}
	}
}

func handleCommand(ctx context.Context, cmd wire.Command, mgr *manager.Manager, database *db.DB, out chan<- []byte, done <-chan struct{}) {
	switch cmd.Type {
	case wire.ClientCmdGetTurtles:
		handleGetTurtles(ctx, database, out, done)
	case wire.ClientCmdMove:
		handleMove(ctx, cmd, mgr)
	default:
		slog.Warn("clientsession: unknown command type, ignoring", "type", cmd.Type)
	}
}

func handleGetTurtles(ctx context.Context, database *db.DB, out chan<- []byte, done <-chan struct{}) {
	rows, err := database.ListTurtles(ctx)
	if err != nil {
		slog.Warn("clientsession: listing turtles failed", "error", err)
		return
	}
	turtles := make([]wire.Turtle, 0, len(rows))
	for _, row := range rows {
		turtles = append(turtles, wire.Turtle{
			Name: row.Name, X: row.X, Y: row.Y, Z: row.Z,
			Heading: row.Heading, Type: row.Type, Fuel: row.Fuel,
		})
	}

	data, err := framing.Encode(wire.TurtlesEvent(turtles))
	if err != nil {
		slog.Warn("clientsession: encoding turtles event failed", "error", err)
		return
	}
	select {
	case out <- data:
	case <-done:
	}
}

// handleMove looks up the named turtle and forwards a Move command.
// Unknown names are silently ignored (spec.md §4.8).
func handleMove(ctx context.Context, cmd wire.Command, mgr *manager.Manager) {
	sess, ok, err := mgr.GetTurtle(ctx, cmd.Name)
	if err != nil || !ok {
		return
	}
	if err := sess.Send(ctx, wire.MoveCommand(cmd.Direction)); err != nil {
		slog.Warn("clientsession: move send failed", "name", cmd.Name, "error", err)
	}
}
