// Package console implements the operator stdin console (spec.md §6.4):
// single-letter, space-separated commands treated as a Manager client in
// the same sense a ClientSession is (spec.md §6.5's "operator console —
// treated as a Manager client").
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/benjazzy/turtle-wrangler/internal/db"
	"github.com/benjazzy/turtle-wrangler/internal/manager"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// commandTimeout bounds each round trip issued from the console, including
// the wait for a request's response; the Sender applies no request timeout
// of its own.
const commandTimeout = 10 * time.Second

// Run reads operator lines from in until it hits EOF, ctx is cancelled, or a
// "Q" line is read, upon which it calls shutdown to begin graceful exit.
func Run(ctx context.Context, in io.Reader, mgr *manager.Manager, database *db.DB, shutdown context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if handleLine(ctx, line, mgr, database) {
			shutdown()
			return
		}
	}
}

// handleLine dispatches one operator line. It returns true when a "Q"
// command was issued.
func handleLine(ctx context.Context, line string, mgr *manager.Manager, database *db.DB) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch fields[0] {
	case "B":
		handleBroadcast(ctx, fields[1:], mgr)
	case "C":
		handleSend(ctx, fields[1:], mgr)
	case "R":
		handleRequest(ctx, fields[1:], mgr)
	case "S":
		handleStatus(ctx, mgr)
	case "P":
		handleSetCoordinate(ctx, fields[1:], database)
	case "D":
		handleDisconnect(ctx, fields[1:], mgr)
	case "N":
		handleCreate(ctx, fields[1:], database)
	case "Q":
		return true
	default:
		slog.Warn("console: unknown command letter, ignoring", "letter", fields[0])
	}
	return false
}

func handleBroadcast(ctx context.Context, args []string, mgr *manager.Manager) {
	if len(args) != 1 {
		fmt.Println("usage: B <cmd>")
		return
	}
	cmd, err := parseCommand(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := mgr.Broadcast(ctx, cmd); err != nil {
		fmt.Println("broadcast failed:", err)
	}
}

func handleSend(ctx context.Context, args []string, mgr *manager.Manager) {
	if len(args) != 2 {
		fmt.Println("usage: C <name> <cmd>")
		return
	}
	sess, ok, err := mgr.GetTurtle(ctx, args[0])
	if err != nil || !ok {
		fmt.Printf("%s is not connected\n", args[0])
		return
	}
	cmd, err := parseCommand(args[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := sess.Send(ctx, cmd); err != nil {
		fmt.Println("send failed:", err)
	}
}

func handleRequest(ctx context.Context, args []string, mgr *manager.Manager) {
	if len(args) != 2 {
		fmt.Println("usage: R <name> <request>")
		return
	}
	sess, ok, err := mgr.GetTurtle(ctx, args[0])
	if err != nil || !ok {
		fmt.Printf("%s is not connected\n", args[0])
		return
	}
	req, err := parseRequest(args[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	resp, err := sess.Request(ctx, req)
	if err != nil {
		fmt.Println("request timed out:", err)
		return
	}
	fmt.Printf("%s -> %s\n", args[0], resp.Body.Type)
}

func handleStatus(ctx context.Context, mgr *manager.Manager) {
	status, err := mgr.Status(ctx)
	if err != nil {
		fmt.Println("status failed:", err)
		return
	}
	fmt.Printf("known=%d connected=%d %v\n", status.KnownCount, status.ConnectedCount, status.Connected)
}

func handleSetCoordinate(ctx context.Context, args []string, database *db.DB) {
	if len(args) != 3 {
		fmt.Println("usage: P <name> X|Y|Z <int>")
		return
	}
	value, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		fmt.Println("invalid integer:", args[2])
		return
	}
	if err := database.UpdateCoordinate(ctx, args[0], args[1], value); err != nil {
		fmt.Println("set coordinate failed:", err)
	}
}

func handleDisconnect(ctx context.Context, args []string, mgr *manager.Manager) {
	if len(args) != 1 {
		fmt.Println("usage: D <name>")
		return
	}
	if err := mgr.Disconnect(ctx, args[0]); err != nil {
		fmt.Println("disconnect failed:", err)
	}
}

func handleCreate(ctx context.Context, args []string, database *db.DB) {
	if len(args) != 6 {
		fmt.Println("usage: N <name> <x> <y> <z> <heading> <type>")
		return
	}
	x, err1 := strconv.ParseInt(args[1], 10, 64)
	y, err2 := strconv.ParseInt(args[2], 10, 64)
	z, err3 := strconv.ParseInt(args[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Println("invalid coordinates")
		return
	}
	row := db.Row{
		Name:    args[0],
		X:       x,
		Y:       y,
		Z:       z,
		Heading: wire.Heading(args[4]),
		Type:    wire.TurtleType(args[5]),
	}
	if err := database.CreateTurtle(ctx, row); err != nil {
		fmt.Println("create failed:", err)
	}
}

func parseCommand(tok string) (wire.TurtleCommand, error) {
	switch strings.ToUpper(tok) {
	case "FORWARD":
		return wire.ForwardCommand(), nil
	case "BACK":
		return wire.BackCommand(), nil
	case "LEFT":
		return wire.TurnLeftCommand(), nil
	case "RIGHT":
		return wire.TurnRightCommand(), nil
	case "REBOOT":
		return wire.RebootCommand(), nil
	case "INSPECT":
		return wire.InspectCommand(), nil
	default:
		return wire.TurtleCommand{}, fmt.Errorf("console: unknown command %q", tok)
	}
}

func parseRequest(tok string) (wire.RequestBody, error) {
	switch strings.ToUpper(tok) {
	case "PING":
		return wire.RequestBody{Type: wire.ReqPing}, nil
	case "INSPECT":
		return wire.RequestBody{Type: wire.ReqInspect}, nil
	default:
		return wire.RequestBody{}, fmt.Errorf("console: unknown request %q", tok)
	}
}
