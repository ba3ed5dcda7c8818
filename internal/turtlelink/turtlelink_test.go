package turtlelink_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/benjazzy/turtle-wrangler/internal/turtlelink"
	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

// newLoopback wires a real turtlelink.Link (server side) to a raw gorilla
// websocket client, the same loopback pattern used by session and manager
// tests.
func newLoopback(t *testing.T) (*turtlelink.Link, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		connCh <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	serverConn := <-connCh

	link := turtlelink.New(serverConn, "Daniel")

	return link, client, func() {
		client.Close()
		srv.Close()
	}
}

// TestCloseUnblocksReadLoopAndSendsCloseFrame is the regression test for the
// defect where cancelling a link's context alone could never unblock its
// readLoop, since readLoop blocks on conn.ReadMessage with no regard for
// ctx. Close must be called directly to actually tear the socket down.
func TestCloseUnblocksReadLoopAndSendsCloseFrame(t *testing.T) {
	link, client, cleanup := newLoopback(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		link.Run(ctx)
		close(runDone)
	}()

	link.Close()

	select {
	case <-link.Events():
		// events channel closed, readLoop returned
	case <-time.After(time.Second):
		t.Fatal("readLoop did not unblock after Close")
	}

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a normal-closure close frame, got: %v", err)
}

// TestContextCancelAloneDoesNotUnblockReadLoop documents the known shape of
// readLoop: it is not itself cancellation-aware, so ctx cancellation stops
// the write side but leaves the read side blocked until Close (or a real
// socket error) unblocks it. Callers that want the socket torn down must
// call Close directly, which is what session.Session.Close does.
func TestContextCancelAloneDoesNotUnblockReadLoop(t *testing.T) {
	link, _, cleanup := newLoopback(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan struct{})
	go func() {
		link.Run(ctx)
		close(runDone)
	}()

	cancel()

	select {
	case <-runDone:
		t.Fatal("Run returned on ctx cancellation alone; readLoop should still be blocked")
	case <-time.After(200 * time.Millisecond):
	}

	link.Close()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after explicit Close")
	}
}

// TestSendDeliversFrame is a basic sanity check that outbound frames reach
// the client over the loopback link.
func TestSendDeliversFrame(t *testing.T) {
	link, client, cleanup := newLoopback(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Run(ctx)
	defer link.Close()

	env := wire.CommandEnvelope{ID: 1, Command: wire.InspectCommand()}
	data, err := wire.EncodeEnvelope(env)
	require.NoError(t, err)
	require.NoError(t, link.Send(ctx, data))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, got, err := client.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(got))
}
