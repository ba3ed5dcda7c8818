package manager_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/benjazzy/turtle-wrangler/internal/db"
	"github.com/benjazzy/turtle-wrangler/internal/manager"
	"github.com/benjazzy/turtle-wrangler/internal/session"
	"github.com/benjazzy/turtle-wrangler/internal/turtlelink"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// newFakeSession builds a real Session over a real (loopback) WebSocket
// pair, since session.Session has no exported constructor that accepts a
// fake transport. Manager doesn't care what's on the other end of the
// wire for these tests.
func newFakeSession(t *testing.T, name string) (*session.Session, func()) {
	t.Helper()
	sess, _, cleanup := newFakeSessionWithClient(t, name)
	return sess, cleanup
}

// newFakeSessionWithClient is newFakeSession but also returns the client-side
// WebSocket connection, for tests that need to assert on what the old turtle
// actually sees on the wire when its session is closed.
func newFakeSessionWithClient(t *testing.T, name string) (*session.Session, *websocket.Conn, func()) {
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

	ctx, cancel := context.WithCancel(context.Background())
	link := turtlelink.New(serverConn, name)
	sess := session.New(ctx, name, link, session.Hooks{}, func() {})

	return sess, client, func() {
		cancel()
		client.Close()
		srv.Close()
	}
}

func startManager(t *testing.T) (*manager.Manager, context.Context) {
	t.Helper()
	database := openTestDB(t)
	mgr := manager.New(database)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go mgr.Run(ctx)
	return mgr, ctx
}

func TestRegisterBroadcastsConnected(t *testing.T) {
	mgr, ctx := startManager(t)

	events, unsubscribe, err := mgr.ClientSubscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	sess, cleanup := newFakeSession(t, "Daniel")
	defer cleanup()

	require.NoError(t, mgr.Register(ctx, "Daniel", sess))

	select {
	case evt := <-events:
		require.Equal(t, manager.EventConnected, evt.Type)
		require.Equal(t, "Daniel", evt.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Connected event")
	}
}

func TestDisconnectBroadcastsDisconnected(t *testing.T) {
	mgr, ctx := startManager(t)

	sess, cleanup := newFakeSession(t, "Daniel")
	defer cleanup()
	require.NoError(t, mgr.Register(ctx, "Daniel", sess))

	events, unsubscribe, err := mgr.ClientSubscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	// Subscribing after Register means the replay itself reports Daniel
	// as already Connected.
	select {
	case evt := <-events:
		require.Equal(t, manager.EventConnected, evt.Type)
		require.Equal(t, "Daniel", evt.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replay")
	}

	require.NoError(t, mgr.Disconnect(ctx, "Daniel"))

	select {
	case evt := <-events:
		require.Equal(t, manager.EventDisconnected, evt.Type)
		require.Equal(t, "Daniel", evt.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Disconnected event")
	}

	_, ok, err := mgr.GetTurtle(ctx, "Daniel")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegisterReplacesClosesOldSession(t *testing.T) {
	mgr, ctx := startManager(t)

	first, firstClient, cleanupFirst := newFakeSessionWithClient(t, "Daniel")
	defer cleanupFirst()
	require.NoError(t, mgr.Register(ctx, "Daniel", first))

	second, cleanupSecond := newFakeSession(t, "Daniel")
	defer cleanupSecond()
	require.NoError(t, mgr.Register(ctx, "Daniel", second))

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("old session was not closed on re-register")
	}

	// The old turtle's socket must actually be torn down, not just left
	// dangling with its readLoop blocked: a close frame should arrive and
	// the next read should fail with a normal-closure close error.
	require.NoError(t, firstClient.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := firstClient.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a WS close frame from the old session, got: %v", err)

	got, ok, err := mgr.GetTurtle(ctx, "Daniel")
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, second, got)
}

func TestGetTurtleUnknown(t *testing.T) {
	mgr, ctx := startManager(t)
	_, ok, err := mgr.GetTurtle(ctx, "Nobody")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStatusCounts(t *testing.T) {
	mgr, ctx := startManager(t)

	a, cleanupA := newFakeSession(t, "Aaron")
	defer cleanupA()
	b, cleanupB := newFakeSession(t, "Bailey")
	defer cleanupB()

	require.NoError(t, mgr.Register(ctx, "Aaron", a))
	require.NoError(t, mgr.Register(ctx, "Bailey", b))
	require.NoError(t, mgr.Disconnect(ctx, "Bailey"))

	status, err := mgr.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, status.KnownCount)
	require.Equal(t, 1, status.ConnectedCount)
	require.Equal(t, []string{"Aaron"}, status.Connected)
}

func TestClientSubscribeReplaysKnownTurtles(t *testing.T) {
	mgr, ctx := startManager(t)

	sess, cleanup := newFakeSession(t, "Daniel")
	defer cleanup()
	require.NoError(t, mgr.Register(ctx, "Daniel", sess))

	events, unsubscribe, err := mgr.ClientSubscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case evt := <-events:
		require.Equal(t, manager.EventConnected, evt.Type)
		require.Equal(t, "Daniel", evt.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replay")
	}
}

func TestSubscriberPruneDoesNotBlockManager(t *testing.T) {
	mgr, ctx := startManager(t)

	// Subscribe but never drain the sink.
	_, _, err := mgr.ClientSubscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < 64; i++ {
		sess, cleanup := newFakeSession(t, "Filler")
		require.NoError(t, mgr.Register(ctx, "Filler", sess))
		cleanup()
	}

	// If the full subscriber sink blocked the Manager's broadcast loop,
	// this would time out.
	_, err = mgr.Status(ctx)
	require.NoError(t, err)
}
