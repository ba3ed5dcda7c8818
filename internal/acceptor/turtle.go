package acceptor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/benjazzy/turtle-wrangler/internal/identifier"
	"github.com/benjazzy/turtle-wrangler/internal/manager"
	"github.com/benjazzy/turtle-wrangler/internal/session"
	"github.com/benjazzy/turtle-wrangler/internal/turtlelink"
)

// registerTimeout bounds how long a freshly-identified turtle waits for the
// Manager to accept its registration.
const registerTimeout = 5 * time.Second

// TurtleServer upgrades incoming HTTP requests to WebSocket connections,
// identifies each one, and registers the resulting Session with the
// Manager. Unlike ClientConnector this cannot be a plain Acceptor.Handler:
// gorilla/websocket's handshake needs the http.ResponseWriter/*http.Request
// pair from net/http, not a raw net.Conn, matching the teacher's own
// handleTunnel shape in apps/gateway/src/tunnel.go.
type TurtleServer struct {
	mgr      *manager.Manager
	srv      *http.Server
	upgrader websocket.Upgrader

	// runCtx is set by Run and gives each session a parent that is
	// cancelled on server shutdown, rather than living past it.
	runCtx context.Context
}

// NewTurtleServer constructs a TurtleServer bound to addr.
func NewTurtleServer(addr string, mgr *manager.Manager) *TurtleServer {
	ts := &TurtleServer{
		mgr: mgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/", ts.handleUpgrade)
	ts.srv = &http.Server{Addr: addr, Handler: router}
	return ts
}

// Run starts serving and blocks until ctx is cancelled or the server fails.
func (ts *TurtleServer) Run(ctx context.Context) error {
	ts.runCtx = ctx
	errCh := make(chan error, 1)
	go func() {
		err := ts.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeGrace)
		defer cancel()
		_ = ts.srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (ts *TurtleServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()

	conn, err := ts.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("acceptor: websocket upgrade failed", "conn_id", connID, "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	result, err := identifier.Identify(conn)
	if err != nil {
		slog.Warn("acceptor: identification failed", "conn_id", connID, "remote_addr", r.RemoteAddr, "error", err)
		conn.Close()
		return
	}
	slog.Info("acceptor: turtle identified", "conn_id", connID, "name", result.Name, "id", result.ID)

	link := turtlelink.New(conn, result.Name)
	hooks := ts.mgr.HooksFor(result.Name)
	onTerminate := ts.mgr.OnTerminate(result.Name)
	sess := session.New(ts.runCtx, result.Name, link, hooks, onTerminate)

	regCtx, cancel := context.WithTimeout(ts.runCtx, registerTimeout)
	defer cancel()
	if err := ts.mgr.Register(regCtx, result.Name, sess); err != nil {
		slog.Error("acceptor: registering turtle failed", "conn_id", connID, "name", result.Name, "error", err)
		sess.Close()
	}
}
