// Package httpstatus is the ambient HTTP status surface (spec.md §6.11,
// not gated by any Non-goal): GET /healthz and GET /status. Grounded on
// the teacher's api.go router/middleware/writeJSON shape.
package httpstatus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/benjazzy/turtle-wrangler/internal/manager"
)

// closeGrace bounds the server's graceful shutdown.
const closeGrace = 100 * time.Millisecond

// APIResponse is the standard response envelope, matching the teacher's
// convention.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Server serves the ambient status endpoints.
type Server struct {
	mgr *manager.Manager
	srv *http.Server
}

// New constructs a Server bound to addr. An empty addr disables the
// endpoint entirely; callers should check before calling Run.
func New(addr string, mgr *manager.Manager) *Server {
	s := &Server{mgr: mgr}

	r := mux.NewRouter()
	r.Use(loggingMiddleware)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeGrace)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.mgr.Done():
		writeJSON(w, http.StatusServiceUnavailable, APIResponse{Success: false, Error: "manager not running"})
	default:
		writeJSON(w, http.StatusOK, APIResponse{Success: true})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.mgr.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, APIResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: status})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("httpstatus: request", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpstatus: failed to encode response", "error", err)
	}
}
