// Package control implements the daemon's local control socket: a
// Unix-domain-socket HTTP API (status, session listing, input, resize) that
// the agentd CLI's attach command uses to reach an already-running daemon
// without going through the browser UI.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/vibepilot/agentd/internal/pty"
)

// SessionLister is satisfied by the PTY manager.
type SessionLister interface {
	List() []pty.SessionInfo
	Write(sessionID string, data []byte) error
	Resize(sessionID string, cols, rows int) error
}

// StatusProvider reports daemon-wide counters for the status endpoint.
type StatusProvider struct {
	Sessions    int
	Tunnels     int
	BrowserOpen bool
}

// Server exposes the control API over a Unix socket.
type Server struct {
	sessions   SessionLister
	status     func() StatusProvider
	socketPath string
}

// NewServer creates a Server backed by sessions and a status callback.
func NewServer(sessions SessionLister, status func() StatusProvider, socketPath string) *Server {
	return &Server{sessions: sessions, status: status, socketPath: socketPath}
}

// ListenAndServe serves the control API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", s.socketPath, err)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		os.Remove(s.socketPath)
		return nil
	case err := <-errCh:
		os.Remove(s.socketPath)
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /sessions/{id}/input", s.handleInput)
	mux.HandleFunc("POST /sessions/{id}/resize", s.handleResize)
}

type statusResponse struct {
	Sessions    int  `json:"sessions"`
	Tunnels     int  `json:"tunnels"`
	BrowserOpen bool `json:"browser_open"`
}

type inputRequest struct {
	Data string `json:"data"`
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	writeJSON(w, http.StatusOK, statusResponse{
		Sessions:    st.Sessions,
		Tunnels:     st.Tunnels,
		BrowserOpen: st.BrowserOpen,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.sessions.Write(id, []byte(req.Data)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.sessions.Resize(id, req.Cols, req.Rows); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
