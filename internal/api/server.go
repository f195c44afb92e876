// Package api exposes the daemon's HTTP surface: the websocket endpoint that
// opens a session and carries its command stream, plus a health check.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/p-arndt/werkbank/internal/config"
	"github.com/p-arndt/werkbank/internal/editor"
	"github.com/p-arndt/werkbank/internal/lang"
	"github.com/p-arndt/werkbank/internal/session"
)

type Server struct {
	cfg      *config.Config
	manager  SessionService
	engine   editor.Execer
	settings editor.SettingsStore
	logger   *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, mgr SessionService, engine editor.Execer, st editor.SettingsStore, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		manager:  mgr,
		engine:   engine,
		settings: st,
		logger:   logger,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /v1/projects/{owner}/{repo}/open", s.handleOpen)

	// Health check (no auth)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// handleOpen opens (or resumes) the caller's session and upgrades the
// connection to the command protocol. Session errors are reported as plain
// HTTP statuses, before any upgrade happens.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.identity(w, r)
	if !ok {
		return
	}

	langCode, err := lang.Parse(r.URL.Query().Get("lang"))
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	projectID, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil {
		writeValidationError(w, "project_id must be an integer")
		return
	}

	containerID, err := s.manager.Open(r.Context(), ident.user, session.OpenOpts{
		ProjectID: projectID,
		Owner:     r.PathValue("owner"),
		Repo:      r.PathValue("repo"),
		Lang:      langCode,
		Token:     ident.token,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response; the fresh session would leak
		// its connection slot, so put it straight into the idle path.
		s.logger.Warn("websocket upgrade failed", "session_user", ident.user, "error", err)
		s.manager.Idle(ident.user)
		return
	}
	defer conn.Close()

	execTimeout := time.Duration(s.cfg.Sandbox.ExecTimeoutSec) * time.Second
	h := editor.NewHandler(s.engine, s.settings, s.logger, ident.user, containerID, s.cfg.Sandbox.WorkspacePath, execTimeout)
	if err := h.Serve(r.Context(), conn); err != nil {
		s.logger.Warn("connection ended with error", "session_user", ident.user, "error", err)
	}

	// Disconnect idles the session; the eviction timer decides its fate.
	s.manager.Idle(ident.user)
}

type identity struct {
	user  string
	token string
}

// identity extracts the caller identity the upstream gateway asserts. Both
// headers are trusted as pre-validated.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (identity, bool) {
	user := r.Header.Get("X-Werkbank-User")
	if user == "" {
		writeUnauthorizedError(w, "missing X-Werkbank-User header")
		return identity{}, false
	}

	auth := r.Header.Get("Authorization")
	token, ok := cutBearer(auth)
	if !ok {
		writeUnauthorizedError(w, "missing bearer token")
		return identity{}, false
	}

	return identity{user: user, token: token}, true
}

func cutBearer(auth string) (string, bool) {
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", false
	}
	return auth[len(prefix):], true
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()[:8]
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
