// Package server exposes the interaction engine over HTTP: the session API
// used by the calling agent, the surface endpoints used by the terminal
// client and the browser page, and websocket streams for live sync.
package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/history"
	"github.com/askgate-dev/askgate/internal/log"
	"github.com/askgate-dev/askgate/internal/session"
)

// Server serves the engine API. History and logger may be nil; the related
// endpoints then degrade to not-found and silence.
type Server struct {
	registry *session.Registry
	config   *config.Store
	history  *history.Store
	logger   *log.Logger

	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	// listMu guards listConns and serializes writes to them.
	listMu    sync.Mutex
	listConns map[*websocket.Conn]struct{}
}

// NewServer binds a listener on host:port (port 0 picks a free port) and
// registers all routes. The server does not accept connections until Start.
func NewServer(host string, port int, reg *session.Registry, cfg *config.Store, hist *history.Store, logger *log.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("binding listener: %w", err)
	}

	s := &Server{
		registry:  reg,
		config:    cfg,
		history:   hist,
		logger:    logger,
		listener:  ln,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		listConns: make(map[*websocket.Conn]struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/session", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/session/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/session/{id}/poll", s.handlePoll).Methods(http.MethodGet)
	r.HandleFunc("/session/{id}/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/session/{id}/stream", s.handleSessionStream).Methods(http.MethodGet)

	// The terminal client uses the same state and submit semantics under its
	// own prefix.
	r.HandleFunc("/terminal/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/terminal/{id}/submit", s.handleSubmit).Methods(http.MethodPost)

	r.HandleFunc("/api/interactions", s.handleListInteractions).Methods(http.MethodGet)
	r.HandleFunc("/api/interaction/{id}", s.handleInteractionDetail).Methods(http.MethodGet)
	r.HandleFunc("/api/interaction/{id}", s.handleDeleteInteraction).Methods(http.MethodDelete)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.handleUpdateConfig).Methods(http.MethodPost)
	r.HandleFunc("/ws/interactions", s.handleInteractionsStream).Methods(http.MethodGet)

	r.HandleFunc("/choice/{id}", s.handleChoicePage).Methods(http.MethodGet)

	s.server = &http.Server{Handler: r}

	reg.SetOnChange(s.broadcastInteractions)
	return s, nil
}

// Addr returns the bound listen address, e.g. "127.0.0.1:8765".
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// BaseURL returns the URL clients should use to reach this server. Wildcard
// bind addresses are rewritten to loopback.
func (s *Server) BaseURL() string {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return "http://" + s.Addr()
	}
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("http://%s:%s", host, port)
}

// Start begins serving. It blocks until Stop or a listener error.
func (s *Server) Start() error {
	if s.logger != nil {
		_ = s.logger.Append(log.LogEvent{Event: log.EventServerStarted, Addr: s.Addr()})
	}
	err := s.server.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the server and every open list stream.
func (s *Server) Stop() error {
	s.listMu.Lock()
	for conn := range s.listConns {
		_ = conn.Close()
	}
	s.listConns = make(map[*websocket.Conn]struct{})
	s.listMu.Unlock()

	if s.logger != nil {
		_ = s.logger.Append(log.LogEvent{Event: log.EventServerStopped, Addr: s.Addr()})
	}
	return s.server.Close()
}

// --- Helpers ---

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		// Allow empty body for requests with no fields.
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
