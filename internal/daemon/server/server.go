// Package server provides the HTTP server for the agentd daemon.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/pkg/registry"
	"github.com/grovetools/agentd/pkg/term"
	"github.com/grovetools/agentd/pkg/transcript"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunningStatus describes the active daemon instance. It is exposed via the
// /api/status endpoint so clients can verify what configuration is in effect.
type RunningStatus struct {
	PID          int       `json:"pid"`
	SessionsRoot string    `json:"sessions_root"`
	AgentBinary  string    `json:"agent_binary"`
	StartedAt    time.Time `json:"started_at"`
}

// Server manages the daemon's HTTP surface over a unix socket, or a TCP
// address when the daemon config sets one.
type Server struct {
	logger     *logrus.Entry
	cfg        *config.Config
	registry   *registry.Registry
	supervisor *term.Supervisor
	summarizer *transcript.Summarizer
	server     *http.Server
	startedAt  time.Time

	relayMu sync.Mutex
	relays  map[string]*termRelay
}

// New creates a new Server instance wired to the session registry.
func New(logger *logrus.Entry, cfg *config.Config, reg *registry.Registry) *Server {
	return &Server{
		logger:    logger,
		cfg:       cfg,
		registry:  reg,
		startedAt: time.Now(),
		relays:    make(map[string]*termRelay),
	}
}

// SetSupervisor attaches the PTY supervisor used by the terminal endpoint.
func (s *Server) SetSupervisor(sup *term.Supervisor) {
	s.supervisor = sup
}

// SetSummarizer attaches the transcript summarizer used by the summary
// endpoints.
func (s *Server) SetSummarizer(sum *transcript.Summarizer) {
	s.summarizer = sum
}

// ListenAndServe starts the daemon on the configured address. It blocks
// until the server stops or fails.
func (s *Server) ListenAndServe() error {
	var listener net.Listener
	var err error

	if addr := s.cfg.Daemon.Listen; addr != "" {
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		s.logger.WithField("addr", addr).Info("Daemon listening")
	} else {
		listener, err = s.listenUnix(s.cfg.Daemon.Socket)
		if err != nil {
			return err
		}
		s.logger.WithField("socket", s.cfg.Daemon.Socket).Info("Daemon listening")
	}

	s.server = &http.Server{
		Handler: h2c.NewHandler(s.routes(), &http2.Server{}),
	}
	return s.server.Serve(listener)
}

func (s *Server) listenUnix(socketPath string) (net.Listener, error) {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/archive", s.handleArchiveSession)

	mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleSendTurn)
	mux.HandleFunc("GET /api/sessions/{id}/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.handleGetSummary)
	mux.HandleFunc("POST /api/sessions/{id}/summary", s.handleGenerateSummary)

	mux.HandleFunc("GET /ws/sessions/{id}/terminal", s.handleTerminal)

	return mux
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.closeRelays()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
