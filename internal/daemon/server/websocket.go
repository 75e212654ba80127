package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/grovetools/agentd/errors"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// controlFrame is the JSON message format clients send over the terminal
// websocket. Raw terminal output flows the other way as binary frames.
type controlFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
}

// termRelay fans PTY output out to every websocket attached to a session
// and mirrors it into the session's terminal log. It outlives individual
// connections so the agent process keeps running while nobody is watching.
type termRelay struct {
	sessionID string
	logger    *logrus.Entry

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	logFile *os.File
}

func newTermRelay(sessionID, sessionDir string, logger *logrus.Entry) *termRelay {
	r := &termRelay{
		sessionID: sessionID,
		logger:    logger,
		conns:     make(map[*websocket.Conn]struct{}),
	}
	path := filepath.Join(sessionDir, "logs", "terminal.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to open terminal log")
	} else {
		r.logFile = f
	}
	return r
}

// write is the supervisor output callback. Connections that fail to accept
// a frame are dropped.
func (t *termRelay) write(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil {
		if _, err := t.logFile.Write(data); err != nil {
			t.logger.WithError(err).Warn("Failed to append terminal log")
		}
	}
	for conn := range t.conns {
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			delete(t.conns, conn)
			conn.Close()
		}
	}
}

func (t *termRelay) attach(conn *websocket.Conn) {
	t.mu.Lock()
	t.conns[conn] = struct{}{}
	t.mu.Unlock()
}

func (t *termRelay) detach(conn *websocket.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
}

func (t *termRelay) writeJSON(conn *websocket.Conn, v interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return conn.WriteJSON(v)
}

func (t *termRelay) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for conn := range t.conns {
		conn.Close()
		delete(t.conns, conn)
	}
	if t.logFile != nil {
		t.logFile.Close()
		t.logFile = nil
	}
}

// relay returns the per-session relay, creating it on first use.
func (s *Server) relay(sessionID, sessionDir string) *termRelay {
	s.relayMu.Lock()
	defer s.relayMu.Unlock()
	if r, ok := s.relays[sessionID]; ok {
		return r
	}
	r := newTermRelay(sessionID, sessionDir, s.logger)
	s.relays[sessionID] = r
	return r
}

func (s *Server) dropRelay(sessionID string) {
	s.relayMu.Lock()
	r, ok := s.relays[sessionID]
	delete(s.relays, sessionID)
	s.relayMu.Unlock()
	if ok {
		r.close()
	}
}

func (s *Server) closeRelays() {
	s.relayMu.Lock()
	relays := make([]*termRelay, 0, len(s.relays))
	for id, r := range s.relays {
		relays = append(relays, r)
		delete(s.relays, id)
	}
	s.relayMu.Unlock()
	for _, r := range relays {
		r.close()
	}
}

// handleTerminal attaches a websocket to the session's interactive agent,
// spawning the PTY process if it is not already running. Input, resize, and
// ping frames arrive as JSON; output is relayed as binary frames.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	if s.supervisor == nil {
		http.Error(w, "supervisor not initialized", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	session, err := s.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if session.Status.IsTerminal() {
		writeError(w, errors.New(errors.ErrCodeSessionClosed, "session is closed"))
		return
	}

	dir, err := s.registry.SessionDir(id)
	if err != nil {
		writeError(w, err)
		return
	}
	relay := s.relay(id, dir)
	_ = s.registry.EnsureWatch(id)

	rows := parseDim(r.URL.Query().Get("rows"), 24)
	cols := parseDim(r.URL.Query().Get("cols"), 80)

	if !s.supervisor.IsAlive(id) {
		if !s.supervisor.Spawn(id, session.WorkingDir, rows, cols, relay.write) {
			writeError(w, errors.SpawnFailed(s.cfg.Agent.Binary, nil))
			return
		}
		_ = s.registry.Touch(id)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("Failed to upgrade websocket")
		return
	}
	relay.attach(conn)
	defer func() {
		relay.detach(conn)
		conn.Close()
	}()

	s.logger.WithField("session_id", id).Debug("Terminal client connected")

	for {
		var frame controlFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithError(err).Debug("Terminal websocket read error")
			}
			return
		}

		switch frame.Type {
		case "input":
			s.supervisor.WriteInput(id, []byte(frame.Data))
			_ = s.registry.Touch(id)
		case "resize":
			s.supervisor.Resize(id, frame.Rows, frame.Cols)
		case "ping":
			if err := relay.writeJSON(conn, controlFrame{Type: "pong"}); err != nil {
				return
			}
		}
	}
}

func parseDim(raw string, fallback uint16) uint16 {
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil || n == 0 {
		return fallback
	}
	return uint16(n)
}
