// Package term supervises interactive agent processes attached to
// pseudo-terminals. One supervisor owns all PTY sessions for a daemon
// instance; raw bytes flow out through a per-spawn output callback.
package term

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/logging"
	"github.com/grovetools/agentd/pkg/proc"
	"github.com/grovetools/agentd/util/pathutil"
	"github.com/sirupsen/logrus"
)

// OutputFunc receives raw PTY output. It may be asynchronous; the supervisor
// never blocks the read loop on the callback's downstream work.
type OutputFunc func(data []byte)

// sessionEndedNotice is emitted once through the callback when the PTY
// reaches end-of-stream.
const sessionEndedNotice = "\r\n[session ended]\r\n"

type handle struct {
	sessionID string
	cmd       *exec.Cmd
	ptmx      *os.File
	startedAt time.Time

	// done closes when the read loop has fully exited.
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

// Supervisor owns the PTY-backed interactive sessions.
type Supervisor struct {
	cfg *config.Config
	log *logrus.Entry

	mu      sync.Mutex
	handles map[string]*handle
}

// NewSupervisor returns an empty supervisor using cfg for the agent binary,
// resource limits, and sessions root.
func NewSupervisor(cfg *config.Config) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		log:     logging.NewLogger("term"),
		handles: make(map[string]*handle),
	}
}

// Spawn starts an interactive agent process for the session in workdir with
// a PTY sized rows x cols. Output bytes stream to the callback from a
// dedicated read loop. Returns false on any failure; nothing is registered
// in that case. A live process already registered for the session also
// returns false; a dead one is cleaned up first.
func (s *Supervisor) Spawn(sessionID, workdir string, rows, cols uint16, output OutputFunc) bool {
	if info, err := os.Stat(workdir); err != nil || !info.IsDir() {
		s.log.WithField("workdir", workdir).Error("Spawn refused: working directory missing")
		return false
	}

	// The map lock is held from the liveness check through registration so
	// the session id is claimed atomically; a concurrent Spawn for the same
	// id sees the claim and refuses instead of forking a second process.
	s.mu.Lock()
	stale := s.handles[sessionID]
	if stale != nil && proc.IsAlive(stale.cmd.Process.Pid) {
		s.mu.Unlock()
		s.log.WithField("session_id", sessionID).Warn("Spawn refused: process already live")
		return false
	}

	cmd := exec.Command(s.cfg.Agent.Binary, s.cfg.Agent.BaseArgs...)
	cmd.Dir = workdir
	cmd.Env = restrictedEnv()

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		s.mu.Unlock()
		s.log.WithError(err).WithField("binary", s.cfg.Agent.Binary).Error("Failed to start PTY session")
		return false
	}

	h := &handle{
		sessionID: sessionID,
		cmd:       cmd,
		ptmx:      ptmx,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.handles[sessionID] = h
	s.mu.Unlock()

	// The dead leftover's registration is gone; reap it now.
	if stale != nil {
		s.teardown(stale)
	}

	if err := proc.ApplyLimits(cmd.Process.Pid, s.cfg.Limits); err != nil {
		s.log.WithError(err).WithField("pid", cmd.Process.Pid).Warn("Failed to apply resource limits")
	}

	go s.readLoop(h, output)

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"pid":        cmd.Process.Pid,
		"workdir":    workdir,
	}).Info("Spawned interactive session")
	return true
}

// readLoop pumps PTY output to the callback until end-of-stream. EOF (or
// EIO, which Linux PTYs report when the child side closes) emits one
// synthetic session-ended notice. Unexpected errors back off and retry while
// the process is still alive.
func (s *Supervisor) readLoop(h *handle, output OutputFunc) {
	defer close(h.done)

	buf := make([]byte, 32*1024)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			output(chunk)
		}
		if err == nil {
			continue
		}

		if err == io.EOF || isPTYClosed(err) {
			output([]byte(sessionEndedNotice))
			s.log.WithField("session_id", h.sessionID).Info("PTY reached end of stream")
			return
		}

		if !proc.IsAlive(h.cmd.Process.Pid) {
			s.log.WithError(err).WithField("session_id", h.sessionID).Debug("Read loop exiting: process dead")
			return
		}

		s.log.WithError(err).WithField("session_id", h.sessionID).Warn("PTY read error, backing off")
		time.Sleep(100 * time.Millisecond)
	}
}

// WriteInput writes raw bytes to the session's PTY. Returns false if no live
// process is registered.
func (s *Supervisor) WriteInput(sessionID string, data []byte) bool {
	h := s.lookupLive(sessionID)
	if h == nil {
		return false
	}
	if _, err := h.ptmx.Write(data); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("PTY write failed")
		return false
	}
	return true
}

// Resize changes the PTY window size. Returns false if the session has no
// live process.
func (s *Supervisor) Resize(sessionID string, rows, cols uint16) bool {
	h := s.lookupLive(sessionID)
	if h == nil {
		return false
	}
	if err := pty.Setsize(h.ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("PTY resize failed")
		return false
	}
	return true
}

// IsAlive reports whether a live process is registered for the session.
func (s *Supervisor) IsAlive(sessionID string) bool {
	return s.lookupLive(sessionID) != nil
}

// Terminate tears down the session's process and read loop. Idempotent:
// terminating an unknown or already-dead session returns false without
// error.
func (s *Supervisor) Terminate(sessionID string) bool {
	s.mu.Lock()
	h, ok := s.handles[sessionID]
	if ok {
		delete(s.handles, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.teardown(h)

	s.log.WithField("session_id", sessionID).Info("Terminated interactive session")
	return true
}

// teardown closes the PTY, kills the process group, and reaps the child.
// The handle must already be removed from the map.
func (s *Supervisor) teardown(h *handle) {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		h.ptmx.Close()
	}
	h.mu.Unlock()

	if proc.IsAlive(h.cmd.Process.Pid) {
		proc.KillGroup(h.cmd.Process.Pid)
	}

	// Wait for the read loop before reaping so the final output (including
	// the session-ended notice) has been delivered.
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		s.log.WithField("session_id", h.sessionID).Warn("Read loop did not exit promptly")
	}
	_ = h.cmd.Wait()
}

// Shutdown terminates every live session.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Terminate(id)
	}
}

// CleanupIdle removes session directories whose modification time exceeds
// maxAge, terminating any live process first. Directories that resolve
// outside the sessions root are never removed. Returns the number of
// directories deleted.
func (s *Supervisor) CleanupIdle(maxAge time.Duration) int {
	root := s.cfg.Sessions.Root
	owners, err := os.ReadDir(root)
	if err != nil {
		s.log.WithError(err).Debug("Cleanup sweep skipped: sessions root unreadable")
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		ownerDir := filepath.Join(root, owner.Name())
		sessions, err := os.ReadDir(ownerDir)
		if err != nil {
			continue
		}
		for _, entry := range sessions {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(ownerDir, entry.Name())
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}

			s.Terminate(entry.Name())

			resolved, err := pathutil.WithinRoot(root, dir)
			if err != nil {
				s.log.WithError(err).WithField("dir", dir).Error("Cleanup refused: containment check failed")
				continue
			}
			if err := os.RemoveAll(resolved); err != nil {
				s.log.WithError(err).WithField("dir", resolved).Warn("Cleanup failed to remove directory")
				continue
			}
			removed++
			s.log.WithField("dir", resolved).Info("Removed idle session directory")
		}
	}
	return removed
}

func (s *Supervisor) lookupLive(sessionID string) *handle {
	s.mu.Lock()
	h, ok := s.handles[sessionID]
	s.mu.Unlock()
	if !ok || !proc.IsAlive(h.cmd.Process.Pid) {
		return nil
	}
	return h
}

// isPTYClosed matches the EIO Linux returns from a PTY master once the
// child side has closed.
func isPTYClosed(err error) bool {
	return err != nil && strings.Contains(err.Error(), "input/output error")
}

// restrictedEnv builds the minimal environment passed to interactive
// children.
func restrictedEnv() []string {
	keep := []string{"HOME", "PATH", "USER", "SHELL", "LANG"}
	env := make([]string, 0, len(keep)+2)
	for _, key := range keep {
		if v := os.Getenv(key); v != "" {
			env = append(env, fmt.Sprintf("%s=%s", key, v))
		}
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "LC_") {
			env = append(env, kv)
		}
	}
	env = append(env, "TERM=xterm-256color")
	return env
}
