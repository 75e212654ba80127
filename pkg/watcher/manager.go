package watcher

import (
	"sync"
	"time"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/logging"
	"github.com/sirupsen/logrus"
)

// Manager owns at most one watcher per session key. Starting a watch for an
// already-watched key stops the previous watcher first, so OS watch handles
// never leak.
type Manager struct {
	cfg *config.Config
	log *logrus.Entry

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewManager returns an empty watcher manager.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      logging.NewLogger("watch-manager"),
		watchers: make(map[string]*Watcher),
	}
}

// Watch starts observing root for the session key, replacing any existing
// watcher for that key.
func (m *Manager) Watch(key, root string, callback BatchFunc) error {
	m.mu.Lock()
	prev := m.watchers[key]
	delete(m.watchers, key)
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	window := time.Duration(m.cfg.Watcher.DebounceMS) * time.Millisecond
	w, err := New(root, window, m.cfg.Watcher.Ignore, callback)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.watchers[key] = w
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"key": key, "root": root}).Debug("Started watcher")
	return nil
}

// Count reports how many watchers are currently running.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

// Unwatch stops and removes the watcher for key, if any.
func (m *Manager) Unwatch(key string) {
	m.mu.Lock()
	w := m.watchers[key]
	delete(m.watchers, key)
	m.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// StopAll tears down every watcher.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := m.watchers
	m.watchers = make(map[string]*Watcher)
	m.mu.Unlock()

	for _, w := range all {
		w.Stop()
	}
}
