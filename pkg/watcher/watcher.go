// Package watcher delivers debounced filesystem change notifications for a
// session's working tree.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/agentd/logging"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// defaultIgnores are always filtered in addition to configured patterns:
// hidden paths, dependency and cache directories, and editor noise.
var defaultIgnores = []string{
	".*",
	".git",
	"node_modules",
	"__pycache__",
	"*.swp",
	"*.swx",
	"*.tmp",
	"4913",
	".DS_Store",
}

// BatchFunc receives one debounced batch. It runs on its own goroutine;
// panics or slow consumers never stall the watch loop.
type BatchFunc func(events []models.FileEvent)

// Watcher observes one directory tree recursively and coalesces rapid
// change bursts: within a quiet window only the most recent kind per path
// survives.
type Watcher struct {
	root     string
	window   time.Duration
	matcher  *patternmatcher.PatternMatcher
	callback BatchFunc
	log      *logrus.Entry

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]models.FileEvent
	timer   *time.Timer
	closed  bool

	done chan struct{}
}

// New starts watching root. Extra ignore patterns extend the built-in set.
func New(root string, window time.Duration, ignore []string, callback BatchFunc) (*Watcher, error) {
	patterns := append(append([]string{}, defaultIgnores...), ignore...)
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		window:   window,
		matcher:  matcher,
		callback: callback,
		log:      logging.NewLogger("watcher"),
		fsw:      fsw,
		pending:  make(map[string]models.FileEvent),
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Stop tears down the watch handles and cancels any pending flush.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.fsw.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("Watch error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	if w.ignored(rel) {
		return
	}

	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	// New directories join the watch set so the tree stays covered.
	if isDir && ev.Op&fsnotify.Create != 0 {
		if err := w.addRecursive(ev.Name); err != nil {
			w.log.WithError(err).WithField("dir", ev.Name).Debug("Failed to watch new directory")
		}
	}

	kind, ok := mapKind(ev.Op)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	// Latest kind wins within the window.
	w.pending[rel] = models.FileEvent{Path: rel, Kind: kind, IsDir: isDir}

	if w.timer == nil {
		w.timer = time.AfterFunc(w.window, w.flush)
	} else {
		w.timer.Reset(w.window)
	}
}

// flush delivers the pending batch on a fresh goroutine and clears it.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 || w.closed {
		w.mu.Unlock()
		return
	}
	batch := make([]models.FileEvent, 0, len(w.pending))
	for _, ev := range w.pending {
		batch = append(batch, ev)
	}
	w.pending = make(map[string]models.FileEvent)
	w.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				// A missed notification is not fatal.
				w.log.WithField("panic", r).Warn("Watch callback panicked")
			}
		}()
		w.callback(batch)
	}()
}

func (w *Watcher) ignored(rel string) bool {
	match, err := w.matcher.MatchesOrParentMatches(rel)
	if err != nil {
		return false
	}
	return match
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr == nil && rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func mapKind(op fsnotify.Op) (models.FileEventKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return models.FileCreated, true
	case op&fsnotify.Write != 0:
		return models.FileModified, true
	case op&fsnotify.Remove != 0:
		return models.FileDeleted, true
	case op&fsnotify.Rename != 0:
		return models.FileMoved, true
	default:
		return "", false
	}
}
