// Package registry is the single authority mapping session ids to session
// state. It owns metadata persistence, the per-session turn lock, and the
// session directory layout:
//
//	<root>/<owner>/<session-id>/
//	    metadata.json
//	    data/                input working directory
//	    output/              derived artifacts (summaries)
//	    sandbox/policy.json  agent permission policy
//	    logs/messages.jsonl  structured message log
//	    logs/terminal.log    raw terminal capture (interactive sessions)
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/logging"
	"github.com/grovetools/agentd/pkg/headless"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/grovetools/agentd/pkg/notify"
	"github.com/grovetools/agentd/pkg/term"
	"github.com/grovetools/agentd/pkg/watcher"
	"github.com/grovetools/agentd/util/pathutil"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	metadataFile = "metadata.json"
	policyFile   = "policy.json"
	messagesLog  = "messages.jsonl"
)

// entry is the in-memory state for one session.
type entry struct {
	session *models.Session

	// turnLock serializes turns. Waiters queue FIFO and honor context
	// cancellation.
	turnLock *semaphore.Weighted
}

// Registry owns all session bookkeeping for a daemon instance. It is
// constructed once at startup and passed by reference; there is no ambient
// package state.
type Registry struct {
	cfg      *config.Config
	runner   *headless.Runner
	notifier notify.Notifier
	log      *logrus.Entry

	// sup, when attached, is consulted so Delete can terminate a live
	// interactive process.
	sup *term.Supervisor

	// watch, when attached, observes each session's data directory so
	// file activity refreshes the idle clock.
	watch *watcher.Manager

	mu      sync.Mutex
	entries map[string]*entry

	// watched tracks which session ids already have a data watch, so
	// repeated activity on the same session never stacks watchers.
	watched map[string]bool
}

// New constructs a registry rooted at cfg.Sessions.Root.
func New(cfg *config.Config, runner *headless.Runner, notifier notify.Notifier) *Registry {
	return &Registry{
		cfg:      cfg,
		runner:   runner,
		notifier: notifier,
		log:      logging.NewLogger("registry"),
		entries:  make(map[string]*entry),
		watched:  make(map[string]bool),
	}
}

// AttachSupervisor wires in the PTY supervisor so delete and cleanup can
// terminate live interactive processes.
func (r *Registry) AttachSupervisor(sup *term.Supervisor) {
	r.sup = sup
}

// AttachWatcher wires in a watcher manager. Sessions get a debounced watch
// on their data directory when they see live activity (creation, a turn, a
// terminal attach); batched changes bump LastActivity so busy sessions
// never look idle. Merely reading a session does not start a watch, so
// listing a large registry never burns inotify handles.
func (r *Registry) AttachWatcher(m *watcher.Manager) {
	r.watch = m
}

// EnsureWatch starts the data-directory watch for a session that is about
// to see live activity.
func (r *Registry) EnsureWatch(sessionID string) error {
	e, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	session := copySession(e.session)
	r.mu.Unlock()
	r.watchData(session)
	return nil
}

func (r *Registry) watchData(session *models.Session) {
	if r.watch == nil {
		return
	}
	id := session.ID

	r.mu.Lock()
	if r.watched[id] {
		r.mu.Unlock()
		return
	}
	r.watched[id] = true
	r.mu.Unlock()

	err := r.watch.Watch(id, session.WorkingDir, func(batch []models.FileEvent) {
		_ = r.Touch(id)
		r.log.WithFields(logrus.Fields{
			"session_id": id,
			"changes":    len(batch),
		}).Debug("Session files changed")
	})
	if err != nil {
		r.mu.Lock()
		delete(r.watched, id)
		r.mu.Unlock()
		r.log.WithError(err).WithField("session_id", id).Warn("Failed to watch session data")
	}
}

func (r *Registry) unwatchData(sessionID string) {
	if r.watch == nil {
		return
	}
	r.watch.Unwatch(sessionID)
	r.mu.Lock()
	delete(r.watched, sessionID)
	r.mu.Unlock()
}

// CreateOptions holds optional fields for Create.
type CreateOptions struct {
	Title string

	// Policy overrides the default sandbox policy.
	Policy *models.SandboxPolicy
}

// Create allocates a session id, builds the session directory tree, and
// persists the initial metadata. Safe under concurrent creation.
func (r *Registry) Create(owner string, kind models.SessionKind, opts CreateOptions) (*models.Session, error) {
	if owner == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "owner must not be empty")
	}

	id := uuid.NewString()
	dir := filepath.Join(r.cfg.Sessions.Root, owner, id)
	if _, err := pathutil.WithinRoot(r.cfg.Sessions.Root, dir); err != nil {
		return nil, err
	}

	for _, sub := range []string{"data", "output", "sandbox", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create session directory").
				WithDetail("dir", dir)
		}
	}

	policy := opts.Policy
	if policy == nil {
		policy = &models.SandboxPolicy{PermissionMode: "default"}
	}
	if err := writeJSON(filepath.Join(dir, "sandbox", policyFile), policy); err != nil {
		return nil, err
	}

	now := time.Now()
	session := &models.Session{
		ID:           id,
		Owner:        owner,
		Kind:         kind,
		Title:        opts.Title,
		WorkingDir:   filepath.Join(dir, "data"),
		Status:       models.StatusPending,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := r.persist(session); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.entries[id] = newEntry(session)
	r.mu.Unlock()
	r.watchData(session)

	r.log.WithFields(logrus.Fields{"session_id": id, "owner": owner, "kind": kind}).Info("Created session")
	r.notifier.Notify(models.Notification{
		Event:     models.NotifySessionCreated,
		SessionID: id,
		Owner:     owner,
	})
	return copySession(session), nil
}

// Get returns the session record, lazily reloading it from metadata.json
// when it is not cached. This lets sessions survive daemon restarts.
func (r *Registry) Get(sessionID string) (*models.Session, error) {
	e, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return copySession(e.session), nil
}

// Touch updates the session's last-activity timestamp.
func (r *Registry) Touch(sessionID string) error {
	return r.mutate(sessionID, func(s *models.Session) {
		s.LastActivity = time.Now()
	})
}

// UpdateFields is a partial metadata update.
type UpdateFields struct {
	Title  *string
	Status *models.SessionStatus
}

// Update applies a partial metadata update.
func (r *Registry) Update(sessionID string, fields UpdateFields) error {
	return r.mutate(sessionID, func(s *models.Session) {
		if fields.Title != nil {
			s.Title = *fields.Title
		}
		if fields.Status != nil {
			s.Status = *fields.Status
		}
		s.LastActivity = time.Now()
	})
}

// Archive soft-deletes the session: metadata and logs stay on disk, the
// session drops out of default listings.
func (r *Registry) Archive(sessionID string) error {
	err := r.mutate(sessionID, func(s *models.Session) {
		s.Status = models.StatusArchived
		s.LastActivity = time.Now()
	})
	if err != nil {
		return err
	}

	if r.sup != nil {
		r.sup.Terminate(sessionID)
	}
	r.unwatchData(sessionID)

	session, _ := r.Get(sessionID)
	owner := ""
	if session != nil {
		owner = session.Owner
	}
	r.notifier.Notify(models.Notification{
		Event:     models.NotifySessionArchived,
		SessionID: sessionID,
		Owner:     owner,
	})
	return nil
}

// Delete terminates any live process and removes the session directory.
// The recursive delete runs only after the directory passes a containment
// check against the sessions root.
func (r *Registry) Delete(sessionID string) error {
	e, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	if r.sup != nil {
		r.sup.Terminate(sessionID)
	}
	r.unwatchData(sessionID)

	dir := r.sessionDir(e.session)
	resolved, err := pathutil.WithinRoot(r.cfg.Sessions.Root, dir)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(resolved); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to remove session directory").
			WithDetail("dir", resolved)
	}

	r.mu.Lock()
	owner := e.session.Owner
	delete(r.entries, sessionID)
	r.mu.Unlock()

	r.log.WithField("session_id", sessionID).Info("Deleted session")
	r.notifier.Notify(models.Notification{
		Event:     models.NotifySessionDeleted,
		SessionID: sessionID,
		Owner:     owner,
	})
	return nil
}

// List returns the owner's sessions, most recently active first. Archived
// sessions are excluded unless the filter includes them.
func (r *Registry) List(owner string, filter models.ListFilter) ([]*models.Session, error) {
	ownerDir := filepath.Join(r.cfg.Sessions.Root, owner)
	dirEntries, err := os.ReadDir(ownerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read owner directory").
			WithDetail("owner", owner)
	}

	var out []*models.Session
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		session, err := r.Get(de.Name())
		if err != nil {
			r.log.WithError(err).WithField("session_id", de.Name()).Warn("Skipping unreadable session")
			continue
		}
		if session.Owner != owner {
			continue
		}
		if filter.Kind != "" && session.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if session.Status == models.StatusArchived && !filter.IncludeArchived && filter.Status != models.StatusArchived {
			continue
		}
		out = append(out, session)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

// SessionDir returns the on-disk directory for a session.
func (r *Registry) SessionDir(sessionID string) (string, error) {
	e, err := r.lookup(sessionID)
	if err != nil {
		return "", err
	}
	return r.sessionDir(e.session), nil
}

// Policy loads the session's sandbox policy.
func (r *Registry) Policy(sessionID string) (*models.SandboxPolicy, error) {
	e, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	var policy models.SandboxPolicy
	path := filepath.Join(r.sessionDir(e.session), "sandbox", policyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.SandboxPolicy{PermissionMode: "default"}, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read sandbox policy")
	}
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to parse sandbox policy")
	}
	return &policy, nil
}

// lookup returns the cached entry, reloading from disk when needed.
func (r *Registry) lookup(sessionID string) (*entry, error) {
	r.mu.Lock()
	if e, ok := r.entries[sessionID]; ok {
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	session, err := r.loadFromDisk(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// A racing lookup may have filled the cache; keep the first entry so
	// everyone shares one turn lock.
	if e, ok := r.entries[sessionID]; ok {
		r.mu.Unlock()
		return e, nil
	}
	e := newEntry(session)
	r.entries[sessionID] = e
	r.mu.Unlock()
	return e, nil
}

// loadFromDisk scans owner directories for the session's metadata.
func (r *Registry) loadFromDisk(sessionID string) (*models.Session, error) {
	owners, err := os.ReadDir(r.cfg.Sessions.Root)
	if err != nil {
		return nil, errors.SessionNotFound(sessionID)
	}

	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}
		path := filepath.Join(r.cfg.Sessions.Root, owner.Name(), sessionID, metadataFile)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to parse session metadata").
				WithDetail("path", path)
		}
		return &session, nil
	}

	return nil, errors.SessionNotFound(sessionID)
}

// mutate applies fn to the session under the registry lock and persists.
func (r *Registry) mutate(sessionID string, fn func(*models.Session)) error {
	e, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	fn(e.session)
	snapshot := copySession(e.session)
	r.mu.Unlock()

	return r.persist(snapshot)
}

func (r *Registry) persist(session *models.Session) error {
	path := filepath.Join(r.sessionDir(session), metadataFile)
	if err := writeJSON(path, session); err != nil {
		return err
	}
	return nil
}

func (r *Registry) sessionDir(session *models.Session) string {
	return filepath.Join(r.cfg.Sessions.Root, session.Owner, session.ID)
}

func newEntry(session *models.Session) *entry {
	return &entry{
		session:  session,
		turnLock: semaphore.NewWeighted(1),
	}
}

func copySession(s *models.Session) *models.Session {
	c := *s
	return &c
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode JSON").
			WithDetail("path", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write file").
			WithDetail("path", path)
	}
	return nil
}
