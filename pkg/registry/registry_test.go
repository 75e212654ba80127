package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/pkg/headless"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/grovetools/agentd/pkg/watcher"
	"github.com/grovetools/agentd/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []models.Notification
}

func (c *captureNotifier) Notify(n models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, n)
}

func (c *captureNotifier) byEvent(event models.NotificationEvent) []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Notification
	for _, n := range c.events {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

func newTestRegistry(t *testing.T, agentScript string) (*Registry, *config.Config, *captureNotifier) {
	t.Helper()
	cfg := testutil.TestConfig(t, agentScript)
	notifier := &captureNotifier{}
	reg := New(cfg, headless.NewRunner(cfg), notifier)
	return reg, cfg, notifier
}

func TestCreateLaysOutSessionDir(t *testing.T) {
	reg, cfg, notifier := newTestRegistry(t, "")

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{Title: "t"})
	require.NoError(t, err)

	dir := filepath.Join(cfg.Sessions.Root, "alice", session.ID)
	for _, sub := range []string{"data", "output", "sandbox", "logs"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}
	_, err = os.Stat(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sandbox", "policy.json"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, session.Status)
	assert.Equal(t, filepath.Join(dir, "data"), session.WorkingDir)
	assert.Len(t, notifier.byEvent(models.NotifySessionCreated), 1)
}

func TestGetLazyReload(t *testing.T) {
	reg, cfg, _ := newTestRegistry(t, "")

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	// A fresh registry over the same root simulates a daemon restart.
	fresh := New(cfg, headless.NewRunner(cfg), &captureNotifier{})
	reloaded, err := fresh.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, reloaded.ID)
	assert.Equal(t, "alice", reloaded.Owner)

	_, err = reg.Get("no-such-session")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
}

func TestListMostRecentFirst(t *testing.T) {
	reg, _, _ := newTestRegistry(t, "")

	first, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)
	second, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, reg.Touch(first.ID))

	sessions, err := reg.List("alice", models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID, "touched session sorts first")
	assert.Equal(t, second.ID, sessions[1].ID)
}

func TestArchiveExcludedFromListing(t *testing.T) {
	reg, _, notifier := newTestRegistry(t, "")

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)
	keep, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, reg.Archive(session.ID))

	sessions, err := reg.List("alice", models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, keep.ID, sessions[0].ID)

	all, err := reg.List("alice", models.ListFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Len(t, notifier.byEvent(models.NotifySessionArchived), 1)
}

func TestDeleteRemovesDirectory(t *testing.T) {
	reg, cfg, notifier := newTestRegistry(t, "")

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	dir := filepath.Join(cfg.Sessions.Root, "alice", session.ID)
	require.NoError(t, reg.Delete(session.ID))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	_, err = reg.Get(session.ID)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
	assert.Len(t, notifier.byEvent(models.NotifySessionDeleted), 1)
}

func TestSendTurnStreamsAndPersists(t *testing.T) {
	script := testutil.StreamJSONAgent(
		`{"type":"system","subtype":"init","session_id":"resume-1"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`,
		`{"type":"result","result":"hi","session_id":"resume-1","total_cost_usd":0.05,"num_turns":1}`,
	)
	reg, cfg, notifier := newTestRegistry(t, script)

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	ch, err := reg.SendTurn(context.Background(), session.ID, "hello")
	require.NoError(t, err)
	for range ch {
	}

	updated, err := reg.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "resume-1", updated.ResumeToken)
	assert.Equal(t, 0.05, updated.TotalCostUSD)
	assert.Equal(t, 1, updated.TotalTurns)
	assert.Equal(t, models.StatusReady, updated.Status)

	logPath := filepath.Join(cfg.Sessions.Root, "alice", session.ID, "logs", "messages.jsonl")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.GreaterOrEqual(t, len(lines), 4, "user record plus events")
	assert.Contains(t, lines[0], `"user"`)

	assert.Len(t, notifier.byEvent(models.NotifyTurnCompleted), 1)
}

func TestSendTurnSerializesPerSession(t *testing.T) {
	reg, cfg, _ := newTestRegistry(t, "")

	marker := filepath.Join(t.TempDir(), "turns.log")
	script := "echo start >> " + marker + "\nsleep 0.3\necho end >> " + marker + "\n" +
		`echo '{"type":"result","result":"ok"}'`
	cfg.Agent.Binary = testutil.WriteFakeAgent(t, script)

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := reg.SendTurn(context.Background(), session.ID, "go")
			if !assert.NoError(t, err) {
				return
			}
			for range ch {
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	got := strings.Fields(string(data))
	assert.Equal(t, []string{"start", "end", "start", "end"}, got,
		"turns on one session must never overlap")
}

func TestWatchStartsOnActivityNotOnRead(t *testing.T) {
	script := testutil.StreamJSONAgent(`{"type":"result","result":"ok"}`)
	reg, cfg, _ := newTestRegistry(t, script)

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	// A fresh registry over the same root simulates a daemon restart with
	// sessions already on disk.
	fresh := New(cfg, headless.NewRunner(cfg), &captureNotifier{})
	wm := watcher.NewManager(cfg)
	defer wm.StopAll()
	fresh.AttachWatcher(wm)

	_, err = fresh.List("alice", models.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, wm.Count(), "reads must not start watchers")

	ch, err := fresh.SendTurn(context.Background(), session.ID, "hello")
	require.NoError(t, err)
	for range ch {
	}
	assert.Equal(t, 1, wm.Count(), "a turn starts the session watch")

	// Repeated activity reuses the existing watch.
	require.NoError(t, fresh.EnsureWatch(session.ID))
	ch, err = fresh.SendTurn(context.Background(), session.ID, "again")
	require.NoError(t, err)
	for range ch {
	}
	assert.Equal(t, 1, wm.Count())

	require.NoError(t, fresh.Archive(session.ID))
	assert.Equal(t, 0, wm.Count(), "archive releases the watch")
}

func TestSendTurnQueueHonorsCancellation(t *testing.T) {
	reg, cfg, _ := newTestRegistry(t, "")
	cfg.Agent.Binary = testutil.WriteFakeAgent(t, "sleep 1\n"+`echo '{"type":"result","result":"ok"}'`)

	session, err := reg.Create("alice", models.KindHeadless, CreateOptions{})
	require.NoError(t, err)

	first, err := reg.SendTurn(context.Background(), session.ID, "long")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = reg.SendTurn(ctx, session.ID, "queued")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionBusy))

	for range first {
	}
}
