package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/pkg/headless"
	"github.com/grovetools/agentd/pkg/models"
)

// SendTurn runs one conversational turn on the session and streams its
// normalized events. Turns on the same session queue FIFO behind the
// per-session lock; a waiter gives up when its context is cancelled. Turns
// on different sessions never block each other.
//
// Every event is appended to logs/messages.jsonl. The terminal event's
// resume token and totals are folded into the session metadata before the
// event is forwarded.
func (r *Registry) SendTurn(ctx context.Context, sessionID, message string) (<-chan models.NormalizedEvent, error) {
	e, err := r.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	status := e.session.Status
	r.mu.Unlock()
	if status == models.StatusClosed || status == models.StatusArchived {
		return nil, errors.New(errors.ErrCodeSessionClosed, "session is no longer accepting turns").
			WithDetail("session_id", sessionID)
	}

	if err := e.turnLock.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSessionBusy, "gave up waiting for the session turn lock").
			WithDetail("session_id", sessionID)
	}

	if err := r.beginTurn(e, message); err != nil {
		e.turnLock.Release(1)
		return nil, err
	}

	policy, err := r.Policy(sessionID)
	if err != nil {
		policy = &models.SandboxPolicy{PermissionMode: "default"}
	}

	r.mu.Lock()
	session := copySession(e.session)
	r.mu.Unlock()
	r.watchData(session)

	req := headless.TurnRequest{
		WorkDir:        session.WorkingDir,
		Prompt:         message,
		ResumeToken:    session.ResumeToken,
		PermissionMode: policy.PermissionMode,
		AllowedTools:   policy.AllowedTools,
		DeniedTools:    policy.DeniedTools,
	}

	upstream, err := r.runner.RunTurn(ctx, req)
	if err != nil {
		e.turnLock.Release(1)
		return nil, err
	}

	out := make(chan models.NormalizedEvent, 64)
	go func() {
		defer close(out)
		defer e.turnLock.Release(1)

		logFile := r.openMessageLog(e)
		if logFile != nil {
			defer logFile.Close()
		}

		failed := false
		for ev := range upstream {
			r.appendRecord(logFile, models.LogRecord{
				Timestamp: time.Now(),
				Type:      models.LogRecordEvent,
				Event:     &ev,
			})

			if ev.Terminal() {
				failed = ev.IsError || ev.Type == models.EventError
				r.finishTurn(e, ev, failed)
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				// Keep draining so the runner can finish and the
				// terminal event still lands in metadata.
			}
		}
	}()

	return out, nil
}

// beginTurn records the user prompt and marks the session active.
func (r *Registry) beginTurn(e *entry, message string) error {
	err := r.mutate(e.session.ID, func(s *models.Session) {
		s.Status = models.StatusActive
		s.LastActivity = time.Now()
	})
	if err != nil {
		return err
	}

	logFile := r.openMessageLog(e)
	if logFile != nil {
		defer logFile.Close()
		r.appendRecord(logFile, models.LogRecord{
			Timestamp: time.Now(),
			Type:      models.LogRecordUser,
			Text:      message,
		})
	}
	return nil
}

// finishTurn folds the terminal event into the session metadata and fires
// the lifecycle notification.
func (r *Registry) finishTurn(e *entry, ev models.NormalizedEvent, failed bool) {
	err := r.mutate(e.session.ID, func(s *models.Session) {
		if ev.ResumeToken != "" {
			s.ResumeToken = ev.ResumeToken
		}
		s.TotalCostUSD += ev.CostUSD
		s.TotalTurns += ev.NumTurns
		if ev.Usage != nil {
			s.Usage.Add(*ev.Usage)
		}
		if failed {
			s.Status = models.StatusError
		} else {
			s.Status = models.StatusReady
		}
		s.LastActivity = time.Now()
	})
	if err != nil {
		r.log.WithError(err).WithField("session_id", e.session.ID).Error("Failed to persist turn result")
	}

	event := models.NotifyTurnCompleted
	if failed {
		event = models.NotifyTurnFailed
	}
	r.notifier.Notify(models.Notification{
		Event:     event,
		SessionID: e.session.ID,
		Owner:     e.session.Owner,
		Message:   ev.Content,
	})
}

func (r *Registry) openMessageLog(e *entry) *os.File {
	path := filepath.Join(r.sessionDir(e.session), "logs", messagesLog)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		r.log.WithError(err).WithField("path", path).Warn("Failed to open message log")
		return nil
	}
	return f
}

func (r *Registry) appendRecord(f *os.File, rec models.LogRecord) {
	if f == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		r.log.WithError(err).Warn("Failed to encode log record")
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		r.log.WithError(err).Warn("Failed to append log record")
	}
}
