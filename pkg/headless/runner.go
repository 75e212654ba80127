// Package headless executes one-shot agent turns with structured streaming
// output. No process persists between turns; conversational continuity rides
// on the resume token captured from the agent's init event.
package headless

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"syscall"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/logging"
	"github.com/grovetools/agentd/pkg/events"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/grovetools/agentd/pkg/proc"
	"github.com/sirupsen/logrus"
)

const maxLineSize = 10 * 1024 * 1024

// TurnRequest describes one agent invocation.
type TurnRequest struct {
	WorkDir string
	Prompt  string

	// ResumeToken, when present, is passed verbatim to --resume. It is
	// opaque; agentd never parses or synthesizes one.
	ResumeToken string

	// PermissionMode maps to the agent's --permission-mode flag.
	PermissionMode string

	// AllowedTools and DeniedTools map to --allowedTools / --disallowedTools.
	AllowedTools []string
	DeniedTools  []string

	Model string
}

// Runner builds and supervises headless agent invocations.
type Runner struct {
	cfg *config.Config
	log *logrus.Entry
}

// NewRunner returns a Runner using the agent binary and limits from cfg.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		cfg: cfg,
		log: logging.NewLogger("headless"),
	}
}

// RunTurn spawns one agent invocation and streams its normalized events.
// The returned channel always closes after a terminal result or error event
// followed by a done event. Spawn failures surface as a single error event,
// never as a returned error. Cancelling ctx kills the agent's process group.
func (r *Runner) RunTurn(ctx context.Context, req TurnRequest) (<-chan models.NormalizedEvent, error) {
	ch := make(chan models.NormalizedEvent, 64)

	args := r.buildArgs(req)
	cmd := exec.Command(r.cfg.Agent.Binary, args...)
	cmd.Dir = req.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		r.log.WithError(err).WithField("binary", r.cfg.Agent.Binary).Error("Failed to spawn agent")
		go func() {
			defer close(ch)
			r.deliver(ctx, ch, models.NormalizedEvent{
				Type:    models.EventError,
				Content: "failed to spawn agent: " + err.Error(),
				IsError: true,
			})
			r.deliver(ctx, ch, models.NormalizedEvent{Type: models.EventDone})
		}()
		return ch, nil
	}

	pid := cmd.Process.Pid
	if err := proc.ApplyLimits(pid, r.cfg.Limits); err != nil {
		r.log.WithError(err).WithField("pid", pid).Warn("Failed to apply resource limits")
	}

	// Kill the whole process group if the consumer goes away.
	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			proc.KillGroup(pid)
		case <-killed:
		}
	}()

	go func() {
		defer close(ch)
		defer close(killed)

		var acc events.Accumulator
		forwardedTerminal := false

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			for _, ev := range events.ParseLine(scanner.Bytes()) {
				acc.Observe(ev)
				if ev.Terminal() {
					forwardedTerminal = true
				}
				if !r.deliver(ctx, ch, ev) {
					break
				}
			}
		}
		if err := scanner.Err(); err != nil {
			r.log.WithError(err).Debug("Agent stdout read ended")
		}

		waitErr := cmd.Wait()

		if ctx.Err() != nil {
			// Best-effort; the consumer is usually gone already.
			select {
			case ch <- models.NormalizedEvent{Type: models.EventError, Content: "turn cancelled", IsError: true}:
			default:
			}
			return
		}

		if waitErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = waitErr.Error()
			}
			r.log.WithError(waitErr).WithField("stderr", msg).Error("Agent exited non-zero")
			// A terminal event already concluded the turn; the exit status
			// is log-only then, never a second terminal.
			if !forwardedTerminal {
				r.deliver(ctx, ch, models.NormalizedEvent{
					Type:    models.EventError,
					Content: msg,
					IsError: true,
				})
			}
		} else if !forwardedTerminal {
			// Stream ended cleanly without an explicit result record;
			// synthesize one from the accumulated state.
			r.deliver(ctx, ch, acc.Result())
		}

		r.deliver(ctx, ch, models.NormalizedEvent{Type: models.EventDone})
	}()

	return ch, nil
}

// deliver sends an event unless the consumer's context is gone. Returns
// false once delivery is no longer possible.
func (r *Runner) deliver(ctx context.Context, ch chan<- models.NormalizedEvent, ev models.NormalizedEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) buildArgs(req TurnRequest) []string {
	args := append([]string{}, r.cfg.Agent.BaseArgs...)
	args = append(args, "--output-format", "stream-json", "--verbose")

	model := req.Model
	if model == "" {
		model = r.cfg.Agent.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if req.PermissionMode != "" {
		args = append(args, "--permission-mode", req.PermissionMode)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	if len(req.DeniedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(req.DeniedTools, ","))
	}
	if req.ResumeToken != "" {
		args = append(args, "--resume", req.ResumeToken)
	}
	args = append(args, "-p", req.Prompt)
	return args
}
