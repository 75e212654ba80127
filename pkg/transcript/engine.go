package transcript

import (
	"context"
	"fmt"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/pkg/headless"
	"github.com/grovetools/agentd/pkg/models"
)

// AgentEngine summarizes by running one headless agent turn. The context
// passed to Summarize bounds the subprocess; cancellation kills it.
type AgentEngine struct {
	runner *headless.Runner
	model  string
}

// NewAgentEngine wires the headless runner in as the summarization engine.
func NewAgentEngine(cfg *config.Config, runner *headless.Runner) *AgentEngine {
	return &AgentEngine{
		runner: runner,
		model:  cfg.Summarizer.Model,
	}
}

// Summarize runs the prompt and returns the accumulated assistant text.
func (e *AgentEngine) Summarize(ctx context.Context, workdir, prompt string) (string, error) {
	ch, err := e.runner.RunTurn(ctx, headless.TurnRequest{
		WorkDir: workdir,
		Prompt:  prompt,
		Model:   e.model,
	})
	if err != nil {
		return "", err
	}

	var text string
	for ev := range ch {
		switch ev.Type {
		case models.EventText, models.EventTextDelta:
			text += ev.Text
		case models.EventResult:
			if ev.IsError {
				return "", fmt.Errorf("summarization turn failed: %s", ev.Content)
			}
			if ev.Content != "" {
				text = ev.Content
			}
		case models.EventError:
			return "", fmt.Errorf("summarization turn failed: %s", ev.Content)
		}
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return text, nil
}
