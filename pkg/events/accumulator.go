package events

import (
	"strings"

	"github.com/grovetools/agentd/pkg/models"
)

// Accumulator folds a turn's event stream into running totals. Usage and
// cost counters accumulate additively and are never reset within a turn;
// callers carry session-lifetime totals by feeding successive turns through
// the same session record.
type Accumulator struct {
	text     strings.Builder
	thinking strings.Builder

	Model       string
	ResumeToken string
	ToolsUsed   []string
	Usage       models.Usage
	CostUSD     float64
	NumTurns    int
	IsError     bool

	sawTerminal bool
}

// Observe folds one event into the running state.
func (a *Accumulator) Observe(ev models.NormalizedEvent) {
	switch ev.Type {
	case models.EventInit:
		if ev.Model != "" {
			a.Model = ev.Model
		}
		if ev.ResumeToken != "" {
			a.ResumeToken = ev.ResumeToken
		}
	case models.EventText, models.EventTextDelta:
		a.text.WriteString(ev.Text)
	case models.EventThinking, models.EventThinkingDelta:
		a.thinking.WriteString(ev.Text)
	case models.EventToolStart:
		a.ToolsUsed = append(a.ToolsUsed, ev.ToolName)
	case models.EventResult, models.EventError:
		a.sawTerminal = true
		a.IsError = a.IsError || ev.IsError || ev.Type == models.EventError
		if ev.ResumeToken != "" {
			a.ResumeToken = ev.ResumeToken
		}
		a.CostUSD += ev.CostUSD
		a.NumTurns += ev.NumTurns
	}

	if ev.Usage != nil {
		a.Usage.Add(*ev.Usage)
	}
}

// Text returns the concatenated assistant text observed so far.
func (a *Accumulator) Text() string { return a.text.String() }

// Thinking returns the concatenated thinking output observed so far.
func (a *Accumulator) Thinking() string { return a.thinking.String() }

// SawTerminal reports whether a terminal result or error event was observed.
func (a *Accumulator) SawTerminal() bool { return a.sawTerminal }

// Result synthesizes a terminal result event from the accumulated state,
// used when the upstream stream ended without emitting one.
func (a *Accumulator) Result() models.NormalizedEvent {
	usage := a.Usage
	return models.NormalizedEvent{
		Type:        models.EventResult,
		Content:     a.Text(),
		IsError:     a.IsError,
		Model:       a.Model,
		ResumeToken: a.ResumeToken,
		CostUSD:     a.CostUSD,
		NumTurns:    a.NumTurns,
		Usage:       &usage,
	}
}
