package models

import (
	"encoding/json"
)

// EventType enumerates the closed set of normalized event kinds. Upstream
// record kinds outside this set are dropped at the normalizer boundary.
type EventType string

const (
	EventInit          EventType = "init"
	EventText          EventType = "text"
	EventTextDelta     EventType = "text_delta"
	EventThinking      EventType = "thinking"
	EventThinkingDelta EventType = "thinking_delta"
	EventToolStart     EventType = "tool_start"
	EventToolResult    EventType = "tool_result"
	EventResult        EventType = "result"
	EventError         EventType = "error"
	EventDone          EventType = "done"
)

// Usage holds token counters reported by the agent. Counters accumulate
// additively across turns.
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
}

// Add folds another usage sample into the receiver.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheCreationTokens += other.CacheCreationTokens
}

// NormalizedEvent is the uniform unit crossing the event normalizer. Exactly
// one terminal event (result or error for headless turns, followed by done)
// concludes a turn's sequence.
type NormalizedEvent struct {
	Type EventType `json:"type"`

	// Text carries assistant or thinking output for text/thinking kinds.
	Text string `json:"text,omitempty"`

	// Tool call fields. ToolUseID correlates a tool_result back to its
	// tool_start; it is copied from upstream and never synthesized.
	ToolName  string          `json:"tool_name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// Content carries tool_result output, flattened to a single string.
	Content string `json:"content,omitempty"`
	IsError bool   `json:"is_error,omitempty"`

	// Init fields.
	Model       string `json:"model,omitempty"`
	ResumeToken string `json:"resume_token,omitempty"`

	// Terminal result fields.
	CostUSD  float64 `json:"cost_usd,omitempty"`
	NumTurns int     `json:"num_turns,omitempty"`
	Usage    *Usage  `json:"usage,omitempty"`
}

// Terminal reports whether the event concludes a turn.
func (e NormalizedEvent) Terminal() bool {
	return e.Type == EventResult || e.Type == EventError
}
