package models

import (
	"time"
)

// TranscriptEntryType categorizes records in a session's structured message
// log (logs/messages.jsonl).
type TranscriptEntryType string

const (
	TranscriptUser      TranscriptEntryType = "user"
	TranscriptAssistant TranscriptEntryType = "assistant"
	TranscriptSystem    TranscriptEntryType = "system"
	TranscriptTool      TranscriptEntryType = "tool"
	TranscriptSummary   TranscriptEntryType = "summary"
)

// ToolCall is one rendered tool invocation: the call and, when the log later
// supplies it, the matching result attached by tool_use_id.
type ToolCall struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Input    string `json:"input,omitempty"`
	Output   string `json:"output,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
	Resolved bool   `json:"resolved"`
}

// Interaction is one numbered user turn in a rendered transcript together
// with everything the assistant produced in response.
type Interaction struct {
	Index     int        `json:"index"`
	UserText  string     `json:"user_text"`
	Assistant string     `json:"assistant_text,omitempty"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}

// Transcript is the ordered human-readable rendering of a session log.
type Transcript struct {
	SessionID    string        `json:"session_id"`
	Interactions []Interaction `json:"interactions"`
	// Source records which log fed the rendering: "messages" for the
	// structured JSONL log, "terminal" for the raw capture fallback.
	Source string `json:"source"`
}

// SummaryMethod records which path produced a summary.
type SummaryMethod string

const (
	SummaryMethodAI       SummaryMethod = "ai"
	SummaryMethodFallback SummaryMethod = "metadata_fallback"
)

// Summary is the fixed-shape structured digest of a session. One is always
// produced, even when the summarization engine is unavailable; the fallback
// path derives it from filesystem metadata alone.
type Summary struct {
	Title            string        `json:"title"`
	KeyFindings      []string      `json:"key_findings"`
	FilesCreated     []string      `json:"files_created"`
	FilesModified    []string      `json:"files_modified"`
	ToolsUsed        []string      `json:"tools_used"`
	DurationEstimate string        `json:"duration_estimate"`
	Method           SummaryMethod `json:"method"`
	GeneratedAt      time.Time     `json:"generated_at"`
}
