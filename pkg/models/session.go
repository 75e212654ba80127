package models

import (
	"time"
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusActive   SessionStatus = "active"
	StatusReady    SessionStatus = "ready"
	StatusError    SessionStatus = "error"
	StatusClosed   SessionStatus = "closed"
	StatusArchived SessionStatus = "archived"
)

// SessionKind distinguishes how the agent process is driven.
type SessionKind string

const (
	// KindInteractive sessions own a long-lived PTY-backed agent process.
	KindInteractive SessionKind = "interactive"
	// KindHeadless sessions spawn one agent process per turn with
	// structured streaming output.
	KindHeadless SessionKind = "headless"
)

// Session is the durable record for one unit of conversation with an agent.
// It is persisted as metadata.json inside the session directory and mirrors
// what the daemon exposes over the API.
type Session struct {
	ID           string        `json:"id"`
	Owner        string        `json:"owner"`
	Kind         SessionKind   `json:"kind"`
	Title        string        `json:"title,omitempty"`
	WorkingDir   string        `json:"working_directory"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`

	// ResumeToken is the opaque identifier the agent CLI reports in its
	// init event. It is stored verbatim and passed back on the next turn;
	// its format is never inspected.
	ResumeToken string `json:"resume_token,omitempty"`

	// Accumulated across all turns, reset only on session creation.
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTurns   int     `json:"total_turns"`
	Usage        Usage   `json:"usage"`
}

// IsTerminal reports whether the session has left its active lifecycle.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusArchived || s == StatusError
}

// ListFilter narrows a session listing.
type ListFilter struct {
	Kind            SessionKind
	Status          SessionStatus
	IncludeArchived bool
}
