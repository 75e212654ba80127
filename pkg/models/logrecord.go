package models

import (
	"time"
)

// Log record kinds for logs/messages.jsonl.
const (
	LogRecordUser  = "user"
	LogRecordEvent = "event"
)

// LogRecord is one line of a session's structured message log. User prompts
// are recorded as text; everything the normalizer emits during a turn is
// recorded as an event.
type LogRecord struct {
	Timestamp time.Time        `json:"ts"`
	Type      string           `json:"type"`
	Text      string           `json:"text,omitempty"`
	Event     *NormalizedEvent `json:"event,omitempty"`
}
