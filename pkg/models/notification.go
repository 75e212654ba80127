package models

import (
	"time"
)

// NotificationEvent names a session lifecycle milestone worth announcing to
// external systems.
type NotificationEvent string

const (
	NotifySessionCreated  NotificationEvent = "session_created"
	NotifySessionDeleted  NotificationEvent = "session_deleted"
	NotifySessionArchived NotificationEvent = "session_archived"
	NotifyTurnCompleted   NotificationEvent = "turn_completed"
	NotifyTurnFailed      NotificationEvent = "turn_failed"
)

// Notification is the fire-and-forget payload posted to the configured
// webhook. Delivery failures are logged and never surfaced to the operation
// that triggered them.
type Notification struct {
	Event     NotificationEvent `json:"event"`
	SessionID string            `json:"session_id"`
	Owner     string            `json:"owner,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
