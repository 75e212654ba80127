package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *AgentdError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *AgentdError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// SessionNotFound creates a session not found error
func SessionNotFound(sessionID string) *AgentdError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session '%s' not found", sessionID)).
		WithDetail("session_id", sessionID)
}

// SessionBusy indicates a turn is already in flight for the session
func SessionBusy(sessionID string) *AgentdError {
	return New(ErrCodeSessionBusy, fmt.Sprintf("session '%s' has a turn in flight", sessionID)).
		WithDetail("session_id", sessionID)
}

// SpawnFailed wraps a process creation failure
func SpawnFailed(binary string, err error) *AgentdError {
	return Wrap(err, ErrCodeSpawnFailed, fmt.Sprintf("failed to spawn agent process: %s", binary)).
		WithDetail("binary", binary)
}

// AgentNotFound indicates the configured agent executable is missing
func AgentNotFound(binary string) *AgentdError {
	return New(ErrCodeAgentNotFound, fmt.Sprintf("agent executable '%s' not found in PATH", binary)).
		WithDetail("binary", binary)
}

// ProcessDied indicates the subprocess exited or its PTY hit end-of-stream
func ProcessDied(sessionID string) *AgentdError {
	return New(ErrCodeProcessDied, fmt.Sprintf("agent process for session '%s' is not running", sessionID)).
		WithDetail("session_id", sessionID)
}

// ContainmentViolation refuses a path that escapes the sandbox root
func ContainmentViolation(path, root string) *AgentdError {
	return New(ErrCodeContainment, fmt.Sprintf("path '%s' resolves outside session root", path)).
		WithDetail("path", path).
		WithDetail("root", root)
}

// SummaryTimeout indicates the summarization engine exceeded its budget
func SummaryTimeout(sessionID string, timeout string) *AgentdError {
	return New(ErrCodeSummaryTimeout,
		fmt.Sprintf("summarization for session '%s' exceeded %s", sessionID, timeout)).
		WithDetail("session_id", sessionID).
		WithDetail("timeout", timeout)
}
