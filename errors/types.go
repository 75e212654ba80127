package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Process supervision errors
	ErrCodeSpawnFailed   ErrorCode = "SPAWN_FAILED"
	ErrCodeProcessDied   ErrorCode = "PROCESS_DIED"
	ErrCodeAgentNotFound ErrorCode = "AGENT_NOT_FOUND"

	// Session errors
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionBusy     ErrorCode = "SESSION_BUSY"
	ErrCodeSessionClosed   ErrorCode = "SESSION_CLOSED"

	// Filesystem safety errors
	ErrCodeContainment ErrorCode = "CONTAINMENT_VIOLATION"

	// Streaming/protocol errors
	ErrCodeProtocol ErrorCode = "PROTOCOL_ERROR"

	// Bounded-operation errors
	ErrCodeSummaryTimeout ErrorCode = "SUMMARY_TIMEOUT"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// AgentdError represents a structured error with context
type AgentdError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *AgentdError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AgentdError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *AgentdError) WithDetail(key string, value interface{}) *AgentdError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *AgentdError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new AgentdError
func New(code ErrorCode, message string) *AgentdError {
	return &AgentdError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AgentdError
func Wrap(err error, code ErrorCode, message string) *AgentdError {
	return &AgentdError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error carries a specific code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	agentdErr, ok := err.(*AgentdError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return agentdErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	agentdErr, ok := err.(*AgentdError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ErrCodeInternal
	}

	return agentdErr.Code
}
