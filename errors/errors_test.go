package errors

import (
	"fmt"
	"testing"
)

func TestAgentdError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeSessionNotFound, "session not found")
	if err.Code != ErrCodeSessionNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeSessionNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeSpawnFailed, "spawn failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeSpawnFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeSessionNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("session", "s1").WithDetail("owner", "alice")
	if detailed.Details["session"] != "s1" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	// Test SessionNotFound
	err := SessionNotFound("s1")
	if err.Code != ErrCodeSessionNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeSessionNotFound, err.Code)
	}
	if err.Details["session_id"] != "s1" {
		t.Error("SessionNotFound should include session_id detail")
	}

	// Test SessionBusy
	err = SessionBusy("s2")
	if err.Code != ErrCodeSessionBusy {
		t.Errorf("expected code %s, got %s", ErrCodeSessionBusy, err.Code)
	}

	// Test ContainmentViolation
	err = ContainmentViolation("/etc/passwd", "/srv/sessions")
	if err.Code != ErrCodeContainment {
		t.Errorf("expected code %s, got %s", ErrCodeContainment, err.Code)
	}
	if err.Details["path"] != "/etc/passwd" {
		t.Error("ContainmentViolation should include path detail")
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
	if GetCode(fmt.Errorf("plain")) != ErrCodeInternal {
		t.Error("GetCode should fall back to internal for plain errors")
	}
	if GetCode(ProcessDied("s3")) != ErrCodeProcessDied {
		t.Error("GetCode should return the typed code")
	}
}
