// Package proc holds small helpers for managing agent subprocesses.
package proc

import (
	"os"
	"syscall"

	"github.com/grovetools/agentd/config"
	"golang.org/x/sys/unix"
)

// IsAlive checks if a process with the given PID is still running.
// It uses a signal-sending method that is cross-platform for Unix-like systems (macOS, Linux).
func IsAlive(pid int) bool {
	// PID 0 or less is invalid.
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false // Should not happen on Unix-like systems.
	}

	// On Unix, sending signal 0 to a process checks for its existence without
	// actually sending a signal. EPERM still means the process is alive.
	err = process.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// ApplyLimits sets per-process resource ceilings on an already-started child.
// Failures are returned so callers can log them; a child that outlives a
// failed prlimit call still runs, just uncapped.
func ApplyLimits(pid int, limits config.LimitsConfig) error {
	if limits.AddressSpaceMB > 0 {
		bytes := uint64(limits.AddressSpaceMB) * 1024 * 1024
		rlim := unix.Rlimit{Cur: bytes, Max: bytes}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &rlim, nil); err != nil {
			return err
		}
	}
	if limits.MaxProcs > 0 {
		rlim := unix.Rlimit{Cur: uint64(limits.MaxProcs), Max: uint64(limits.MaxProcs)}
		if err := unix.Prlimit(pid, unix.RLIMIT_NPROC, &rlim, nil); err != nil {
			return err
		}
	}
	if limits.OpenFiles > 0 {
		rlim := unix.Rlimit{Cur: uint64(limits.OpenFiles), Max: uint64(limits.OpenFiles)}
		if err := unix.Prlimit(pid, unix.RLIMIT_NOFILE, &rlim, nil); err != nil {
			return err
		}
	}
	return nil
}

// KillGroup force-kills the process group rooted at pid. Children started
// with Setpgid share the group, so agent-spawned helpers die with the agent.
func KillGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
