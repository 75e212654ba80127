// Package paths provides XDG-compliant path resolution for agentd.
//
// Resolution order:
// 1. AGENTD_HOME (portable root) → $AGENTD_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/agentd
// 3. Platform defaults → ~/.config/agentd, ~/.local/share/agentd, etc.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if agentdHome := os.Getenv("AGENTD_HOME"); agentdHome != "" {
		return filepath.Join(agentdHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getDataHome returns the base data home directory.
func getDataHome() string {
	if agentdHome := os.Getenv("AGENTD_HOME"); agentdHome != "" {
		return filepath.Join(agentdHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if agentdHome := os.Getenv("AGENTD_HOME"); agentdHome != "" {
		return filepath.Join(agentdHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// getCacheHome returns the base cache home directory.
func getCacheHome() string {
	if agentdHome := os.Getenv("AGENTD_HOME"); agentdHome != "" {
		return filepath.Join(agentdHome, "cache")
	}
	if xdgCacheHome := os.Getenv("XDG_CACHE_HOME"); xdgCacheHome != "" {
		return xdgCacheHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cache")
	}
	return ""
}

// ConfigDir returns the agentd configuration directory.
// Used for config files like agentd.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentd")
}

// DataDir returns the agentd data directory.
// Used for session trees and other durable data.
func DataDir() string {
	base := getDataHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentd")
}

// StateDir returns the agentd state directory.
// Used for runtime state, PID files, logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentd")
}

// CacheDir returns the agentd cache directory.
// Used for temporary/regenerable data.
func CacheDir() string {
	base := getCacheHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentd")
}

// SessionsDir returns the default root for session directories.
func SessionsDir() string {
	data := DataDir()
	if data == "" {
		return ""
	}
	return filepath.Join(data, "sessions")
}

// RuntimeDir returns the agentd runtime directory for sockets and pipes.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if agentdHome := os.Getenv("AGENTD_HOME"); agentdHome != "" {
		return filepath.Join(agentdHome, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "agentd")
	}
	// Fallback: use state dir for socket on systems without XDG_RUNTIME_DIR
	return StateDir()
}

// SocketPath returns the path to the agentd daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "agentd.sock")
}

// PidFilePath returns the path to the agentd daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "agentd.pid")
}

// EnsureDirs creates all agentd directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		DataDir(),
		StateDir(),
		CacheDir(),
		SessionsDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
