package config

import (
	"fmt"

	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/pkg/paths"
	"github.com/grovetools/agentd/util/pathutil"
	"github.com/mitchellh/mapstructure"
)

// Config is the top-level agentd.yml structure.
type Config struct {
	Version string `yaml:"version,omitempty"`

	Sessions   SessionsConfig   `yaml:"sessions,omitempty"`
	Agent      AgentConfig      `yaml:"agent,omitempty"`
	Limits     LimitsConfig     `yaml:"limits,omitempty"`
	Watcher    WatcherConfig    `yaml:"watcher,omitempty"`
	Summarizer SummarizerConfig `yaml:"summarizer,omitempty"`
	Notify     NotifyConfig     `yaml:"notify,omitempty"`
	Daemon     DaemonConfig     `yaml:"daemon,omitempty"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline"`
}

// SessionsConfig controls where session directories live and when idle
// interactive sessions are reaped.
type SessionsConfig struct {
	// Root is the directory under which all session trees are created.
	// Defaults to <data-dir>/sessions.
	Root string `yaml:"root,omitempty"`

	// IdleTimeoutMinutes is how long an interactive session may sit with no
	// input or output before cleanup terminates it. Zero disables the reaper.
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes,omitempty"`
}

// AgentConfig describes the agent CLI that sessions run.
type AgentConfig struct {
	// Binary is the agent executable name or absolute path.
	Binary string `yaml:"binary,omitempty"`

	// BaseArgs are prepended to every invocation, before mode-specific flags.
	BaseArgs []string `yaml:"base_args,omitempty"`

	// Model, when set, is passed through to the agent CLI.
	Model string `yaml:"model,omitempty"`
}

// LimitsConfig sets per-process resource ceilings applied to spawned agents.
type LimitsConfig struct {
	AddressSpaceMB int `yaml:"address_space_mb,omitempty"`
	MaxProcs       int `yaml:"max_procs,omitempty"`
	OpenFiles      int `yaml:"open_files,omitempty"`
}

// WatcherConfig controls the filesystem change watcher.
type WatcherConfig struct {
	// DebounceMS is the quiet period before a batch of file events is
	// delivered.
	DebounceMS int `yaml:"debounce_ms,omitempty"`

	// Ignore lists gitignore-style patterns excluded from watching.
	Ignore []string `yaml:"ignore,omitempty"`
}

// SummarizerConfig controls transcript summarization.
type SummarizerConfig struct {
	Model string `yaml:"model,omitempty"`

	// TimeoutSeconds bounds a single summarization turn.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// MinTranscriptChars is the threshold below which the metadata fallback
	// is used instead of invoking the agent.
	MinTranscriptChars int `yaml:"min_transcript_chars,omitempty"`
}

// NotifyConfig controls outbound webhook notifications.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// DaemonConfig controls the HTTP surface of the daemon.
type DaemonConfig struct {
	// Socket is the unix socket path. Defaults to the runtime dir socket.
	Socket string `yaml:"socket,omitempty"`

	// Listen, when set, serves on a TCP address instead of the unix socket.
	Listen string `yaml:"listen,omitempty"`
}

// SetDefaults fills zero-valued fields with sensible defaults.
func (c *Config) SetDefaults() {
	if c.Sessions.Root == "" {
		c.Sessions.Root = paths.SessionsDir()
	} else if expanded, err := pathutil.Expand(c.Sessions.Root); err == nil {
		c.Sessions.Root = expanded
	}
	if c.Sessions.IdleTimeoutMinutes == 0 {
		c.Sessions.IdleTimeoutMinutes = 120
	}
	if c.Agent.Binary == "" {
		c.Agent.Binary = "claude"
	}
	if c.Limits.AddressSpaceMB == 0 {
		c.Limits.AddressSpaceMB = 4096
	}
	if c.Limits.MaxProcs == 0 {
		c.Limits.MaxProcs = 512
	}
	if c.Limits.OpenFiles == 0 {
		c.Limits.OpenFiles = 1024
	}
	if c.Watcher.DebounceMS == 0 {
		c.Watcher.DebounceMS = 500
	}
	if len(c.Watcher.Ignore) == 0 {
		c.Watcher.Ignore = []string{".git", "node_modules", "*.swp", "*.tmp"}
	}
	if c.Summarizer.TimeoutSeconds == 0 {
		c.Summarizer.TimeoutSeconds = 120
	}
	if c.Summarizer.MinTranscriptChars == 0 {
		c.Summarizer.MinTranscriptChars = 200
	}
	if c.Daemon.Socket == "" {
		c.Daemon.Socket = paths.SocketPath()
	}
}

// Validate checks the configuration for semantic errors.
func (c *Config) Validate() error {
	if c.Sessions.Root == "" {
		return errors.ConfigInvalid("sessions.root must not be empty")
	}
	if c.Agent.Binary == "" {
		return errors.ConfigInvalid("agent.binary must not be empty")
	}
	if c.Watcher.DebounceMS < 0 {
		return errors.ConfigInvalid("watcher.debounce_ms must not be negative")
	}
	if c.Summarizer.TimeoutSeconds < 0 {
		return errors.ConfigInvalid("summarizer.timeout_seconds must not be negative")
	}
	return nil
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded agentd.yml into the provided target struct. The target must be a
// pointer. This provides a type-safe way for extensions to access their
// custom configuration sections.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
