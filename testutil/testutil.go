package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/agentd/config"
	"github.com/stretchr/testify/require"
)

// TestConfig returns a config rooted in a temp directory with the fake
// agent script installed as the agent binary.
func TestConfig(t *testing.T, agentScript string) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Sessions.Root = filepath.Join(root, "sessions")
	require.NoError(t, os.MkdirAll(cfg.Sessions.Root, 0755))
	if agentScript != "" {
		cfg.Agent.Binary = WriteFakeAgent(t, agentScript)
	}
	return cfg
}

// WriteFakeAgent writes an executable shell script standing in for the
// agent CLI and returns its path.
func WriteFakeAgent(t *testing.T, script string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-agent")
	content := "#!/bin/sh\n" + script + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}

// StreamJSONAgent returns a fake agent script that emits the given
// stream-json lines on stdout and exits zero.
func StreamJSONAgent(lines ...string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(fmt.Sprintf("echo '%s'\n", line))
	}
	return b.String()
}

// WriteSessionFile writes a file under a session directory, creating
// parents as needed.
func WriteSessionFile(t *testing.T, sessionDir, rel string, content []byte) string {
	t.Helper()

	path := filepath.Join(sessionDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}
