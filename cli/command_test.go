package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardCommandFlags(t *testing.T) {
	cmd := NewStandardCommand("agentd", "test command")
	require.NoError(t, cmd.ParseFlags([]string{"--verbose", "--json", "-c", "/tmp/agentd.yml"}))

	opts := GetOptions(cmd)
	assert.True(t, opts.Verbose)
	assert.True(t, opts.JSONOutput)
	assert.Equal(t, "/tmp/agentd.yml", opts.ConfigFile)
}

func TestPlainHelpListsSubcommands(t *testing.T) {
	root := NewStandardCommand("agentd", "root")
	sub := NewStandardCommand("sessions", "Manage agent sessions")
	sub.Run = func(cmd *cobra.Command, args []string) {}
	root.AddCommand(sub)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, "sessions")
	assert.Contains(t, out, "Manage agent sessions")
	assert.Contains(t, out, "--verbose")
}
