package transcript

import (
	"fmt"
	"strings"
	"testing"

	"github.com/grovetools/agentd/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMessages(t *testing.T, dir string, lines ...string) {
	t.Helper()
	testutil.WriteSessionFile(t, dir, "logs/messages.jsonl", []byte(strings.Join(lines, "\n")+"\n"))
}

func TestToolResultPairsWithCall(t *testing.T) {
	dir := t.TempDir()
	writeMessages(t, dir,
		`{"ts":"2026-08-30T10:00:00Z","type":"user","text":"run the tests"}`,
		`{"type":"event","event":{"type":"tool_start","tool_name":"Bash","tool_use_id":"t1","tool_input":{"command":"go test"}}}`,
		`{"type":"event","event":{"type":"text","text":"Running tests."}}`,
		`{"type":"event","event":{"type":"text","text":" Looks fine."}}`,
		`{"type":"event","event":{"type":"tool_result","tool_use_id":"t1","content":"ok  \t3 passed"}}`,
		`{"type":"event","event":{"type":"result","content":"done"}}`,
	)

	transcript, err := Load(dir, "sess-1")
	require.NoError(t, err)
	require.Len(t, transcript.Interactions, 1)

	inter := transcript.Interactions[0]
	assert.Equal(t, "run the tests", inter.UserText)
	assert.Equal(t, "Running tests. Looks fine.", inter.Assistant)

	require.Len(t, inter.ToolCalls, 1, "call and result must render as one block, not two entries")
	call := inter.ToolCalls[0]
	assert.Equal(t, "t1", call.ID)
	assert.Equal(t, "Bash", call.Name)
	assert.True(t, call.Resolved)
	assert.Contains(t, call.Output, "3 passed")
	assert.Contains(t, call.Input, "go test")
}

func TestToolResultAfterNextUserTurn(t *testing.T) {
	// The result lands after a new interaction has opened; it must still
	// attach to the original call.
	dir := t.TempDir()
	writeMessages(t, dir,
		`{"type":"user","text":"first"}`,
		`{"type":"event","event":{"type":"tool_start","tool_name":"Read","tool_use_id":"t1"}}`,
		`{"type":"user","text":"second"}`,
		`{"type":"event","event":{"type":"tool_result","tool_use_id":"t1","content":"late result"}}`,
	)

	transcript, err := Load(dir, "sess-1")
	require.NoError(t, err)
	require.Len(t, transcript.Interactions, 2)

	first := transcript.Interactions[0]
	require.Len(t, first.ToolCalls, 1)
	assert.True(t, first.ToolCalls[0].Resolved)
	assert.Equal(t, "late result", first.ToolCalls[0].Output)
	assert.Empty(t, transcript.Interactions[1].ToolCalls)
}

func TestOrphanToolResultDropped(t *testing.T) {
	dir := t.TempDir()
	writeMessages(t, dir,
		`{"type":"user","text":"hi"}`,
		`{"type":"event","event":{"type":"tool_result","tool_use_id":"never-seen","content":"x"}}`,
	)

	transcript, err := Load(dir, "sess-1")
	require.NoError(t, err)
	require.Len(t, transcript.Interactions, 1)
	assert.Empty(t, transcript.Interactions[0].ToolCalls, "a result without a call never invents one")
}

func TestTruncateOutput(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}

	got := TruncateOutput(strings.Join(lines, "\n"))
	assert.Contains(t, got, "line 0")
	assert.Contains(t, got, "line 49")
	assert.Contains(t, got, "34 lines omitted")
	assert.NotContains(t, got, "line 20")

	short := "a\nb\nc"
	assert.Equal(t, short, TruncateOutput(short))
}

func TestTerminalFallback(t *testing.T) {
	dir := t.TempDir()
	capture := "\x1b[1mwelcome\x1b[0m\n" +
		"❯ ls -la\n\x1b[32mtotal 42\x1b[0m\nREADME.md\n" +
		"\n❯ echo done\ndone\n"
	testutil.WriteSessionFile(t, dir, "logs/terminal.log", []byte(capture))

	transcript, err := Load(dir, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, "terminal", transcript.Source)
	require.Len(t, transcript.Interactions, 2)
	assert.Equal(t, "ls -la", transcript.Interactions[0].UserText)
	assert.Contains(t, transcript.Interactions[0].Assistant, "total 42")
	assert.NotContains(t, transcript.Interactions[0].Assistant, "\x1b", "ANSI sequences are stripped")
	assert.Equal(t, "echo done", transcript.Interactions[1].UserText)
}

func TestRenderCollapsibleBlocks(t *testing.T) {
	dir := t.TempDir()
	writeMessages(t, dir,
		`{"type":"user","text":"do it"}`,
		`{"type":"event","event":{"type":"tool_start","tool_name":"Write","tool_use_id":"t1","tool_input":{"path":"a.txt"}}}`,
		`{"type":"event","event":{"type":"tool_result","tool_use_id":"t1","content":"wrote a.txt"}}`,
	)

	transcript, err := Load(dir, "sess-3")
	require.NoError(t, err)

	out := Render(transcript)
	assert.Contains(t, out, "## Interaction 1")
	assert.Contains(t, out, "**User:** do it")
	assert.Contains(t, out, "<summary>Tool: Write</summary>")
	assert.Contains(t, out, "wrote a.txt")
	assert.Equal(t, 1, strings.Count(out, "<details>"), "one collapsible block per tool call")
}

func TestLoadNoLogs(t *testing.T) {
	_, err := Load(t.TempDir(), "sess-4")
	require.Error(t, err)
}
