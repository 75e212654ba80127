package headless

import (
	"context"
	"testing"
	"time"

	"github.com/grovetools/agentd/pkg/models"
	"github.com/grovetools/agentd/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan models.NormalizedEvent) []models.NormalizedEvent {
	t.Helper()

	var out []models.NormalizedEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestRunTurnStreamsEvents(t *testing.T) {
	script := testutil.StreamJSONAgent(
		`{"type":"system","subtype":"init","model":"test-model","session_id":"sess-1"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}`,
		`{"type":"result","result":"hello","session_id":"sess-1","total_cost_usd":0.01,"num_turns":1}`,
	)
	cfg := testutil.TestConfig(t, script)
	runner := NewRunner(cfg)

	ch, err := runner.RunTurn(context.Background(), TurnRequest{WorkDir: t.TempDir(), Prompt: "hi"})
	require.NoError(t, err)

	got := collect(t, ch)
	require.Len(t, got, 4)
	assert.Equal(t, models.EventInit, got[0].Type)
	assert.Equal(t, models.EventText, got[1].Type)
	assert.Equal(t, models.EventResult, got[2].Type)
	assert.Equal(t, "sess-1", got[2].ResumeToken)
	assert.Equal(t, models.EventDone, got[3].Type)
}

func TestRunTurnSynthesizesResult(t *testing.T) {
	// Clean exit without an explicit result record.
	script := testutil.StreamJSONAgent(
		`{"type":"system","subtype":"init","session_id":"sess-2"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}`,
	)
	cfg := testutil.TestConfig(t, script)
	runner := NewRunner(cfg)

	ch, err := runner.RunTurn(context.Background(), TurnRequest{WorkDir: t.TempDir(), Prompt: "hi"})
	require.NoError(t, err)

	got := collect(t, ch)
	require.NotEmpty(t, got)
	terminal := got[len(got)-2]
	assert.Equal(t, models.EventResult, terminal.Type)
	assert.Equal(t, "partial", terminal.Content)
	assert.Equal(t, "sess-2", terminal.ResumeToken)
	assert.Equal(t, models.EventDone, got[len(got)-1].Type)
}

func TestRunTurnMissingExecutable(t *testing.T) {
	cfg := testutil.TestConfig(t, "")
	cfg.Agent.Binary = "/nonexistent/agent-binary"
	runner := NewRunner(cfg)

	ch, err := runner.RunTurn(context.Background(), TurnRequest{WorkDir: t.TempDir(), Prompt: "hi"})
	require.NoError(t, err, "spawn failure must not surface as a returned error")

	got := collect(t, ch)
	require.Len(t, got, 2)
	assert.Equal(t, models.EventError, got[0].Type)
	assert.True(t, got[0].IsError)
	assert.Equal(t, models.EventDone, got[1].Type)
}

func TestRunTurnNonZeroExit(t *testing.T) {
	script := "echo 'boom' >&2\nexit 3"
	cfg := testutil.TestConfig(t, script)
	runner := NewRunner(cfg)

	ch, err := runner.RunTurn(context.Background(), TurnRequest{WorkDir: t.TempDir(), Prompt: "hi"})
	require.NoError(t, err)

	got := collect(t, ch)
	require.NotEmpty(t, got)
	var errEv *models.NormalizedEvent
	for i := range got {
		if got[i].Type == models.EventError {
			errEv = &got[i]
		}
	}
	require.NotNil(t, errEv, "expected an error event")
	assert.Contains(t, errEv.Content, "boom")
}

func TestRunTurnCancellation(t *testing.T) {
	script := "sleep 30"
	cfg := testutil.TestConfig(t, script)
	runner := NewRunner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := runner.RunTurn(ctx, TurnRequest{WorkDir: t.TempDir(), Prompt: "hi"})
	require.NoError(t, err)

	cancel()

	// The channel must close promptly; the process group is killed.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after cancellation")
		}
	}
}

func TestRunTurnResultThenNonZeroExit(t *testing.T) {
	// The agent reports a result and only then dies; the exit status must
	// not produce a second terminal event.
	script := testutil.StreamJSONAgent(
		`{"type":"result","result":"partial","session_id":"sess-9","total_cost_usd":0.02,"num_turns":1}`,
	) + "exit 2\n"
	cfg := testutil.TestConfig(t, script)
	runner := NewRunner(cfg)

	ch, err := runner.RunTurn(context.Background(), TurnRequest{WorkDir: t.TempDir(), Prompt: "hi"})
	require.NoError(t, err)

	got := collect(t, ch)
	var terminals []models.NormalizedEvent
	for _, ev := range got {
		if ev.Terminal() {
			terminals = append(terminals, ev)
		}
	}
	require.Len(t, terminals, 1)
	assert.Equal(t, models.EventResult, terminals[0].Type)
	assert.Equal(t, models.EventDone, got[len(got)-1].Type)
}
