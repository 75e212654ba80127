package events

import (
	"testing"

	"github.com/grovetools/agentd/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineOrdering(t *testing.T) {
	lines := []string{
		`{"type":"system","subtype":"init","model":"test-model","session_id":"abc-123"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"a"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"1","name":"Read","input":{"path":"x"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"1","content":"ok"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"b"}]}}`,
		`{"type":"result","result":"done","session_id":"abc-123","total_cost_usd":0.01,"num_turns":1}`,
	}

	var got []models.NormalizedEvent
	for _, line := range lines {
		got = append(got, ParseLine([]byte(line))...)
	}

	wantTypes := []models.EventType{
		models.EventInit,
		models.EventText,
		models.EventToolStart,
		models.EventToolResult,
		models.EventText,
		models.EventResult,
	}
	require.Len(t, got, len(wantTypes))
	for i, want := range wantTypes {
		assert.Equal(t, want, got[i].Type, "event %d", i)
	}

	terminals := 0
	for _, ev := range got {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event")

	assert.Equal(t, "a", got[1].Text)
	assert.Equal(t, "1", got[2].ToolUseID)
	assert.Equal(t, "1", got[3].ToolUseID)
	assert.Equal(t, "b", got[4].Text)
	assert.Equal(t, "abc-123", got[5].ResumeToken)
}

func TestParseLineUnknownKindsDropped(t *testing.T) {
	assert.Nil(t, ParseLine([]byte(`{"type":"ping"}`)))
	assert.Nil(t, ParseLine([]byte(`{"type":"content_block_stop","index":0}`)))
	assert.Nil(t, ParseLine([]byte(`{"type":"system","subtype":"compacting"}`)))
}

func TestParseLineMalformedBecomesText(t *testing.T) {
	got := ParseLine([]byte("not json at all"))
	require.Len(t, got, 1)
	assert.Equal(t, models.EventText, got[0].Type)
	assert.Equal(t, "not json at all", got[0].Text)

	assert.Nil(t, ParseLine([]byte("   \n")))
}

func TestParseLineFlattensToolResultBlocks(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t9","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}],"is_error":true}]}}`
	got := ParseLine([]byte(line))
	require.Len(t, got, 1)
	assert.Equal(t, models.EventToolResult, got[0].Type)
	assert.Equal(t, "line one\nline two", got[0].Content)
	assert.True(t, got[0].IsError)
}

func TestParseLineUserEchoDropped(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"text","text":"hello"}]}}`
	assert.Nil(t, ParseLine([]byte(line)))
}

func TestParseLineTextConcatenatedInDocumentOrder(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"first "},{"type":"text","text":"second"},{"type":"tool_use","id":"t1","name":"Bash","input":{}},{"type":"text","text":"third"}]}}`
	got := ParseLine([]byte(line))
	require.Len(t, got, 3)
	assert.Equal(t, "first second", got[0].Text)
	assert.Equal(t, models.EventToolStart, got[1].Type)
	assert.Equal(t, "third", got[2].Text)
}

func TestParseLineSDKStream(t *testing.T) {
	init := ParseLine([]byte(`{"type":"message_start","message":{"model":"test-model","usage":{"input_tokens":10,"output_tokens":0}}}`))
	require.Len(t, init, 1)
	assert.Equal(t, models.EventInit, init[0].Type)
	assert.Equal(t, "test-model", init[0].Model)
	require.NotNil(t, init[0].Usage)
	assert.Equal(t, 10, init[0].Usage.InputTokens)

	textDelta := ParseLine([]byte(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}`))
	require.Len(t, textDelta, 1)
	assert.Equal(t, models.EventTextDelta, textDelta[0].Type)
	assert.Equal(t, "hi", textDelta[0].Text)

	thinkingDelta := ParseLine([]byte(`{"type":"content_block_delta","delta":{"type":"thinking_delta","thinking":"hmm"}}`))
	require.Len(t, thinkingDelta, 1)
	assert.Equal(t, models.EventThinkingDelta, thinkingDelta[0].Type)

	toolStart := ParseLine([]byte(`{"type":"content_block_start","content_block":{"type":"tool_use","id":"t2","name":"Grep"}}`))
	require.Len(t, toolStart, 1)
	assert.Equal(t, models.EventToolStart, toolStart[0].Type)
	assert.Equal(t, "t2", toolStart[0].ToolUseID)

	done := ParseLine([]byte(`{"type":"message_stop"}`))
	require.Len(t, done, 1)
	assert.Equal(t, models.EventDone, done[0].Type)
}

func TestAccumulator(t *testing.T) {
	var acc Accumulator

	acc.Observe(models.NormalizedEvent{Type: models.EventInit, Model: "m", ResumeToken: "r1"})
	acc.Observe(models.NormalizedEvent{Type: models.EventText, Text: "hello ", Usage: &models.Usage{InputTokens: 5}})
	acc.Observe(models.NormalizedEvent{Type: models.EventToolStart, ToolName: "Bash"})
	acc.Observe(models.NormalizedEvent{Type: models.EventTextDelta, Text: "world"})
	acc.Observe(models.NormalizedEvent{
		Type: models.EventResult, ResumeToken: "r2", CostUSD: 0.02, NumTurns: 1,
		Usage: &models.Usage{InputTokens: 7, OutputTokens: 3},
	})

	assert.Equal(t, "hello world", acc.Text())
	assert.Equal(t, []string{"Bash"}, acc.ToolsUsed)
	assert.Equal(t, "r2", acc.ResumeToken)
	assert.Equal(t, 12, acc.Usage.InputTokens, "usage accumulates additively")
	assert.Equal(t, 3, acc.Usage.OutputTokens)
	assert.Equal(t, 0.02, acc.CostUSD)
	assert.True(t, acc.SawTerminal())

	result := acc.Result()
	assert.Equal(t, models.EventResult, result.Type)
	assert.Equal(t, "hello world", result.Content)
	assert.False(t, result.IsError)
}
