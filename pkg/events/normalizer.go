// Package events converts the agent CLI's structured streaming output into
// the internal normalized event taxonomy.
//
// Two upstream schemas are handled: the stream-json wrapper emitted by
// `--output-format stream-json` ({type: system|assistant|user|result}) and
// the finer-grained SDK stream events ({type: message_start |
// content_block_start | content_block_delta | ...}). Unknown record kinds
// are dropped. Lines that are not JSON at all are surfaced as plain text.
package events

import (
	"encoding/json"
	"strings"

	"github.com/grovetools/agentd/pkg/models"
)

// contentBlock mirrors the agent's content block shape.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// streamLine is a parsed NDJSON line covering both upstream schemas.
type streamLine struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Model     string          `json:"model,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`

	// result fields
	Result       string        `json:"result,omitempty"`
	IsError      bool          `json:"is_error,omitempty"`
	TotalCostUSD float64       `json:"total_cost_usd,omitempty"`
	NumTurns     int           `json:"num_turns,omitempty"`
	Usage        *models.Usage `json:"usage,omitempty"`

	// SDK stream event fields
	ContentBlock *contentBlock   `json:"content_block,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
}

type sdkMessage struct {
	Model string        `json:"model,omitempty"`
	Usage *models.Usage `json:"usage,omitempty"`
}

type parsedMessage struct {
	Content []contentBlock `json:"content"`
	Model   string         `json:"model,omitempty"`
	Usage   *models.Usage  `json:"usage,omitempty"`
}

type sdkDelta struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// ParseLine converts one upstream output line into zero or more normalized
// events. It is stateless; callers that need running totals feed the
// returned events through an Accumulator.
func ParseLine(line []byte) []models.NormalizedEvent {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}

	var raw streamLine
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		// Not a protocol line. Surface it as plain text rather than
		// aborting the stream.
		return []models.NormalizedEvent{{Type: models.EventText, Text: trimmed}}
	}

	switch raw.Type {
	case "system":
		return parseSystem(raw)
	case "assistant":
		return parseAssistant(raw)
	case "user":
		return parseUser(raw)
	case "result":
		return parseResult(raw)
	case "message_start":
		return parseMessageStart(raw)
	case "content_block_start":
		return parseBlockStart(raw)
	case "content_block_delta":
		return parseBlockDelta(raw)
	case "message_stop":
		return []models.NormalizedEvent{{Type: models.EventDone}}
	default:
		// Unknown kinds (content_block_stop, message_delta, ping, ...)
		// are dropped.
		return nil
	}
}

func parseSystem(raw streamLine) []models.NormalizedEvent {
	if raw.Subtype != "init" {
		return nil
	}
	return []models.NormalizedEvent{{
		Type:        models.EventInit,
		Model:       raw.Model,
		ResumeToken: raw.SessionID,
	}}
}

func parseAssistant(raw streamLine) []models.NormalizedEvent {
	var msg parsedMessage
	if err := json.Unmarshal(raw.Message, &msg); err != nil {
		return nil
	}

	var out []models.NormalizedEvent
	var text, thinking strings.Builder

	flush := func() {
		if thinking.Len() > 0 {
			out = append(out, models.NormalizedEvent{Type: models.EventThinking, Text: thinking.String()})
			thinking.Reset()
		}
		if text.Len() > 0 {
			out = append(out, models.NormalizedEvent{Type: models.EventText, Text: text.String()})
			text.Reset()
		}
	}

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		case "tool_use":
			flush()
			out = append(out, models.NormalizedEvent{
				Type:      models.EventToolStart,
				ToolName:  block.Name,
				ToolUseID: block.ID,
				ToolInput: block.Input,
			})
		}
	}
	flush()

	if msg.Usage != nil && len(out) > 0 {
		out[len(out)-1].Usage = msg.Usage
	}
	return out
}

func parseUser(raw streamLine) []models.NormalizedEvent {
	var msg parsedMessage
	if err := json.Unmarshal(raw.Message, &msg); err != nil {
		return nil
	}

	var out []models.NormalizedEvent
	for _, block := range msg.Content {
		if block.Type != "tool_result" {
			// The user record is the prompt echo; only tool results
			// carry new information.
			continue
		}
		out = append(out, models.NormalizedEvent{
			Type:      models.EventToolResult,
			ToolUseID: block.ToolUseID,
			Content:   flattenContent(block.Content),
			IsError:   block.IsError,
		})
	}
	return out
}

func parseResult(raw streamLine) []models.NormalizedEvent {
	return []models.NormalizedEvent{{
		Type:        models.EventResult,
		Content:     raw.Result,
		IsError:     raw.IsError,
		CostUSD:     raw.TotalCostUSD,
		NumTurns:    raw.NumTurns,
		ResumeToken: raw.SessionID,
		Usage:       raw.Usage,
	}}
}

func parseMessageStart(raw streamLine) []models.NormalizedEvent {
	var msg sdkMessage
	if len(raw.Message) > 0 {
		if err := json.Unmarshal(raw.Message, &msg); err != nil {
			return nil
		}
	}
	return []models.NormalizedEvent{{
		Type:  models.EventInit,
		Model: msg.Model,
		Usage: msg.Usage,
	}}
}

func parseBlockStart(raw streamLine) []models.NormalizedEvent {
	if raw.ContentBlock == nil {
		return nil
	}
	switch raw.ContentBlock.Type {
	case "tool_use":
		return []models.NormalizedEvent{{
			Type:      models.EventToolStart,
			ToolName:  raw.ContentBlock.Name,
			ToolUseID: raw.ContentBlock.ID,
			ToolInput: raw.ContentBlock.Input,
		}}
	case "text":
		if raw.ContentBlock.Text != "" {
			return []models.NormalizedEvent{{Type: models.EventTextDelta, Text: raw.ContentBlock.Text}}
		}
	}
	return nil
}

func parseBlockDelta(raw streamLine) []models.NormalizedEvent {
	var delta sdkDelta
	if err := json.Unmarshal(raw.Delta, &delta); err != nil {
		return nil
	}
	switch delta.Type {
	case "text_delta":
		return []models.NormalizedEvent{{Type: models.EventTextDelta, Text: delta.Text}}
	case "thinking_delta":
		return []models.NormalizedEvent{{Type: models.EventThinkingDelta, Text: delta.Thinking}}
	}
	return nil
}

// flattenContent renders a tool_result content payload as one string. The
// payload is either a bare string or a list of content blocks; block lists
// are flattened to newline-joined text in document order.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}

	return string(raw)
}
