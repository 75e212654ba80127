// Package transcript renders a session's durable logs into a readable
// transcript and produces structured summaries. It operates purely on
// recorded data and never touches a live process.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/pkg/models"
)

const (
	maxToolOutputLines = 20
	truncateHeadLines  = 8
	truncateTailLines  = 8

	inputMarker = "❯ "
)

// Load renders the session's transcript, preferring the structured message
// log and falling back to the raw terminal capture.
func Load(sessionDir, sessionID string) (*models.Transcript, error) {
	messagesPath := filepath.Join(sessionDir, "logs", "messages.jsonl")
	if _, err := os.Stat(messagesPath); err == nil {
		return parseMessages(messagesPath, sessionID)
	}

	terminalPath := filepath.Join(sessionDir, "logs", "terminal.log")
	if _, err := os.Stat(terminalPath); err == nil {
		return parseTerminal(terminalPath, sessionID)
	}

	return nil, errors.New(errors.ErrCodeInvalidInput, "session has no transcript logs").
		WithDetail("session_id", sessionID)
}

// parseMessages streams logs/messages.jsonl. Tool results attach to their
// originating call by tool_use_id instead of rendering as separate turns;
// only genuine user free-text opens a numbered interaction.
func parseMessages(path, sessionID string) (*models.Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to open message log")
	}
	defer file.Close()

	transcript := &models.Transcript{SessionID: sessionID, Source: "messages"}

	// Maps a tool_use_id to its call's position so a later result can be
	// attached in place.
	type callRef struct{ interaction, call int }
	pending := make(map[string]callRef)

	var current *models.Interaction
	flush := func() {
		if current == nil {
			return
		}
		transcript.Interactions = append(transcript.Interactions, *current)
		current = nil
		// Open call refs now point into the flushed interaction.
		idx := len(transcript.Interactions) - 1
		for id, ref := range pending {
			if ref.interaction == -1 {
				ref.interaction = idx
				pending[id] = ref
			}
		}
	}
	ensure := func() *models.Interaction {
		if current == nil {
			current = &models.Interaction{Index: len(transcript.Interactions) + 1}
		}
		return current
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec models.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Skip malformed lines
			continue
		}

		switch rec.Type {
		case models.LogRecordUser:
			flush()
			inter := ensure()
			inter.UserText = rec.Text
			inter.Timestamp = rec.Timestamp

		case models.LogRecordEvent:
			if rec.Event == nil {
				continue
			}
			ev := rec.Event
			switch ev.Type {
			case models.EventText, models.EventTextDelta:
				ensure().Assistant += ev.Text
			case models.EventThinking, models.EventThinkingDelta:
				ensure().Thinking += ev.Text
			case models.EventToolStart:
				inter := ensure()
				inter.ToolCalls = append(inter.ToolCalls, models.ToolCall{
					ID:    ev.ToolUseID,
					Name:  ev.ToolName,
					Input: formatInput(ev.ToolInput),
				})
				if ev.ToolUseID != "" {
					pending[ev.ToolUseID] = callRef{
						interaction: -1, // still open
						call:        len(inter.ToolCalls) - 1,
					}
				}
			case models.EventToolResult:
				ref, ok := pending[ev.ToolUseID]
				if !ok {
					// No matching call; never invent one.
					continue
				}
				var call *models.ToolCall
				if ref.interaction >= 0 {
					call = &transcript.Interactions[ref.interaction].ToolCalls[ref.call]
				} else if current != nil && ref.call < len(current.ToolCalls) {
					call = &current.ToolCalls[ref.call]
				}
				if call != nil {
					call.Output = TruncateOutput(ev.Content)
					call.IsError = ev.IsError
					call.Resolved = true
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read message log")
	}
	flush()

	return transcript, nil
}

var (
	ansiRegex    = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// parseTerminal is the fallback path for interactive sessions that only
// have a raw capture: ANSI sequences stripped, control characters removed,
// sections split on the input-marker convention.
func parseTerminal(path, sessionID string) (*models.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read terminal log")
	}

	clean := ansiRegex.ReplaceAllString(string(data), "")
	clean = strings.ReplaceAll(clean, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")
	clean = controlRegex.ReplaceAllString(clean, "")

	transcript := &models.Transcript{SessionID: sessionID, Source: "terminal"}

	sections := strings.Split(clean, "\n"+inputMarker)
	// Anything before the first input marker is startup noise.
	if strings.HasPrefix(clean, inputMarker) {
		sections[0] = strings.TrimPrefix(sections[0], inputMarker)
	} else if len(sections) > 0 {
		sections = sections[1:]
	}

	for _, section := range sections {
		lines := strings.SplitN(section, "\n", 2)
		input := strings.TrimSpace(lines[0])
		output := ""
		if len(lines) > 1 {
			output = strings.TrimSpace(lines[1])
		}
		if input == "" && output == "" {
			continue
		}
		transcript.Interactions = append(transcript.Interactions, models.Interaction{
			Index:     len(transcript.Interactions) + 1,
			UserText:  input,
			Assistant: output,
		})
	}

	return transcript, nil
}

// Render produces the human-readable markdown form of a transcript. Each
// tool call renders as one collapsible block holding the call input and,
// when resolved, its truncated output.
func Render(t *models.Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n", t.SessionID)

	for _, inter := range t.Interactions {
		fmt.Fprintf(&b, "\n## Interaction %d\n\n", inter.Index)
		if inter.UserText != "" {
			fmt.Fprintf(&b, "**User:** %s\n\n", inter.UserText)
		}
		if inter.Thinking != "" {
			fmt.Fprintf(&b, "<details>\n<summary>Thinking</summary>\n\n%s\n\n</details>\n\n", inter.Thinking)
		}
		if inter.Assistant != "" {
			fmt.Fprintf(&b, "%s\n\n", inter.Assistant)
		}
		for _, call := range inter.ToolCalls {
			status := ""
			if call.IsError {
				status = " (error)"
			}
			fmt.Fprintf(&b, "<details>\n<summary>Tool: %s%s</summary>\n\n", call.Name, status)
			if call.Input != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n", call.Input)
			}
			if call.Resolved && call.Output != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", call.Output)
			}
			b.WriteString("\n</details>\n\n")
		}
	}

	return b.String()
}

// TruncateOutput bounds tool output to a small number of lines, keeping
// head and tail around an explicit omission marker.
func TruncateOutput(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxToolOutputLines {
		return s
	}

	omitted := len(lines) - truncateHeadLines - truncateTailLines
	out := make([]string, 0, truncateHeadLines+truncateTailLines+1)
	out = append(out, lines[:truncateHeadLines]...)
	out = append(out, fmt.Sprintf("... %d lines omitted ...", omitted))
	out = append(out, lines[len(lines)-truncateTailLines:]...)
	return strings.Join(out, "\n")
}

func formatInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var pretty map[string]interface{}
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return string(raw)
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(data)
}
