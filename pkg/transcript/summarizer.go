package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/agentd/config"
	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/logging"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	summaryFile     = "summary.json"
	maxExcerptChars = 12000
)

// Engine produces a free-form completion for a summarization prompt.
// Implementations bound their own subprocess lifetime to the context.
type Engine interface {
	Summarize(ctx context.Context, workdir, prompt string) (string, error)
}

// Summarizer turns transcripts into fixed-shape summaries. Every call
// produces a summary: when the engine is missing, times out, errors, or
// returns garbage, the metadata fallback path takes over and records the
// reason as the first key finding.
type Summarizer struct {
	cfg    *config.Config
	engine Engine
	log    *logrus.Entry
}

// NewSummarizer builds a summarizer. engine may be nil; the fallback path
// then handles every request.
func NewSummarizer(cfg *config.Config, engine Engine) *Summarizer {
	return &Summarizer{
		cfg:    cfg,
		engine: engine,
		log:    logging.NewLogger("summarizer"),
	}
}

// Summarize renders the session transcript, produces a summary, and caches
// it at output/summary.json.
func (s *Summarizer) Summarize(ctx context.Context, sessionDir, sessionID string) (*models.Summary, error) {
	rendered := ""
	if t, err := Load(sessionDir, sessionID); err == nil {
		rendered = Render(t)
	}

	var summary *models.Summary
	switch {
	case len(rendered) < s.cfg.Summarizer.MinTranscriptChars:
		summary = s.fallback(sessionDir, sessionID, "transcript below minimum length for summarization")
	case s.engine == nil:
		summary = s.fallback(sessionDir, sessionID, "summarization engine unavailable")
	default:
		summary = s.summarizeWithEngine(ctx, sessionDir, sessionID, rendered)
	}

	summary.GeneratedAt = time.Now()
	if err := s.save(sessionDir, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// Cached re-reads a previously produced summary without recomputation.
func (s *Summarizer) Cached(sessionDir string) (*models.Summary, error) {
	path := filepath.Join(sessionDir, "output", summaryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read cached summary")
	}

	var summary models.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to parse cached summary").
			WithDetail("path", path)
	}
	return &summary, nil
}

func (s *Summarizer) summarizeWithEngine(ctx context.Context, sessionDir, sessionID, rendered string) *models.Summary {
	timeout := time.Duration(s.cfg.Summarizer.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := buildPrompt(excerpt(rendered))
	raw, err := s.engine.Summarize(ctx, sessionDir, prompt)
	if err != nil {
		reason := fmt.Sprintf("summarization failed: %v", err)
		if ctx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("summarization timed out after %s", timeout)
		}
		s.log.WithError(err).WithField("session_id", sessionID).Warn("Falling back to metadata summary")
		return s.fallback(sessionDir, sessionID, reason)
	}

	summary, err := parseSummaryJSON(raw)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("Engine output unparsable")
		return s.fallback(sessionDir, sessionID, "summarization output was not valid JSON")
	}

	summary.Method = models.SummaryMethodAI
	return summary
}

// fallback derives a summary from directory scanning and log statistics
// alone.
func (s *Summarizer) fallback(sessionDir, sessionID, reason string) *models.Summary {
	summary := &models.Summary{
		Title:       fmt.Sprintf("Session %s", shortID(sessionID)),
		KeyFindings: []string{reason},
		Method:      models.SummaryMethodFallback,
	}

	dataDir := filepath.Join(sessionDir, "data")
	_ = filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dataDir, path)
		if relErr != nil {
			return nil
		}
		summary.FilesCreated = append(summary.FilesCreated, rel)
		return nil
	})

	if first, last, ok := logTimeBounds(filepath.Join(sessionDir, "logs", "messages.jsonl")); ok {
		summary.DurationEstimate = last.Sub(first).Round(time.Second).String()
	}

	return summary
}

func (s *Summarizer) save(sessionDir string, summary *models.Summary) error {
	dir := filepath.Join(sessionDir, "output")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create output directory")
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode summary")
	}
	if err := os.WriteFile(filepath.Join(dir, summaryFile), data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write summary cache")
	}
	return nil
}

// parseSummaryJSON tolerates direct JSON, JSON inside a fenced code block,
// and JSON embedded in surrounding noise (first '{' to last '}').
func parseSummaryJSON(raw string) (*models.Summary, error) {
	candidates := []string{strings.TrimSpace(raw)}

	if fenced := extractFenced(raw); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		candidates = append(candidates, raw[start:end+1])
	}

	var lastErr error
	for _, candidate := range candidates {
		var summary models.Summary
		if err := json.Unmarshal([]byte(candidate), &summary); err != nil {
			lastErr = err
			continue
		}
		if summary.Title == "" {
			lastErr = fmt.Errorf("summary has no title")
			continue
		}
		return &summary, nil
	}
	return nil, lastErr
}

func extractFenced(raw string) string {
	start := strings.Index(raw, "```")
	if start < 0 {
		return ""
	}
	rest := raw[start+3:]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

func buildPrompt(excerpt string) string {
	return fmt.Sprintf(`Summarize this agent session transcript. Respond with ONLY a JSON object, no prose, matching exactly:
{"title": string, "key_findings": [string], "files_created": [string], "files_modified": [string], "tools_used": [string], "duration_estimate": string}

Transcript:
%s`, excerpt)
}

// excerpt bounds the transcript fed to the engine, keeping head and tail.
func excerpt(s string) string {
	if len(s) <= maxExcerptChars {
		return s
	}
	half := maxExcerptChars / 2
	return s[:half] + "\n... transcript truncated ...\n" + s[len(s)-half:]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func logTimeBounds(path string) (first, last time.Time, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec models.LogRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Timestamp.IsZero() {
			continue
		}
		if !ok {
			first = rec.Timestamp
			ok = true
		}
		last = rec.Timestamp
	}
	return
}
