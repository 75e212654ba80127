package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/pkg/models"
	"github.com/grovetools/agentd/pkg/registry"
	"github.com/grovetools/agentd/pkg/transcript"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RunningStatus{
		PID:          os.Getpid(),
		SessionsRoot: s.cfg.Sessions.Root,
		AgentBinary:  s.cfg.Agent.Binary,
		StartedAt:    s.startedAt,
	})
}

type createSessionRequest struct {
	Owner  string                `json:"owner"`
	Kind   models.SessionKind    `json:"kind"`
	Title  string                `json:"title,omitempty"`
	Policy *models.SandboxPolicy `json:"policy,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}
	if req.Kind == "" {
		req.Kind = models.KindHeadless
	}

	session, err := s.registry.Create(req.Owner, req.Kind, registry.CreateOptions{
		Title:  req.Title,
		Policy: req.Policy,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ListFilter{
		Kind:            models.SessionKind(q.Get("kind")),
		Status:          models.SessionStatus(q.Get("status")),
		IncludeArchived: q.Get("archived") == "true",
	}

	sessions, err := s.registry.List(q.Get("owner"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type updateSessionRequest struct {
	Title  *string               `json:"title,omitempty"`
	Status *models.SessionStatus `json:"status,omitempty"`
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}

	id := r.PathValue("id")
	if err := s.registry.Update(id, registry.UpdateFields{
		Title:  req.Title,
		Status: req.Status,
	}); err != nil {
		writeError(w, err)
		return
	}

	session, err := s.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.dropRelay(id)
	if err := s.registry.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.dropRelay(id)
	if err := s.registry.Archive(id); err != nil {
		writeError(w, err)
		return
	}
	session, err := s.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type sendTurnRequest struct {
	Message string `json:"message"`
}

// handleSendTurn runs one headless turn and streams the normalized events
// back as Server-Sent Events. The request context is passed through to the
// runner, so a client disconnect cancels the turn; the registry still
// drains the event stream and finishes its bookkeeping.
func (s *Server) handleSendTurn(w http.ResponseWriter, r *http.Request) {
	var req sendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}
	if req.Message == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "message must not be empty"))
		return
	}

	events, err := s.registry.SendTurn(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.WithError(err).Error("Failed to marshal event")
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dir, err := s.registry.SessionDir(id)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := transcript.Load(dir, id)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, t)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(transcript.Render(t)))
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		http.Error(w, "summarizer not initialized", http.StatusServiceUnavailable)
		return
	}

	dir, err := s.registry.SessionDir(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := s.summarizer.Cached(dir)
	if err != nil {
		writeError(w, err)
		return
	}
	if summary == nil {
		writeError(w, errors.New(errors.ErrCodeSessionNotFound, "no summary generated for session"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	if s.summarizer == nil {
		http.Error(w, "summarizer not initialized", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	dir, err := s.registry.SessionDir(id)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), dir, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeSessionNotFound, errors.ErrCodeAgentNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeSessionBusy, errors.ErrCodeSessionClosed:
		status = http.StatusConflict
	case errors.ErrCodeInvalidInput, errors.ErrCodeContainment:
		status = http.StatusBadRequest
	}

	resp := errorResponse{Error: string(code), Message: err.Error()}
	if aerr, ok := err.(*errors.AgentdError); ok {
		resp.Message = aerr.Message
		resp.Details = aerr.Details
	}
	writeJSON(w, status, resp)
}
