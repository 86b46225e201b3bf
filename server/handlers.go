package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/digestai/digestai/browser"
	"github.com/digestai/digestai/history"
	"github.com/digestai/digestai/research"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Digest AI API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type startResearchRequest struct {
	Topic       string `json:"topic"`
	MaxAnalysts int    `json:"max_analysts,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func researchStatus(err error) int {
	switch {
	case errors.Is(err, research.ErrEmptyTopic):
		return http.StatusBadRequest
	case errors.Is(err, research.ErrThreadNotFound):
		return http.StatusNotFound
	case errors.Is(err, research.ErrUnexpectedStage), errors.Is(err, research.ErrThreadExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) researchAvailable(w http.ResponseWriter) bool {
	if s.research == nil {
		writeError(w, http.StatusServiceUnavailable, "research assistant is not configured")
		return false
	}
	return true
}

func (s *Server) handleStartResearch(w http.ResponseWriter, r *http.Request) {
	if !s.researchAvailable(w) {
		return
	}
	var req startResearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MaxAnalysts < 0 {
		writeError(w, http.StatusBadRequest, "max_analysts must not be negative")
		return
	}

	snap, err := s.research.Start(r.Context(), req.Topic, research.StartOptions{
		ThreadID:    req.ThreadID,
		MaxAnalysts: req.MaxAnalysts,
	})
	if err != nil {
		writeError(w, researchStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleResearchState(w http.ResponseWriter, r *http.Request) {
	if !s.researchAvailable(w) {
		return
	}
	snap, err := s.research.State(r.Context(), mux.Vars(r)["thread"])
	if err != nil {
		writeError(w, researchStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteResearch(w http.ResponseWriter, r *http.Request) {
	if !s.researchAvailable(w) {
		return
	}
	if err := s.research.Delete(r.Context(), mux.Vars(r)["thread"]); err != nil {
		writeError(w, researchStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitFunc func(rs ResearchService, ctx context.Context, threadID, feedback string) (*research.Snapshot, error)

func (s *Server) handleTemplateFeedback(w http.ResponseWriter, r *http.Request) {
	s.handleFeedback(w, r, ResearchService.SubmitTemplateFeedback)
}

func (s *Server) handleAnalystFeedback(w http.ResponseWriter, r *http.Request) {
	s.handleFeedback(w, r, ResearchService.SubmitAnalystFeedback)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, submit submitFunc) {
	if !s.researchAvailable(w) {
		return
	}
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := submit(s.research, r.Context(), mux.Vars(r)["thread"], req.Feedback)
	if err != nil {
		writeError(w, researchStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if !s.researchAvailable(w) {
		return
	}
	snap, err := s.research.Resume(r.Context(), mux.Vars(r)["thread"])
	if err != nil {
		writeError(w, researchStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	if !s.researchAvailable(w) {
		return
	}
	snap, err := s.research.State(r.Context(), mux.Vars(r)["thread"])
	if err != nil {
		writeError(w, researchStatus(err), err.Error())
		return
	}

	md := snap.Report
	if md == "" && r.URL.Query().Get("part") == "template" {
		md = snap.Template
	}
	if md == "" {
		writeError(w, http.StatusConflict, "report is not ready")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(research.RenderHTML(md)))
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	if s.browse == nil {
		writeError(w, http.StatusServiceUnavailable, "browser automation is not configured")
		return
	}
	var task browser.Task
	if !decodeJSON(w, r, &task) {
		return
	}
	if err := task.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := s.browse.Stream(r.Context(), UserID(r.Context()), task, browser.NewNDJSONSink(w)); err != nil {
		logger.Warn("browse stream for %s ended: %v", UserID(r.Context()), err)
	}
}

func (s *Server) historyAvailable(w http.ResponseWriter) bool {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	limit, err := queryInt(r, "limit", history.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	page, err := s.history.List(r.Context(), UserID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	rec, err := s.history.Get(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "History entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if !s.historyAvailable(w) {
		return
	}
	err := s.history.Delete(r.Context(), UserID(r.Context()), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "History entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
