package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/application/command"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/application/query"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY QUESTION HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDailyQuestion handles GET /api/questions/daily
func (s *Server) handleGetDailyQuestion(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDailyContentHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Daily content handler not configured")
		return
	}

	q := query.GetDailyContentQuery{
		UserID: r.URL.Query().Get("user_id"),
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := timeutil.ParseDate(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "date must be formatted as 2006-01-02")
			return
		}
		q.Date = date
	}

	result, err := s.deps.GetDailyContentHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get daily question")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// submitAnswerRequest is the POST /api/answers body.
type submitAnswerRequest struct {
	ContentID       string `json:"content_id"`
	UserID          string `json:"user_id"`
	Answer          string `json:"answer"`
	DurationSeconds int    `json:"duration_seconds"`
}

// handleSubmitAnswer handles POST /api/answers
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitAnswerHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Submit handler not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req submitAnswerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.SubmitAnswerHandler.Handle(r.Context(), command.SubmitAnswerCommand{
		ContentID:       req.ContentID,
		UserID:          req.UserID,
		Answer:          req.Answer,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to submit answer")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REFLECTION OVERVIEW HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleReflectionOverview handles GET /api/reflections/overview
func (s *Server) handleReflectionOverview(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetReflectionOverviewHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Overview handler not configured")
		return
	}

	q := query.GetReflectionOverviewQuery{
		UserID: r.URL.Query().Get("user_id"),
	}
	if raw := r.URL.Query().Get("tz_offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "tz_offset must be an integer number of minutes")
			return
		}
		q.TZOffsetMinutes = offset
	}

	result, err := s.deps.GetReflectionOverviewHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get reflection overview")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps a domain error to its HTTP status and body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "Content not found")
	case shared.IsDuplicate(err):
		writeJSONError(w, http.StatusConflict, "already_answered", "This item has already been answered")
	case errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsExternalService(err):
		// Evaluation failures leave no partial state; the caller may retry.
		writeJSONError(w, http.StatusBadGateway, "evaluation_unavailable", "Scoring temporarily unavailable, safe to retry")
	default:
		s.logger.Error(logMsg, logger.Err(err), logger.String("request_id", getRequestID(r.Context())))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
