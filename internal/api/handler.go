package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"clicky-game/internal/metrics"
	"clicky-game/internal/model"
	"clicky-game/internal/service"
)

// LeaderboardService is the leaderboard logic the handlers call.
type LeaderboardService interface {
	Rows(ctx context.Context, limit int) ([]model.LeaderboardRow, error)
	Entry(ctx context.Context, name string) (*model.LeaderboardRow, error)
	SubmitScore(ctx context.Context, name string, score int64) (*model.LeaderboardRow, bool, error)
	Reset(ctx context.Context) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves the leaderboard endpoints.
type Handler struct {
	svc     LeaderboardService
	health  HealthChecker
	metrics *metrics.Metrics
}

// NewHandler creates a Handler. health and m may be nil.
func NewHandler(svc LeaderboardService, health HealthChecker, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, health: health, metrics: m}
}

type submitRequest struct {
	Name  *string `json:"name"`
	Score *int64  `json:"score"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// GetLeaderboard returns every entry ordered by score.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Rows(r.Context(), 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch leaderboard")
		writeError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetEntry returns the row for the name in the URL.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.Entry(r.Context(), chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, service.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid name")
		return
	case errors.Is(err, model.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "Entry not found")
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to fetch leaderboard entry")
		writeError(w, http.StatusInternalServerError, "Failed to fetch leaderboard entry")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// SubmitScore inserts a name or raises its score.
// Responds 201 for a new name and 200 otherwise, with the row in a one-element array.
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	if err := dec.Decode(&req); err != nil {
		h.countSubmission(metrics.SubmitInvalid)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == nil || req.Score == nil {
		h.countSubmission(metrics.SubmitInvalid)
		writeError(w, http.StatusBadRequest, "Invalid name or score")
		return
	}

	row, created, err := h.svc.SubmitScore(r.Context(), *req.Name, *req.Score)
	switch {
	case errors.Is(err, service.ErrInvalidName), errors.Is(err, service.ErrInvalidScore):
		h.countSubmission(metrics.SubmitInvalid)
		writeError(w, http.StatusBadRequest, "Invalid name or score")
		return
	case err != nil:
		h.countSubmission(metrics.SubmitError)
		log.Error().Err(err).Msg("Failed to submit score")
		writeError(w, http.StatusInternalServerError, "Failed to submit score")
		return
	}

	status := http.StatusOK
	result := metrics.SubmitUpdated
	if created {
		status = http.StatusCreated
		result = metrics.SubmitCreated
	}
	h.countSubmission(result)
	writeJSON(w, status, []model.LeaderboardRow{*row})
}

// ResetLeaderboard replaces the leaderboard with a fresh seed.
func (h *Handler) ResetLeaderboard(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Reset(r.Context())
	if h.metrics != nil {
		h.metrics.Reset(err == nil)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to reset leaderboard")
		writeError(w, http.StatusInternalServerError, "Failed to reset leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Leaderboard reset successfully"})
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.HealthCheck(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) countSubmission(result string) {
	if h.metrics != nil {
		h.metrics.Submission(result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
