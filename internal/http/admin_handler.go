package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_pos/internal/admin"
	"github.com/fjod/go_pos/internal/backend"
	"go.uber.org/zap"
)

type Reports interface {
	Summary(ctx context.Context) admin.Summary
	History(ctx context.Context, limit int) []backend.HistoryEntry
	Reset(ctx context.Context, name string) error
}

type AdminHandler struct {
	reports Reports
	timeout time.Duration
	logger  *zap.Logger
}

func NewAdminHandler(reports Reports, timeout time.Duration, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		reports: reports,
		timeout: timeout,
		logger:  logger,
	}
}

type ResetRequestDTO struct {
	Name string `json:"name"`
}

type HistoryResponseDTO struct {
	Entries []backend.HistoryEntry `json:"entries"`
}

// GET /api/v1/admin/summary
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, h.logger, http.StatusOK, h.reports.Summary(ctx))
}

// GET /api/v1/admin/history?limit=N
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, h.logger, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	respondJSON(w, h.logger, http.StatusOK, HistoryResponseDTO{Entries: h.reports.History(ctx, limit)})
}

// POST /api/v1/admin/reset
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ResetRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.reports.Reset(ctx, req.Name); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
