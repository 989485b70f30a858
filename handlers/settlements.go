// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/votingday/kiosk/middleware"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/store"
)

// SettlementQueue is the operator view of the deferred settlement queue.
type SettlementQueue interface {
	Summaries(ctx context.Context, status string) ([]models.SettlementJobSummary, error)
	Retry(ctx context.Context, id string) (models.SettlementJobSummary, error)
}

// SettlementHandler serves the operator endpoints. Routes are wrapped in
// middleware.RequireAdmin.
type SettlementHandler struct {
	queue SettlementQueue
}

func NewSettlementHandler(q SettlementQueue) *SettlementHandler {
	return &SettlementHandler{queue: q}
}

// List handles GET /admin/settlements?status=
func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.JobPending, models.JobSettled, models.JobFailed:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be one of: pending, settled, failed")
		return
	}

	jobs, err := h.queue.Summaries(r.Context(), status)
	if err != nil {
		slog.Error("failed to list settlements", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SettlementJobListResponse{Jobs: jobs})
}

// Retry handles POST /admin/settlements/{id}/retry
// Only failed jobs can be re-armed
func (h *SettlementHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := h.queue.Retry(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Settlement not found")
		return
	}
	if errors.Is(err, store.ErrConflict) {
		middleware.ErrorResponse(w, http.StatusConflict, "Only failed settlements can be retried")
		return
	}
	if err != nil {
		slog.Error("failed to retry settlement", "error", err, "job_id", id)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	slog.Info("settlement retry requested", "job_id", id)
	middleware.JSONResponse(w, http.StatusOK, job)
}
