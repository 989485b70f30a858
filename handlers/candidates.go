// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/votingday/kiosk/middleware"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/store"
)

// CandidateHandler serves the public ballot. Only completed candidates are
// ever returned, and tallies change only through a recorded vote.
type CandidateHandler struct {
	store store.Identity
}

func NewCandidateHandler(s store.Identity) *CandidateHandler {
	return &CandidateHandler{store: s}
}

// List handles GET /candidates
func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.store.ListEligibleCandidates(r.Context())
	if err != nil {
		slog.Error("failed to list candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	data := make([]models.CandidateSummary, 0, len(candidates))
	for i := range candidates {
		data = append(data, candidates[i].Summary())
	}

	middleware.JSONResponse(w, http.StatusOK, models.CandidateListResponse{
		Success: true,
		Data:    data,
	})
}

// Get handles GET /candidates/{id}
func (h *CandidateHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeEligibleCandidate(w, r, h.store, r.PathValue("id"))
}

func writeEligibleCandidate(w http.ResponseWriter, r *http.Request, s store.Identity, id string) {
	candidate, err := s.FindCandidateByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}
	if err != nil {
		slog.Error("failed to find candidate", "error", err, "candidate_id", id)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Candidates still registering are not on the ballot
	if !candidate.Eligible() {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CandidateResponse{
		Success: true,
		Data:    candidate.Summary(),
	})
}
