// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/votingday/kiosk/auth"
	"github.com/votingday/kiosk/middleware"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/store"
	"github.com/votingday/kiosk/voting"
)

type VoterHandler struct {
	store    store.Identity
	protocol *voting.Protocol
}

func NewVoterHandler(s store.Identity, protocol *voting.Protocol) *VoterHandler {
	return &VoterHandler{store: s, protocol: protocol}
}

// VerifyRFID handles POST /voters/verify-rfid
func (h *VoterHandler) VerifyRFID(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRFIDRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.RFIDTag == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "rfidTag is required")
		return
	}

	voter, err := h.store.FindVoterByTag(r.Context(), req.RFIDTag)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Voter not found")
		return
	}
	if err != nil {
		slog.Error("failed to find voter by tag", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if voter.HasVoted {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Voter has already voted")
		return
	}

	slog.Info("rfid verified", "voter_id", voter.ID)

	middleware.JSONResponse(w, http.StatusOK, models.VerifyRFIDResponse{
		Message:         "RFID verified",
		VoterID:         voter.ID,
		FingerprintHash: voter.FingerprintHash,
	})
}

// VerifyFingerprint handles POST /voters/verify-fingerprint
// Returns the voter's wallet reference when the presented hash matches
func (h *VoterHandler) VerifyFingerprint(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyFingerprintRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.VoterID == "" || req.FingerprintHash == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voterId and fingerprintHash are required")
		return
	}

	voter, err := h.store.FindVoterByID(r.Context(), req.VoterID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Voter not found")
		return
	}
	if err != nil {
		slog.Error("failed to find voter", "error", err, "voter_id", req.VoterID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if voter.HasVoted {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Voter has already voted")
		return
	}

	if !auth.FingerprintMatches(voter.FingerprintHash, req.FingerprintHash) {
		slog.Info("fingerprint mismatch", "voter_id", voter.ID)
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Fingerprint does not match")
		return
	}

	if !voter.Wallet.HasPublicKey() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Wallet not provisioned")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.WalletResponse{
		Message:       "Fingerprint verified",
		WalletDetails: voter.Wallet,
	})
}

// InitiateVoting handles POST /voters/initiate-voting
// Issues a ballot and sets the session cookie
func (h *VoterHandler) InitiateVoting(w http.ResponseWriter, r *http.Request) {
	var req models.InitiateVotingRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	started, err := h.protocol.Initiate(r.Context(), middleware.SessionToken(r), req.VoterID)
	if err != nil {
		if errors.Is(err, voting.ErrConflict) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Voter has already voted")
			return
		}
		writeProtocolError(w, err)
		return
	}

	middleware.SetSessionCookie(w, started.SessionToken)
	middleware.JSONResponse(w, http.StatusOK, models.InitiateVotingResponse{
		Message:      "Voting session initiated",
		CanProceed:   true,
		SessionToken: started.SessionToken,
	})
}

// CastVote handles POST /voters/cast-vote (session required)
func (h *VoterHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.protocol.Cast(r.Context(), middleware.SessionToken(r), req.CandidateID)
	if err != nil {
		if sessionEnded(err) {
			middleware.ClearSessionCookie(w)
		}
		writeProtocolError(w, err)
		return
	}

	middleware.ClearSessionCookie(w)
	middleware.JSONResponse(w, http.StatusOK, models.CastVoteResponse{
		Message:          "Vote cast successfully",
		Status:           string(result.State),
		Signature:        result.Signature,
		CandidateDetails: result.Candidate,
		CurrentVotes:     result.CurrentVotes,
		TallyUpdated:     result.TallyUpdated,
	})
}

// MarkVoted handles POST /voters/mark-voted (session required)
func (h *VoterHandler) MarkVoted(w http.ResponseWriter, r *http.Request) {
	var req models.MarkVotedRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, err := h.protocol.MarkVoted(r.Context(), middleware.SessionToken(r), req.VoterID); err != nil {
		if sessionEnded(err) {
			middleware.ClearSessionCookie(w)
		}
		writeProtocolError(w, err)
		return
	}

	middleware.ClearSessionCookie(w)
	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Voter marked as voted"})
}

// WalletDetails handles GET /voters/wallet-details/{id} (session required)
// Only the session's own voter can be looked up
func (h *VoterHandler) WalletDetails(w http.ResponseWriter, r *http.Request) {
	voterID := r.PathValue("id")

	s, err := h.protocol.Session(middleware.SessionToken(r))
	if err != nil {
		writeProtocolError(w, err)
		return
	}
	if s.VoterID != voterID {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Session does not belong to this voter")
		return
	}

	voter, err := h.store.FindVoterByID(r.Context(), voterID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Voter not found")
		return
	}
	if err != nil {
		slog.Error("failed to find voter", "error", err, "voter_id", voterID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if !voter.Wallet.HasPublicKey() {
		middleware.ErrorResponse(w, http.StatusNotFound, "Wallet not found")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.WalletResponse{
		Message:       "Wallet details",
		WalletDetails: voter.Wallet,
	})
}

// CandidateDetails handles GET /voters/candidate-details/{candidateId} (session required)
func (h *VoterHandler) CandidateDetails(w http.ResponseWriter, r *http.Request) {
	if _, err := h.protocol.Session(middleware.SessionToken(r)); err != nil {
		writeProtocolError(w, err)
		return
	}

	writeEligibleCandidate(w, r, h.store, r.PathValue("candidateId"))
}
