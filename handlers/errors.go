// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/votingday/kiosk/middleware"
	"github.com/votingday/kiosk/voting"
)

// writeProtocolError maps a protocol error kind to an HTTP status. The
// response message is the kind only; the wrapped cause stays in the logs.
func writeProtocolError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "Internal error"

	switch {
	case errors.Is(err, voting.ErrValidation):
		status, message = http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, voting.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "No active voting session"
		var stepErr *voting.StepError
		if errors.As(err, &stepErr) && stepErr.State == voting.StateExpired {
			message = "Voting session expired"
		}
	case errors.Is(err, voting.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, voting.ErrConflict):
		status, message = http.StatusConflict, "Voter has already voted or a vote is in progress"
	case errors.Is(err, voting.ErrChannelUnavailable):
		status, message = http.StatusInternalServerError, "Settlement channel unavailable"
	}

	if status == http.StatusInternalServerError {
		slog.Error("vote protocol failed", "error", err)
	} else {
		slog.Info("vote protocol rejected request", "error", err, "status", status)
	}

	middleware.ErrorResponse(w, status, message)
}

func validationMessage(err error) string {
	var stepErr *voting.StepError
	if !errors.As(err, &stepErr) {
		return "Invalid request"
	}

	switch stepErr.Step {
	case voting.StepLookupCandidate:
		return "Candidate is not eligible"
	case voting.StepTransfer, voting.StepPrepareAccount, voting.StepIssueBallot:
		return "Wallet not provisioned"
	default:
		return stepErr.Err.Error()
	}
}

// sessionEnded reports whether a failed cast destroyed the session, in
// which case the browser cookie is cleared too.
func sessionEnded(err error) bool {
	var stepErr *voting.StepError
	if !errors.As(err, &stepErr) {
		return false
	}
	return stepErr.State == voting.StateExpired || stepErr.State == voting.StateAborted
}
