// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/votingday/kiosk/cliparse"
	"github.com/votingday/kiosk/handlers"
	"github.com/votingday/kiosk/middleware"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/store"
	"github.com/votingday/kiosk/voting"
)

// Banner is served at GET /
const Banner = "votingday kiosk API v1"

// Deps are the services the routes are served from.
type Deps struct {
	Store    store.Identity
	Protocol *voting.Protocol
	Queue    handlers.SettlementQueue
}

func NewRouter(deps Deps, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	voterHandler := handlers.NewVoterHandler(deps.Store, deps.Protocol)
	candidateHandler := handlers.NewCandidateHandler(deps.Store)
	settlementHandler := handlers.NewSettlementHandler(deps.Queue)

	// Every API route is also served under /api
	handle := func(method, path string, h http.HandlerFunc) {
		h = middleware.WithLogging(h)
		mux.HandleFunc(method+" "+path, h)
		mux.HandleFunc(method+" /api"+path, h)
	}

	handle("GET", "/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.JSONResponse(w, http.StatusOK, models.HealthResponse{Status: "ok"})
	})

	// Kiosk flow (public until a session exists)
	handle("POST", "/voters/verify-rfid", voterHandler.VerifyRFID)
	handle("POST", "/voters/verify-fingerprint", voterHandler.VerifyFingerprint)
	handle("POST", "/voters/initiate-voting", voterHandler.InitiateVoting)

	// Session-gated
	handle("POST", "/voters/cast-vote", voterHandler.CastVote)
	handle("POST", "/voters/mark-voted", voterHandler.MarkVoted)
	handle("GET", "/voters/wallet-details/{id}", voterHandler.WalletDetails)
	handle("GET", "/voters/candidate-details/{candidateId}", voterHandler.CandidateDetails)

	// Public ballot
	handle("GET", "/candidates", candidateHandler.List)
	handle("GET", "/candidates/{id}", candidateHandler.Get)

	// Operator surface
	handle("GET", "/admin/settlements", middleware.RequireAdmin(cfg.AdminKey, settlementHandler.List))
	handle("POST", "/admin/settlements/{id}/retry", middleware.RequireAdmin(cfg.AdminKey, settlementHandler.Retry))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(Banner))
	})

	return mux
}
