// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the voting kiosk API.

# Route Registration

	mux := router.NewRouter(router.Deps{
		Store:    store,
		Protocol: protocol,
		Queue:    settlements,
	}, cfg)

Every route is registered twice, at its path and under /api, and wrapped
in middleware.WithLogging.

# Endpoints

Health:

	GET /health

Kiosk flow:

	POST /voters/verify-rfid
	POST /voters/verify-fingerprint
	POST /voters/initiate-voting

Session-gated (voting_session cookie or X-Voting-Session header):

	POST /voters/cast-vote
	POST /voters/mark-voted
	GET  /voters/wallet-details/{id}
	GET  /voters/candidate-details/{candidateId}

Public ballot:

	GET /candidates
	GET /candidates/{id}

Operator (requires X-Admin-Key):

	GET  /admin/settlements?status=
	POST /admin/settlements/{id}/retry
*/
package router
