// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the voting kiosk API.

# Handler Types

  - VoterHandler: identity checks and the vote-casting endpoints
  - CandidateHandler: the public ballot
  - SettlementHandler: operator view of the deferred settlement queue

	voters := handlers.NewVoterHandler(store, protocol)

# Kiosk Flow

	POST /voters/verify-rfid        → VerifyRFID (voterId, fingerprintHash)
	POST /voters/verify-fingerprint → VerifyFingerprint (wallet reference)
	POST /voters/initiate-voting    → InitiateVoting (sets voting_session)
	POST /voters/cast-vote          → CastVote (session required)

Session-gated helpers:

	POST /voters/mark-voted
	GET  /voters/wallet-details/{id}
	GET  /voters/candidate-details/{candidateId}

The session token is read from the voting_session cookie or the
X-Voting-Session header.

# Error Mapping

Protocol errors map to HTTP status through writeProtocolError:

	ErrValidation         400
	ErrUnauthorized       401
	ErrNotFound           404
	ErrConflict           409 (400 on initiate-voting)
	ErrChannelUnavailable 500

# Operator Endpoints

Require the X-Admin-Key header:

	GET  /admin/settlements?status=pending|settled|failed
	POST /admin/settlements/{id}/retry
*/
package handlers
