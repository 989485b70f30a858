// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

JSON field names are camelCase to match the kiosk frontend.

# Request Types

  - VerifyRFIDRequest: rfidTag
  - VerifyFingerprintRequest: voterId, fingerprintHash
  - InitiateVotingRequest: voterId
  - CastVoteRequest: candidateId
  - MarkVotedRequest: voterId

# Response Types

  - VerifyRFIDResponse: voterId, fingerprintHash
  - WalletResponse: the voter's wallet reference
  - InitiateVotingResponse: canProceed, sessionToken
  - CastVoteResponse: signature, candidateDetails, currentVotes, tallyUpdated
  - CandidateListResponse, CandidateResponse: eligible candidates only
  - SettlementJobListResponse: operator view of the settlement queue
  - ErrorResponse: error, message

# Domain Types

  - Voter: identity, wallet and vote state
  - Candidate: registration record and running tally
  - CandidateSnapshot: the candidate as stored on a voter's record
  - WalletRef: custodial wallet reference
  - SettlementJob: a queued deferred settlement with a sealed payload

# Constants

Registration status (only completed candidates are on the ballot):

	StatusPending   = "pending"
	StatusBiometric = "biometric"
	StatusCompleted = "completed"

Settlement job status:

	JobPending = "pending"
	JobSettled = "settled"
	JobFailed  = "failed"
*/
package models
