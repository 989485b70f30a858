// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Candidate registration status constants
const (
	StatusPending   = "pending"
	StatusBiometric = "biometric"
	StatusCompleted = "completed"
)

// Wallet encryption methods
const (
	EncryptionNaclSecretbox = "NACL_SECRETBOX"
	EncryptionAESGCM        = "AES-256-GCM"
)

// Settlement job status constants
const (
	JobPending = "pending"
	JobSettled = "settled"
	JobFailed  = "failed"
)

// Request types

type VerifyRFIDRequest struct {
	RFIDTag string `json:"rfidTag"`
}

type VerifyFingerprintRequest struct {
	VoterID         string `json:"voterId"`
	FingerprintHash string `json:"fingerprintHash"`
}

type InitiateVotingRequest struct {
	VoterID string `json:"voterId"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidateId"`
}

type MarkVotedRequest struct {
	VoterID string `json:"voterId"`
}

// Response types

type VerifyRFIDResponse struct {
	Message         string `json:"message"`
	VoterID         string `json:"voterId"`
	FingerprintHash string `json:"fingerprintHash"`
}

type WalletResponse struct {
	Message       string    `json:"message"`
	WalletDetails WalletRef `json:"walletDetails"`
}

type InitiateVotingResponse struct {
	Message      string `json:"message"`
	CanProceed   bool   `json:"canProceed"`
	SessionToken string `json:"sessionToken"`
}

type CastVoteResponse struct {
	Message          string            `json:"message"`
	Status           string            `json:"status"`
	Signature        string            `json:"signature"`
	CandidateDetails CandidateSnapshot `json:"candidateDetails"`
	CurrentVotes     int64             `json:"currentVotes"`
	TallyUpdated     bool              `json:"tallyUpdated"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CandidateSummary struct {
	ID                 string `json:"id"`
	FullName           string `json:"fullName"`
	Party              string `json:"party"`
	Position           string `json:"position"`
	Votes              int64  `json:"votes"`
	RegistrationStatus string `json:"registrationStatus"`
}

type CandidateListResponse struct {
	Success bool               `json:"success"`
	Data    []CandidateSummary `json:"data"`
}

type CandidateResponse struct {
	Success bool             `json:"success"`
	Data    CandidateSummary `json:"data"`
}

type SettlementJobListResponse struct {
	Jobs []SettlementJobSummary `json:"jobs"`
}

type SettlementJobSummary struct {
	ID        string    `json:"id"`
	Signature string    `json:"signature"`
	Status    string    `json:"status"`
	DueAt     time.Time `json:"dueAt"`
	DueIn     string    `json:"dueIn"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
}

// Domain types

// WalletRef is a custodial wallet reference. Only PublicKey matters to
// the settlement layer; the remaining fields are opaque to the backend.
type WalletRef struct {
	PublicKey           string `json:"publicKey" bson:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey" bson:"encryptedPrivateKey"`
	IV                  string `json:"iv" bson:"iv"`
	EncryptionKey       string `json:"encryptionKey" bson:"encryptionKey"`
	EncryptionMethod    string `json:"encryptionMethod" bson:"encryptionMethod"`
}

// HasPublicKey reports whether the wallet can take part in a transfer.
func (w WalletRef) HasPublicKey() bool {
	return w.PublicKey != ""
}

type Voter struct {
	ID              string             `json:"id" bson:"_id"`
	RFIDTag         string             `json:"rfidTag" bson:"rfidTag"`
	FingerprintHash string             `json:"-" bson:"fingerprintHash"` // Never expose in JSON
	Wallet          WalletRef          `json:"walletDetails" bson:"walletDetails"`
	HasVoted        bool               `json:"hasVoted" bson:"hasVoted"`
	VotedAt         *time.Time         `json:"votedAt,omitempty" bson:"votedAt,omitempty"`
	VotedFor        *CandidateSnapshot `json:"-" bson:"votedFor,omitempty"` // Never expose in JSON
}

// CandidateSnapshot is the immutable copy of a candidate taken when a
// vote is recorded.
type CandidateSnapshot struct {
	CandidateID string    `json:"candidateId" bson:"candidateId" cbor:"1,keyasint"`
	Name        string    `json:"name" bson:"candidateName" cbor:"2,keyasint"`
	Party       string    `json:"party" bson:"party" cbor:"3,keyasint"`
	Position    string    `json:"position" bson:"position" cbor:"4,keyasint"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp" cbor:"5,keyasint"`
}

type Candidate struct {
	ID                 string    `json:"id" bson:"_id"`
	FullName           string    `json:"fullName" bson:"fullName"`
	NationalID         string    `json:"-" bson:"nationalId"`
	DateOfBirth        time.Time `json:"-" bson:"dateOfBirth"`
	Address            string    `json:"-" bson:"address"`
	Email              string    `json:"-" bson:"email"`
	PhoneNumber        string    `json:"-" bson:"phoneNumber"`
	Party              string    `json:"party" bson:"party"`
	Position           string    `json:"position" bson:"position"`
	RegistrationStatus string    `json:"registrationStatus" bson:"registrationStatus"`
	Wallet             WalletRef `json:"-" bson:"walletDetails"`
	Votes              int64     `json:"votes" bson:"votes"`
}

// Eligible reports whether the candidate may receive votes.
func (c *Candidate) Eligible() bool {
	return c.RegistrationStatus == StatusCompleted
}

// Snapshot captures the candidate fields recorded on a voter at cast time.
func (c *Candidate) Snapshot(at time.Time) CandidateSnapshot {
	return CandidateSnapshot{
		CandidateID: c.ID,
		Name:        c.FullName,
		Party:       c.Party,
		Position:    c.Position,
		Timestamp:   at,
	}
}

// Summary is the public ballot view of a candidate.
func (c *Candidate) Summary() CandidateSummary {
	return CandidateSummary{
		ID:                 c.ID,
		FullName:           c.FullName,
		Party:              c.Party,
		Position:           c.Position,
		Votes:              c.Votes,
		RegistrationStatus: c.RegistrationStatus,
	}
}

// SettlementJob is a queued deferred settlement. Payload is sealed and
// opaque to the store; it carries the memo secret and candidate snapshot.
type SettlementJob struct {
	ID        string
	Signature string
	Status    string
	DueAt     time.Time
	Attempts  int
	LastError string
	Payload   []byte
	CreatedAt time.Time
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
