// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/votingday/kiosk/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record state conflict")
)

// Identity holds voters and candidates. MarkVoted and IncrementVoteCount
// are single conditional writes against the backing store; callers never
// read-modify-write either record.
type Identity interface {
	FindVoterByTag(ctx context.Context, tag string) (*models.Voter, error)
	FindVoterByID(ctx context.Context, id string) (*models.Voter, error)

	// MarkVoted flips hasVoted from false to true and records votedFor.
	// It returns ErrConflict if the voter has already voted and
	// ErrNotFound if the voter does not exist. votedFor may be nil. Any
	// other error means the update was not applied.
	MarkVoted(ctx context.Context, voterID string, votedFor *models.CandidateSnapshot, at time.Time) (*models.Voter, error)

	IncrementVoteCount(ctx context.Context, candidateID string) (*models.Candidate, error)
	FindCandidateByID(ctx context.Context, id string) (*models.Candidate, error)

	// ListEligibleCandidates returns completed candidates sorted by name.
	ListEligibleCandidates(ctx context.Context) ([]models.Candidate, error)

	// UpsertVoter inserts or updates a voter keyed by RFID tag. Vote state
	// is never touched by an update. The stored id is written back to v.
	UpsertVoter(ctx context.Context, v *models.Voter) error

	// UpsertCandidate inserts or updates a candidate keyed by national id.
	// The tally is never touched by an update.
	UpsertCandidate(ctx context.Context, c *models.Candidate) error
}

// Jobs persists deferred settlement jobs.
type Jobs interface {
	// InsertJob stores a new pending job. It reports false, without error,
	// when a job with the same signature already exists.
	InsertJob(ctx context.Context, job *models.SettlementJob) (bool, error)
	GetJob(ctx context.Context, id string) (*models.SettlementJob, error)

	// ListJobs returns jobs ordered by due time. An empty status lists all.
	ListJobs(ctx context.Context, status string) ([]models.SettlementJob, error)

	// FinishJob moves a pending job to status, bumping its attempt count.
	FinishJob(ctx context.Context, id, status, lastError string) error

	// RearmJob moves a failed job back to pending with a new due time.
	// It returns ErrConflict if the job is not failed.
	RearmJob(ctx context.Context, id string, dueAt time.Time) error
}

type Store interface {
	Identity
	Jobs
	Close() error
}
