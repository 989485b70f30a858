// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/votingday/kiosk/auth"
	"github.com/votingday/kiosk/clock"
	"github.com/votingday/kiosk/ledger"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/queue"
	"github.com/votingday/kiosk/session"
	"github.com/votingday/kiosk/store"
)

// State is where a voting attempt stands.
//
//	Idle -> Initiated -> Settling -> Recorded
//	                  \-> Expired
//	         Settling -> Initiated (retryable failure) | Aborted
type State string

const (
	StateIdle      State = "idle"
	StateInitiated State = "initiated"
	StateSettling  State = "settling"
	StateRecorded  State = "recorded"
	StateExpired   State = "expired"
	StateAborted   State = "aborted"
)

// BallotAmount is the number of voting tokens a ballot carries.
const BallotAmount uint64 = 1

// Settler queues the deferred half of a settlement.
type Settler interface {
	Enqueue(ctx context.Context, s queue.Settlement) (*models.SettlementJob, bool, error)
}

// Config names the ledger accounts that take part in ballot issuance.
type Config struct {
	PoolAddress     string
	TreasuryAddress string
	TokenMint       string
}

type Deps struct {
	Store    store.Identity
	Sessions *session.Manager
	Channel  ledger.Channel
	Settler  Settler
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Protocol runs the vote-casting state machine. Every method is safe for
// concurrent use; the voter record and the session manager carry all
// state.
type Protocol struct {
	store    store.Identity
	sessions *session.Manager
	channel  ledger.Channel
	settler  Settler
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

func New(deps Deps, cfg Config) *Protocol {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Protocol{
		store:    deps.Store,
		sessions: deps.Sessions,
		channel:  deps.Channel,
		settler:  deps.Settler,
		clock:    deps.Clock,
		logger:   deps.Logger,
		cfg:      cfg,
	}
}

// Initiation is the result of a successful Initiate. The vote secret is
// kept in the session and never returned.
type Initiation struct {
	SessionToken      string
	IssuanceSignature string
	State             State
}

// Result describes a recorded vote.
type Result struct {
	State        State
	Signature    string
	Candidate    models.CandidateSnapshot
	CurrentVotes int64
	TallyUpdated bool
	JobID        string
}

// Initiate issues a ballot to a voter who has not voted: it prepares the
// pool account, moves one token from the treasury into the pool with a
// fresh secret as memo and binds the secret to a session. token, if it
// names an idle session, is reused. The token is reserved before the
// ledger is touched and released again if issuance fails.
func (p *Protocol) Initiate(ctx context.Context, token, voterID string) (*Initiation, error) {
	if voterID == "" {
		return nil, stepError(StepValidateInput, ErrValidation, StateIdle, errors.New("voter id is required"))
	}

	voter, err := p.store.FindVoterByID(ctx, voterID)
	if err != nil {
		return nil, stepError(StepLookupVoter, storeKind(err), StateIdle, err)
	}
	if voter.HasVoted {
		return nil, stepError(StepLookupVoter, ErrConflict, StateIdle, errors.New("voter has already voted"))
	}

	// Claim the token before anything reaches the ledger, so a cast in
	// flight on it turns the request away before a ballot is issued.
	reserved, err := p.sessions.Reserve(token)
	if err != nil {
		if errors.Is(err, session.ErrInFlight) {
			return nil, stepError(StepOpenSession, ErrConflict, StateSettling, err)
		}
		return nil, stepError(StepOpenSession, ErrInternal, StateIdle, err)
	}

	secret, err := auth.GenerateVoteSecret()
	if err != nil {
		p.sessions.Cancel(reserved)
		return nil, stepError(StepIssueBallot, ErrInternal, StateIdle, err)
	}

	if _, err := p.channel.EnsureAccount(ctx, p.cfg.PoolAddress, p.cfg.TokenMint); err != nil {
		p.sessions.Cancel(reserved)
		return nil, stepError(StepPrepareAccount, ledgerKind(err), StateIdle, err)
	}

	receipt, err := p.channel.Transfer(ctx, ledger.TransferRequest{
		From:   models.WalletRef{PublicKey: p.cfg.TreasuryAddress},
		To:     models.WalletRef{PublicKey: p.cfg.PoolAddress},
		Amount: BallotAmount,
		Memo:   secret,
	})
	if err != nil {
		p.sessions.Cancel(reserved)
		return nil, stepError(StepIssueBallot, ledgerKind(err), StateIdle, err)
	}

	s, err := p.sessions.Fill(reserved, voter.ID, secret)
	if err != nil {
		return nil, stepError(StepOpenSession, ErrInternal, StateIdle, err)
	}

	p.logger.Info("ballot issued", "voter_id", voter.ID, "signature", receipt.Signature)

	return &Initiation{
		SessionToken:      s.Token,
		IssuanceSignature: receipt.Signature,
		State:             StateInitiated,
	}, nil
}

// Cast records a vote for candidateID on behalf of the session's voter.
//
// The candidate is checked first, then the session is marked busy so a
// concurrent cast on the same session fails with ErrConflict. The
// synchronous transfer and the settlement job come before the commit;
// the commit itself is a compare-and-set on hasVoted, so across sessions
// at most one cast per voter is recorded. A failure before the commit
// leaves hasVoted untouched.
func (p *Protocol) Cast(ctx context.Context, token, candidateID string) (*Result, error) {
	if candidateID == "" {
		return nil, stepError(StepValidateInput, ErrValidation, StateIdle, errors.New("candidate id is required"))
	}

	candidate, err := p.store.FindCandidateByID(ctx, candidateID)
	if err != nil {
		return nil, stepError(StepLookupCandidate, storeKind(err), StateIdle, err)
	}
	if !candidate.Eligible() {
		return nil, stepError(StepLookupCandidate, ErrValidation, StateIdle,
			fmt.Errorf("candidate registration is %s", candidate.RegistrationStatus))
	}

	s, err := p.sessions.Begin(token)
	if err != nil {
		return nil, sessionError(err)
	}

	voter, err := p.store.FindVoterByID(ctx, s.VoterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.sessions.Consume(token)
			return nil, stepError(StepLookupVoter, ErrNotFound, StateAborted, err)
		}
		p.sessions.Release(token)
		return nil, stepError(StepLookupVoter, ErrInternal, StateInitiated, err)
	}
	if voter.HasVoted {
		p.sessions.Consume(token)
		return nil, stepError(StepLookupVoter, ErrConflict, StateAborted, errors.New("voter has already voted"))
	}

	receipt, err := p.channel.Transfer(ctx, ledger.TransferRequest{
		From:   voter.Wallet,
		To:     candidate.Wallet,
		Amount: BallotAmount,
		Memo:   s.Secret,
	})
	if err != nil {
		p.sessions.Release(token)
		return nil, stepError(StepTransfer, ledgerKind(err), StateInitiated, err)
	}

	now := p.clock.Now()
	snapshot := candidate.Snapshot(now)

	job, _, err := p.settler.Enqueue(ctx, queue.Settlement{
		Signature: receipt.Signature,
		From:      voter.Wallet,
		To:        candidate.Wallet,
		Amount:    BallotAmount,
		Secret:    s.Secret,
		Candidate: snapshot,
	})
	if err != nil {
		p.sessions.Release(token)
		return nil, stepError(StepEnqueue, ErrChannelUnavailable, StateInitiated, err)
	}

	// The transfer may have taken long enough to cross the window
	if err := p.sessions.CheckLive(token); err != nil {
		p.sessions.Consume(token)
		return nil, stepError(StepSession, ErrUnauthorized, StateExpired, err)
	}

	if _, err := p.store.MarkVoted(ctx, voter.ID, &snapshot, now); err != nil {
		return nil, p.commitError(token, err)
	}

	result := &Result{
		State:        StateRecorded,
		Signature:    receipt.Signature,
		Candidate:    snapshot,
		CurrentVotes: candidate.Votes,
	}
	if job != nil {
		result.JobID = job.ID
	}

	// The vote stands even if the tally cannot be bumped; operators
	// reconcile from the voter records.
	updated, err := p.store.IncrementVoteCount(ctx, candidate.ID)
	if err != nil {
		p.logger.Error("failed to update vote tally", "error", err, "candidate_id", candidate.ID)
	} else {
		result.CurrentVotes = updated.Votes
		result.TallyUpdated = true
	}

	p.sessions.Consume(token)

	// Voter and candidate are never logged together
	p.logger.Info("vote recorded", "voter_id", voter.ID)

	return result, nil
}

// MarkVoted records that the session's voter has voted without a
// candidate snapshot. voterID must match the session.
func (p *Protocol) MarkVoted(ctx context.Context, token, voterID string) (*models.Voter, error) {
	if voterID == "" {
		return nil, stepError(StepValidateInput, ErrValidation, StateIdle, errors.New("voter id is required"))
	}

	s, err := p.sessions.Begin(token)
	if err != nil {
		return nil, sessionError(err)
	}
	if s.VoterID != voterID {
		p.sessions.Release(token)
		return nil, stepError(StepSession, ErrUnauthorized, StateInitiated, errors.New("session does not belong to this voter"))
	}

	voter, err := p.store.MarkVoted(ctx, voterID, nil, p.clock.Now())
	if err != nil {
		return nil, p.commitError(token, err)
	}

	p.sessions.Consume(token)
	p.logger.Info("voter marked as voted", "voter_id", voterID)

	return voter, nil
}

// Session returns the live session for token, for read-only endpoints
// gated on an initiated vote.
func (p *Protocol) Session(token string) (session.Session, error) {
	s, err := p.sessions.Validate(token)
	if err != nil {
		return session.Session{}, sessionError(err)
	}
	return s, nil
}

func (p *Protocol) commitError(token string, err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		p.sessions.Consume(token)
		return stepError(StepCommit, ErrConflict, StateAborted, err)
	case errors.Is(err, store.ErrNotFound):
		p.sessions.Consume(token)
		return stepError(StepCommit, ErrNotFound, StateAborted, err)
	default:
		p.sessions.Release(token)
		return stepError(StepCommit, ErrInternal, StateInitiated, err)
	}
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrInFlight):
		return stepError(StepSession, ErrConflict, StateSettling, err)
	case errors.Is(err, session.ErrExpired):
		return stepError(StepSession, ErrUnauthorized, StateExpired, err)
	default:
		return stepError(StepSession, ErrUnauthorized, StateIdle, err)
	}
}

func storeKind(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, store.ErrConflict) {
		return ErrConflict
	}
	return ErrInternal
}

func ledgerKind(err error) error {
	if errors.Is(err, ledger.ErrWalletMissing) {
		return ErrValidation
	}
	return ErrChannelUnavailable
}
