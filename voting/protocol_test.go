// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/votingday/kiosk/clock"
	"github.com/votingday/kiosk/ledger"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/queue"
	"github.com/votingday/kiosk/session"
	"github.com/votingday/kiosk/store"
	"github.com/votingday/kiosk/testutil"
)

var epoch = time.Date(2026, time.May, 5, 8, 0, 0, 0, time.UTC)

// hookedChannel lets a test fail transfers or run code while one is in
// flight.
type hookedChannel struct {
	ledger.Channel
	failTransfer atomic.Bool
	onTransfer   func()
}

func (c *hookedChannel) Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.Receipt, error) {
	if c.failTransfer.Load() {
		return nil, ledger.ErrChannelUnavailable
	}
	if c.onTransfer != nil {
		c.onTransfer()
	}
	return c.Channel.Transfer(ctx, req)
}

// hookedStore fails tally increments on demand.
type hookedStore struct {
	store.Identity
	failIncrement atomic.Bool
}

var errTallyDown = errors.New("tally unavailable")

func (s *hookedStore) IncrementVoteCount(ctx context.Context, candidateID string) (*models.Candidate, error) {
	if s.failIncrement.Load() {
		return nil, errTallyDown
	}
	return s.Identity.IncrementVoteCount(ctx, candidateID)
}

// hookedSettler fails enqueues on demand.
type hookedSettler struct {
	Settler
	failEnqueue atomic.Bool
}

var errQueueDown = errors.New("queue unavailable")

func (s *hookedSettler) Enqueue(ctx context.Context, job queue.Settlement) (*models.SettlementJob, bool, error) {
	if s.failEnqueue.Load() {
		return nil, false, errQueueDown
	}
	return s.Settler.Enqueue(ctx, job)
}

type fixture struct {
	store    *store.SQLStore
	identity *hookedStore
	settler  *hookedSettler
	local    *ledger.LocalChannel
	channel  *hookedChannel
	sessions *session.Manager
	queue    *queue.Queue
	clock    *clock.FakeClock
	protocol *Protocol
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.SetupTestStore(t))
}

func newFixtureOn(t *testing.T, s *store.SQLStore) *fixture {
	t.Helper()

	signer, key, err := ledger.GenerateSigner()
	if err != nil {
		t.Fatalf("GenerateSigner failed: %v", err)
	}
	t.Cleanup(func() { key.Close() })

	f := &fixture{
		store: s,
		local: ledger.NewLocalChannel(signer, testutil.TestTokenMint, nil),
		clock: clock.Fake(epoch),
	}
	f.channel = &hookedChannel{Channel: f.local}
	f.sessions = session.NewManager(f.clock)

	f.queue, err = queue.New(f.store, f.local, key, queue.Options{
		Clock: f.clock,
		Delay: func() time.Duration { return 2 * time.Minute },
	})
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	t.Cleanup(func() { f.queue.Close() })

	f.identity = &hookedStore{Identity: f.store}
	f.settler = &hookedSettler{Settler: f.queue}

	f.protocol = New(Deps{
		Store:    f.identity,
		Sessions: f.sessions,
		Channel:  f.channel,
		Settler:  f.settler,
		Clock:    f.clock,
	}, Config{
		PoolAddress:     testutil.TestPoolAddress,
		TreasuryAddress: testutil.TestTreasuryAddress,
		TokenMint:       testutil.TestTokenMint,
	})

	return f
}

func (f *fixture) initiate(t *testing.T, voterID string) string {
	t.Helper()

	started, err := f.protocol.Initiate(context.Background(), "", voterID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	return started.SessionToken
}

func (f *fixture) voter(t *testing.T, id string) *models.Voter {
	t.Helper()

	v, err := f.store.FindVoterByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindVoterByID failed: %v", err)
	}
	return v
}

func assertKind(t *testing.T, err, kind error, state State) {
	t.Helper()

	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected *StepError, got %T", err)
	}
	if stepErr.State != state {
		t.Errorf("expected state %s, got %s", state, stepErr.State)
	}
}

func TestInitiate(t *testing.T) {
	f := newFixture(t)
	voter := testutil.CreateTestVoter(t, f.store, "RFID-001", "fp-hash", true)

	started, err := f.protocol.Initiate(context.Background(), "", voter.ID)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if started.SessionToken == "" || started.IssuanceSignature == "" {
		t.Fatalf("incomplete initiation: %+v", started)
	}
	if started.State != StateInitiated {
		t.Errorf("expected initiated, got %s", started.State)
	}

	s, err := f.protocol.Session(started.SessionToken)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if s.VoterID != voter.ID || len(s.Secret) != 64 {
		t.Errorf("unexpected session: voter %q, secret length %d", s.VoterID, len(s.Secret))
	}

	// One token moved from the treasury into the pool
	if got := f.local.BalanceOf(testutil.TestPoolAddress); got != 1 {
		t.Errorf("pool balance = %d, want 1", got)
	}

	// Re-initiating on the same token keeps it but issues a new secret
	again, err := f.protocol.Initiate(context.Background(), started.SessionToken, voter.ID)
	if err != nil {
		t.Fatalf("second Initiate failed: %v", err)
	}
	if again.SessionToken != started.SessionToken {
		t.Error("expected the idle session token to be reused")
	}
	renewed, _ := f.protocol.Session(started.SessionToken)
	if renewed.Secret == s.Secret {
		t.Error("expected a fresh secret")
	}
}

func TestInitiateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.protocol.Initiate(ctx, "", "")
	assertKind(t, err, ErrValidation, StateIdle)

	_, err = f.protocol.Initiate(ctx, "", "no-such-voter")
	assertKind(t, err, ErrNotFound, StateIdle)

	voter := testutil.CreateTestVoter(t, f.store, "RFID-002", "fp-hash", true)
	if _, err := f.store.MarkVoted(ctx, voter.ID, nil, epoch); err != nil {
		t.Fatalf("MarkVoted failed: %v", err)
	}
	_, err = f.protocol.Initiate(ctx, "", voter.ID)
	assertKind(t, err, ErrConflict, StateIdle)

	if f.sessions.Len() != 0 {
		t.Errorf("failed initiations must not open sessions, got %d", f.sessions.Len())
	}
}

func TestCastRecordsVoteAndSettles(t *testing.T) {
	f := newFixture(t)
	voter := testutil.CreateTestVoter(t, f.store, "RFID-010", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	f.clock.Advance(3 * time.Minute)

	result, err := f.protocol.Cast(context.Background(), token, candidate.ID)
	if err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if result.State != StateRecorded || result.Signature == "" || result.JobID == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.CurrentVotes != 1 || !result.TallyUpdated {
		t.Errorf("expected tally 1 updated, got %d (%v)", result.CurrentVotes, result.TallyUpdated)
	}
	if result.Candidate.Name != "Ada Lovelace" || !result.Candidate.Timestamp.Equal(epoch.Add(3*time.Minute)) {
		t.Errorf("unexpected snapshot: %+v", result.Candidate)
	}

	stored := f.voter(t, voter.ID)
	if !stored.HasVoted || stored.VotedFor == nil || stored.VotedFor.CandidateID != candidate.ID {
		t.Fatalf("vote not recorded on voter: %+v", stored)
	}

	if _, err := f.protocol.Session(token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("session must be destroyed after a recorded vote, got %v", err)
	}

	job, err := f.store.GetJob(context.Background(), result.JobID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != models.JobPending || job.Signature != result.Signature {
		t.Errorf("unexpected job: %+v", job)
	}

	f.clock.Advance(2 * time.Minute)
	job, _ = f.store.GetJob(context.Background(), result.JobID)
	if job.Status != models.JobSettled {
		t.Errorf("expected settled job, got %s (%s)", job.Status, job.LastError)
	}

	// Issuance plus one candidate transfer; the deferred settlement found
	// the signature already confirmed
	if got := f.local.TransferCount(); got != 2 {
		t.Errorf("expected 2 ledger transfers, got %d", got)
	}
	if got := f.local.BalanceOf(candidate.Wallet.PublicKey); got != 1 {
		t.Errorf("candidate balance = %d, want 1", got)
	}
}

func TestCastTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-011", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Grace Hopper", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	if _, err := f.protocol.Cast(ctx, token, candidate.ID); err != nil {
		t.Fatalf("Cast failed: %v", err)
	}

	// The session is gone
	_, err := f.protocol.Cast(ctx, token, candidate.ID)
	assertKind(t, err, ErrUnauthorized, StateIdle)

	// And no new ballot is issued
	_, err = f.protocol.Initiate(ctx, "", voter.ID)
	assertKind(t, err, ErrConflict, StateIdle)

	updated, _ := f.store.FindCandidateByID(ctx, candidate.ID)
	if updated.Votes != 1 {
		t.Errorf("expected 1 vote, got %d", updated.Votes)
	}
}

func TestConcurrentCastsAcrossSessions(t *testing.T) {
	f := newFixture(t)
	voter := testutil.CreateTestVoter(t, f.store, "RFID-012", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Alan Turing", models.StatusCompleted)

	// Several kiosks initiated for the same voter
	const attempts = 8
	tokens := make([]string, attempts)
	for i := range tokens {
		tokens[i] = f.initiate(t, voter.ID)
	}

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			_, err := f.protocol.Cast(context.Background(), token, candidate.ID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(token)
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly 1 recorded vote, got %d", successes.Load())
	}
	if conflicts.Load() != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts.Load())
	}

	updated, _ := f.store.FindCandidateByID(context.Background(), candidate.ID)
	if updated.Votes != 1 {
		t.Errorf("expected tally 1, got %d", updated.Votes)
	}
	if f.sessions.Len() != 0 {
		t.Errorf("expected every session destroyed, %d left", f.sessions.Len())
	}
}

func TestConcurrentCastsOnOneSession(t *testing.T) {
	f := newFixture(t)
	voter := testutil.CreateTestVoter(t, f.store, "RFID-013", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Katherine Johnson", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.protocol.Cast(context.Background(), token, candidate.ID)
			if err == nil {
				successes.Add(1)
				return
			}
			// Either the session was busy or it was already consumed
			if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrUnauthorized) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("expected exactly 1 recorded vote, got %d", successes.Load())
	}
}

func TestCastAfterExpiry(t *testing.T) {
	f := newFixture(t)
	voter := testutil.CreateTestVoter(t, f.store, "RFID-020", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	f.clock.Advance(31 * time.Minute)

	_, err := f.protocol.Cast(context.Background(), token, candidate.ID)
	assertKind(t, err, ErrUnauthorized, StateExpired)

	if f.voter(t, voter.ID).HasVoted {
		t.Error("expired session must not record a vote")
	}
	if f.sessions.Len() != 0 {
		t.Error("expired session must be destroyed")
	}

	// The voter starts over and the new session can vote
	again, err := f.protocol.Initiate(context.Background(), token, voter.ID)
	if err != nil {
		t.Fatalf("re-initiate after expiry failed: %v", err)
	}
	if again.SessionToken == token {
		t.Error("expected a fresh token after expiry")
	}
	if _, err := f.protocol.Cast(context.Background(), again.SessionToken, candidate.ID); err != nil {
		t.Fatalf("Cast after re-initiation failed: %v", err)
	}
	if !f.voter(t, voter.ID).HasVoted {
		t.Error("expected the vote from the new session to be recorded")
	}
}

func TestCastExpiresDuringTransfer(t *testing.T) {
	f := newFixture(t)
	voter := testutil.CreateTestVoter(t, f.store, "RFID-021", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	f.clock.Advance(29 * time.Minute)
	f.channel.onTransfer = func() { f.clock.Advance(2 * time.Minute) }

	_, err := f.protocol.Cast(context.Background(), token, candidate.ID)
	assertKind(t, err, ErrUnauthorized, StateExpired)

	if f.voter(t, voter.ID).HasVoted {
		t.Error("a cast that crossed the window must not commit")
	}
}

func TestCastIneligibleCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-030", "fp-hash", true)
	pending := testutil.CreateTestCandidate(t, f.store, "Pending Person", models.StatusBiometric)
	eligible := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	_, err := f.protocol.Cast(ctx, token, pending.ID)
	assertKind(t, err, ErrValidation, StateIdle)

	_, err = f.protocol.Cast(ctx, token, "no-such-candidate")
	assertKind(t, err, ErrNotFound, StateIdle)

	_, err = f.protocol.Cast(ctx, token, "")
	assertKind(t, err, ErrValidation, StateIdle)

	// Nothing moved and the session is still usable
	if got := f.local.TransferCount(); got != 1 {
		t.Errorf("expected only the issuance transfer, got %d", got)
	}
	if _, err := f.protocol.Cast(ctx, token, eligible.ID); err != nil {
		t.Fatalf("Cast after validation failure failed: %v", err)
	}
}

func TestCastChannelFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-040", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	f.channel.failTransfer.Store(true)
	_, err := f.protocol.Cast(ctx, token, candidate.ID)
	assertKind(t, err, ErrChannelUnavailable, StateInitiated)

	if f.voter(t, voter.ID).HasVoted {
		t.Error("hasVoted must not change when the transfer fails")
	}
	jobs, _ := f.store.ListJobs(ctx, "")
	if len(jobs) != 0 {
		t.Errorf("expected no settlement jobs, got %d", len(jobs))
	}

	f.channel.failTransfer.Store(false)
	if _, err := f.protocol.Cast(ctx, token, candidate.ID); err != nil {
		t.Fatalf("retry on the same session failed: %v", err)
	}
}

func TestCastMissingWallet(t *testing.T) {
	f := newFixture(t)
	voter := testutil.CreateTestVoter(t, f.store, "RFID-050", "fp-hash", false)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	_, err := f.protocol.Cast(context.Background(), token, candidate.ID)
	assertKind(t, err, ErrValidation, StateInitiated)

	if _, err := f.protocol.Session(token); err != nil {
		t.Errorf("session should survive a validation failure: %v", err)
	}
}

func TestCastVoterAlreadyVotedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-060", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	if _, err := f.store.MarkVoted(ctx, voter.ID, nil, epoch); err != nil {
		t.Fatalf("MarkVoted failed: %v", err)
	}

	_, err := f.protocol.Cast(ctx, token, candidate.ID)
	assertKind(t, err, ErrConflict, StateAborted)

	if f.sessions.Len() != 0 {
		t.Error("session must be destroyed on conflict")
	}
}

func TestMarkVoted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-070", "fp-hash", true)
	other := testutil.CreateTestVoter(t, f.store, "RFID-071", "fp-hash-2", true)
	token := f.initiate(t, voter.ID)

	_, err := f.protocol.MarkVoted(ctx, "", voter.ID)
	assertKind(t, err, ErrUnauthorized, StateIdle)

	_, err = f.protocol.MarkVoted(ctx, token, other.ID)
	assertKind(t, err, ErrUnauthorized, StateInitiated)

	marked, err := f.protocol.MarkVoted(ctx, token, voter.ID)
	if err != nil {
		t.Fatalf("MarkVoted failed: %v", err)
	}
	if !marked.HasVoted || marked.VotedFor != nil {
		t.Errorf("unexpected voter: %+v", marked)
	}

	_, err = f.protocol.MarkVoted(ctx, token, voter.ID)
	assertKind(t, err, ErrUnauthorized, StateIdle)

	if f.voter(t, other.ID).HasVoted {
		t.Error("other voter must be untouched")
	}
}

func TestInitiateDuringCastIssuesNoBallot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-070", "fp-hash", true)
	token := f.initiate(t, voter.ID)

	// A cast holds the session
	if _, err := f.sessions.Begin(token); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	issued := f.local.TransferCount()

	_, err := f.protocol.Initiate(ctx, token, voter.ID)
	assertKind(t, err, ErrConflict, StateSettling)

	if got := f.local.TransferCount(); got != issued {
		t.Errorf("expected no ballot issued while a cast is in flight, transfers %d -> %d", issued, got)
	}

	f.sessions.Release(token)
	again, err := f.protocol.Initiate(ctx, token, voter.ID)
	if err != nil {
		t.Fatalf("Initiate after the cast finished failed: %v", err)
	}
	if again.SessionToken != token {
		t.Error("expected the idle token to be reused")
	}
}

func TestInitiateIssuanceFailureKeepsPriorSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-071", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	f.channel.failTransfer.Store(true)
	_, err := f.protocol.Initiate(ctx, token, voter.ID)
	assertKind(t, err, ErrChannelUnavailable, StateIdle)

	_, err = f.protocol.Initiate(ctx, "", voter.ID)
	assertKind(t, err, ErrChannelUnavailable, StateIdle)
	if f.sessions.Len() != 1 {
		t.Errorf("a failed issuance must not leave a session behind, have %d", f.sessions.Len())
	}

	f.channel.failTransfer.Store(false)
	if _, err := f.protocol.Cast(ctx, token, candidate.ID); err != nil {
		t.Fatalf("the earlier session should still cast: %v", err)
	}
}

func TestCastTallyFailureKeepsVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-080", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	f.identity.failIncrement.Store(true)
	result, err := f.protocol.Cast(ctx, token, candidate.ID)
	if err != nil {
		t.Fatalf("a tally failure after the commit must not fail the cast: %v", err)
	}
	if result.State != StateRecorded || result.TallyUpdated {
		t.Errorf("expected recorded vote without tally update, got %+v", result)
	}
	if result.CurrentVotes != 0 {
		t.Errorf("expected the pre-increment tally 0, got %d", result.CurrentVotes)
	}

	if !f.voter(t, voter.ID).HasVoted {
		t.Error("the vote must stay recorded")
	}
	if f.sessions.Len() != 0 {
		t.Error("the session must be destroyed after a recorded vote")
	}

	_, err = f.protocol.Cast(ctx, token, candidate.ID)
	assertKind(t, err, ErrUnauthorized, StateIdle)
}

func TestCastEnqueueFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-081", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	f.settler.failEnqueue.Store(true)
	_, err := f.protocol.Cast(ctx, token, candidate.ID)
	assertKind(t, err, ErrChannelUnavailable, StateInitiated)

	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Step != StepEnqueue {
		t.Errorf("expected the enqueue step, got %s", stepErr.Step)
	}
	if f.voter(t, voter.ID).HasVoted {
		t.Error("hasVoted must not change when the settlement cannot be queued")
	}
	if _, err := f.protocol.Session(token); err != nil {
		t.Fatalf("session should survive an enqueue failure: %v", err)
	}

	f.settler.failEnqueue.Store(false)
	result, err := f.protocol.Cast(ctx, token, candidate.ID)
	if err != nil {
		t.Fatalf("retry on the same session failed: %v", err)
	}

	// The retried transfer is the same ledger operation
	if got := f.local.TransferCount(); got != 2 {
		t.Errorf("expected issuance plus one candidate transfer, got %d", got)
	}
	if result.CurrentVotes != 1 {
		t.Errorf("expected tally 1, got %d", result.CurrentVotes)
	}
}

func TestCastCommitFailureIsRetryable(t *testing.T) {
	plan := &testutil.FaultPlan{After: "UPDATE voter", Match: "FROM voter WHERE id"}
	f := newFixtureOn(t, testutil.SetupFaultyTestStore(t, plan))
	ctx := context.Background()
	voter := testutil.CreateTestVoter(t, f.store, "RFID-082", "fp-hash", true)
	candidate := testutil.CreateTestCandidate(t, f.store, "Ada Lovelace", models.StatusCompleted)
	token := f.initiate(t, voter.ID)

	_, err := f.protocol.Cast(ctx, token, candidate.ID)
	assertKind(t, err, ErrInternal, StateInitiated)
	if !plan.Fired() {
		t.Fatal("expected the read-back fault to fire")
	}

	// Nothing was committed, so records and tally still agree
	if f.voter(t, voter.ID).HasVoted {
		t.Fatal("a failed commit must leave hasVoted unchanged")
	}

	result, err := f.protocol.Cast(ctx, token, candidate.ID)
	if err != nil {
		t.Fatalf("retry on the same session failed: %v", err)
	}
	if !result.TallyUpdated || result.CurrentVotes != 1 {
		t.Errorf("expected tally 1 after the retry, got %d (%v)", result.CurrentVotes, result.TallyUpdated)
	}
	if !f.voter(t, voter.ID).HasVoted {
		t.Error("expected the retried vote to be recorded")
	}
}
