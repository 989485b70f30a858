// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/votingday/kiosk/clock"
	"github.com/votingday/kiosk/ledger"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/secret"
	"github.com/votingday/kiosk/store"
)

// Dispatch delay bounds. Delays are uniform in [MinDelay, MaxDelay).
const (
	MinDelay = 60 * time.Second
	MaxDelay = 300 * time.Second
)

// ErrForeignKey reports pending settlements that the configured pool key
// cannot open. They were queued under a different key.
var ErrForeignKey = errors.New("pending settlements sealed under another pool key")

// dispatchTimeout bounds one dispatch attempt against store and ledger.
const dispatchTimeout = 30 * time.Second

// RandomDelay draws a dispatch delay uniformly from [MinDelay, MaxDelay).
func RandomDelay() time.Duration {
	return MinDelay + rand.N(MaxDelay-MinDelay)
}

// Settlement describes one transfer to settle later. Signature is the
// receipt of the synchronous transfer and keys the job.
type Settlement struct {
	Signature string
	From      models.WalletRef
	To        models.WalletRef
	Amount    uint64
	Secret    string
	Candidate models.CandidateSnapshot
}

type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
	// Delay overrides RandomDelay, for tests.
	Delay func() time.Duration
}

// Queue is the deferred settlement queue. Jobs are persisted before they
// are armed, so Start can re-arm them after a restart.
type Queue struct {
	jobs    store.Jobs
	channel ledger.Channel
	sealer  *sealer
	clock   clock.Clock
	logger  *slog.Logger
	delay   func() time.Duration

	mu         sync.Mutex
	timers     map[string]armedTimer
	generation uint64
	closed     bool
	wg         sync.WaitGroup
}

type armedTimer struct {
	timer      *clock.Timer
	generation uint64
}

// New creates a queue whose payloads are sealed under a key derived from
// key. key is borrowed, not closed.
func New(jobs store.Jobs, channel ledger.Channel, key *secret.Buffer, opts Options) (*Queue, error) {
	s, err := newSealer(key)
	if err != nil {
		return nil, err
	}

	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Delay == nil {
		opts.Delay = RandomDelay
	}

	return &Queue{
		jobs:    jobs,
		channel: channel,
		sealer:  s,
		clock:   opts.Clock,
		logger:  opts.Logger,
		delay:   opts.Delay,
		timers:  make(map[string]armedTimer),
	}, nil
}

// Start re-arms every pending job found in the store. It fails with
// ErrForeignKey, arming nothing, if any pending job cannot be opened.
func (q *Queue) Start(ctx context.Context) error {
	pending, err := q.jobs.ListJobs(ctx, models.JobPending)
	if err != nil {
		return fmt.Errorf("load pending settlements: %w", err)
	}

	// Nothing is armed unless every pending job opens under this key
	unreadable := 0
	for _, job := range pending {
		if _, err := q.sealer.open(job.Payload, job.Signature); err != nil {
			unreadable++
		}
	}
	if unreadable > 0 {
		return fmt.Errorf("%w: %d of %d pending settlements", ErrForeignKey, unreadable, len(pending))
	}

	for _, job := range pending {
		q.arm(job)
	}

	q.logger.Info("settlement queue started", "pending", len(pending))
	return nil
}

// Enqueue persists and arms a settlement. It reports false, without
// error, if a job with the same signature already exists.
func (q *Queue) Enqueue(ctx context.Context, s Settlement) (*models.SettlementJob, bool, error) {
	now := q.clock.Now()

	sealed, err := q.sealer.seal(payload{
		VoterWallet:     s.From.PublicKey,
		CandidateWallet: s.To.PublicKey,
		Amount:          s.Amount,
		Secret:          s.Secret,
		Candidate:       s.Candidate,
		QueuedAt:        now,
	}, s.Signature)
	if err != nil {
		return nil, false, err
	}

	job := &models.SettlementJob{
		Signature: s.Signature,
		DueAt:     now.Add(q.delay()),
		Payload:   sealed,
		CreatedAt: now,
	}

	inserted, err := q.jobs.InsertJob(ctx, job)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue settlement: %w", err)
	}
	if !inserted {
		q.logger.Info("settlement already queued", "signature", s.Signature)
		return nil, false, nil
	}

	q.logger.Info("settlement queued",
		"job_id", job.ID,
		"signature", s.Signature,
		"due", humanize.RelTime(job.DueAt, now, "ago", "from now"),
	)

	q.arm(*job)
	return job, true, nil
}

// Retry re-arms a failed job with a fresh random delay.
func (q *Queue) Retry(ctx context.Context, id string) (models.SettlementJobSummary, error) {
	dueAt := q.clock.Now().Add(q.delay())
	if err := q.jobs.RearmJob(ctx, id, dueAt); err != nil {
		return models.SettlementJobSummary{}, err
	}

	job, err := q.jobs.GetJob(ctx, id)
	if err != nil {
		return models.SettlementJobSummary{}, err
	}

	now := q.clock.Now()
	q.logger.Info("settlement retry scheduled",
		"job_id", id,
		"due", humanize.RelTime(dueAt, now, "ago", "from now"),
	)

	q.arm(*job)
	return summarize(job, now), nil
}

// Summaries lists jobs with a human-readable time until dispatch. Sealed
// payloads are never included.
func (q *Queue) Summaries(ctx context.Context, status string) ([]models.SettlementJobSummary, error) {
	jobs, err := q.jobs.ListJobs(ctx, status)
	if err != nil {
		return nil, err
	}

	now := q.clock.Now()
	summaries := make([]models.SettlementJobSummary, 0, len(jobs))
	for i := range jobs {
		summaries = append(summaries, summarize(&jobs[i], now))
	}

	return summaries, nil
}

func summarize(job *models.SettlementJob, now time.Time) models.SettlementJobSummary {
	summary := models.SettlementJobSummary{
		ID:        job.ID,
		Signature: job.Signature,
		Status:    job.Status,
		DueAt:     job.DueAt,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}
	if job.Status == models.JobPending {
		summary.DueIn = humanize.RelTime(job.DueAt, now, "overdue", "from now")
	}
	return summary
}

// Close stops all armed timers and waits for running dispatches.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	for id, armed := range q.timers {
		if armed.timer.Stop() {
			q.wg.Done()
		}
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return q.sealer.Close()
}

func (q *Queue) arm(job models.SettlementJob) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.wg.Add(1)
	q.generation++
	generation := q.generation
	q.mu.Unlock()

	delay := job.DueAt.Sub(q.clock.Now())
	if delay < 0 {
		delay = 0
	}

	var finished bool
	timer := q.clock.AfterFunc(delay, func() {
		defer q.wg.Done()
		q.dispatch(job.ID)

		// A retry may already have armed a newer timer for this job
		q.mu.Lock()
		finished = true
		if armed, ok := q.timers[job.ID]; ok && armed.generation == generation {
			delete(q.timers, job.ID)
		}
		q.mu.Unlock()
	})

	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case finished:
		// Due immediately; the callback already ran
	case q.closed:
		// Close ran while the timer was created and could not stop it
		if timer.Stop() {
			q.wg.Done()
		}
	default:
		q.timers[job.ID] = armedTimer{timer: timer, generation: generation}
	}
}

// dispatch settles one job. If the ledger already has the signature the
// job is marked settled without a new transfer; otherwise the transfer is
// replayed, which the ledger de-duplicates. Failures are recorded on the
// job and never retried automatically.
func (q *Queue) dispatch(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	job, err := q.jobs.GetJob(ctx, id)
	if err != nil {
		q.logger.Error("failed to load settlement job", "error", err, "job_id", id)
		return
	}
	if job.Status != models.JobPending {
		return
	}

	p, err := q.sealer.open(job.Payload, job.Signature)
	if err != nil {
		q.fail(ctx, job, err)
		return
	}

	confirmed, err := q.channel.Confirm(ctx, job.Signature)
	if err != nil {
		q.fail(ctx, job, err)
		return
	}

	if !confirmed {
		_, err := q.channel.Transfer(ctx, ledger.TransferRequest{
			From:   models.WalletRef{PublicKey: p.VoterWallet},
			To:     models.WalletRef{PublicKey: p.CandidateWallet},
			Amount: p.Amount,
			Memo:   p.Secret,
		})
		if err != nil {
			q.fail(ctx, job, err)
			return
		}
	}

	if err := q.jobs.FinishJob(ctx, job.ID, models.JobSettled, ""); err != nil {
		q.logger.Error("failed to mark settlement settled", "error", err, "job_id", job.ID)
		return
	}

	q.logger.Info("settlement dispatched",
		"job_id", job.ID,
		"signature", job.Signature,
		"already_confirmed", confirmed,
		"queued", humanize.RelTime(p.QueuedAt, q.clock.Now(), "ago", "from now"),
	)
}

func (q *Queue) fail(ctx context.Context, job *models.SettlementJob, cause error) {
	q.logger.Error("settlement failed",
		"error", cause,
		"job_id", job.ID,
		"signature", job.Signature,
		"attempt", job.Attempts+1,
	)

	if err := q.jobs.FinishJob(ctx, job.ID, models.JobFailed, cause.Error()); err != nil {
		q.logger.Error("failed to mark settlement failed", "error", err, "job_id", job.ID)
	}
}
