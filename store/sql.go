// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/votingday/kiosk/models"
)

// SQLStore implements Store on database/sql. Queries use $N placeholders,
// which both lib/pq and modernc.org/sqlite accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

const voterColumns = `id, rfid_tag, fingerprint_hash,
	wallet_public_key, wallet_encrypted_private_key, wallet_iv, wallet_encryption_key, wallet_encryption_method,
	has_voted, voted_at, voted_for_candidate_id, voted_for_name, voted_for_party, voted_for_position, voted_for_timestamp`

func scanVoter(row scanner) (*models.Voter, error) {
	var v models.Voter
	var votedAt, votedForTimestamp sql.NullTime
	var candidateID, name, party, position sql.NullString

	err := row.Scan(
		&v.ID, &v.RFIDTag, &v.FingerprintHash,
		&v.Wallet.PublicKey, &v.Wallet.EncryptedPrivateKey, &v.Wallet.IV, &v.Wallet.EncryptionKey, &v.Wallet.EncryptionMethod,
		&v.HasVoted, &votedAt, &candidateID, &name, &party, &position, &votedForTimestamp,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if votedAt.Valid {
		t := votedAt.Time
		v.VotedAt = &t
	}
	if candidateID.Valid {
		v.VotedFor = &models.CandidateSnapshot{
			CandidateID: candidateID.String,
			Name:        name.String,
			Party:       party.String,
			Position:    position.String,
			Timestamp:   votedForTimestamp.Time,
		}
	}

	return &v, nil
}

const candidateColumns = `id, full_name, national_id, date_of_birth, address, email, phone_number,
	party, position, registration_status,
	wallet_public_key, wallet_encrypted_private_key, wallet_iv, wallet_encryption_key, wallet_encryption_method,
	votes`

func scanCandidate(row scanner) (*models.Candidate, error) {
	var c models.Candidate
	err := row.Scan(
		&c.ID, &c.FullName, &c.NationalID, &c.DateOfBirth, &c.Address, &c.Email, &c.PhoneNumber,
		&c.Party, &c.Position, &c.RegistrationStatus,
		&c.Wallet.PublicKey, &c.Wallet.EncryptedPrivateKey, &c.Wallet.IV, &c.Wallet.EncryptionKey, &c.Wallet.EncryptionMethod,
		&c.Votes,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLStore) FindVoterByTag(ctx context.Context, tag string) (*models.Voter, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voter WHERE rfid_tag = $1`, tag)
	return scanVoter(row)
}

func (s *SQLStore) FindVoterByID(ctx context.Context, id string) (*models.Voter, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voter WHERE id = $1`, id)
	return scanVoter(row)
}

func (s *SQLStore) MarkVoted(ctx context.Context, voterID string, votedFor *models.CandidateSnapshot, at time.Time) (*models.Voter, error) {
	var candidateID, name, party, position sql.NullString
	var votedForTimestamp sql.NullTime
	if votedFor != nil {
		candidateID = sql.NullString{String: votedFor.CandidateID, Valid: true}
		name = sql.NullString{String: votedFor.Name, Valid: true}
		party = sql.NullString{String: votedFor.Party, Valid: true}
		position = sql.NullString{String: votedFor.Position, Valid: true}
		votedForTimestamp = sql.NullTime{Time: votedFor.Timestamp.UTC(), Valid: true}
	}

	// The guarded update and the read-back share a transaction, so an error
	// here means nothing was committed and the caller may retry.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mark voted: %w", err)
	}
	defer tx.Rollback()

	// The has_voted guard makes this a compare-and-set: of any number of
	// concurrent callers exactly one sees a row affected.
	result, err := tx.ExecContext(ctx, `
		UPDATE voter
		SET has_voted = TRUE, voted_at = $2,
			voted_for_candidate_id = $3, voted_for_name = $4, voted_for_party = $5,
			voted_for_position = $6, voted_for_timestamp = $7
		WHERE id = $1 AND has_voted = FALSE
	`, voterID, at.UTC(), candidateID, name, party, position, votedForTimestamp)
	if err != nil {
		return nil, fmt.Errorf("mark voted: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark voted: %w", err)
	}

	voter, err := scanVoter(tx.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voter WHERE id = $1`, voterID))
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return voter, ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mark voted: %w", err)
	}

	return voter, nil
}

func (s *SQLStore) IncrementVoteCount(ctx context.Context, candidateID string) (*models.Candidate, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE candidate SET votes = votes + 1 WHERE id = $1
	`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("increment vote count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment vote count: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.FindCandidateByID(ctx, candidateID)
}

func (s *SQLStore) FindCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidate WHERE id = $1`, id)
	return scanCandidate(row)
}

func (s *SQLStore) ListEligibleCandidates(ctx context.Context) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM candidate
		WHERE registration_status = $1
		ORDER BY full_name, id
	`, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}

	return candidates, rows.Err()
}

func (s *SQLStore) UpsertVoter(ctx context.Context, v *models.Voter) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Wallet.EncryptionMethod == "" {
		v.Wallet.EncryptionMethod = models.EncryptionNaclSecretbox
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO voter (id, rfid_tag, fingerprint_hash,
			wallet_public_key, wallet_encrypted_private_key, wallet_iv, wallet_encryption_key, wallet_encryption_method,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (rfid_tag) DO UPDATE SET
			fingerprint_hash = excluded.fingerprint_hash,
			wallet_public_key = excluded.wallet_public_key,
			wallet_encrypted_private_key = excluded.wallet_encrypted_private_key,
			wallet_iv = excluded.wallet_iv,
			wallet_encryption_key = excluded.wallet_encryption_key,
			wallet_encryption_method = excluded.wallet_encryption_method
		RETURNING id
	`, v.ID, v.RFIDTag, v.FingerprintHash,
		v.Wallet.PublicKey, v.Wallet.EncryptedPrivateKey, v.Wallet.IV, v.Wallet.EncryptionKey, v.Wallet.EncryptionMethod,
		time.Now().UTC(),
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("upsert voter %s: %w", v.RFIDTag, err)
	}

	return nil
}

func (s *SQLStore) UpsertCandidate(ctx context.Context, c *models.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Wallet.EncryptionMethod == "" {
		c.Wallet.EncryptionMethod = models.EncryptionNaclSecretbox
	}
	if c.RegistrationStatus == "" {
		c.RegistrationStatus = models.StatusPending
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO candidate (id, full_name, national_id, date_of_birth, address, email, phone_number,
			party, position, registration_status,
			wallet_public_key, wallet_encrypted_private_key, wallet_iv, wallet_encryption_key, wallet_encryption_method,
			votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (national_id) DO UPDATE SET
			full_name = excluded.full_name,
			date_of_birth = excluded.date_of_birth,
			address = excluded.address,
			email = excluded.email,
			phone_number = excluded.phone_number,
			party = excluded.party,
			position = excluded.position,
			registration_status = excluded.registration_status,
			wallet_public_key = excluded.wallet_public_key,
			wallet_encrypted_private_key = excluded.wallet_encrypted_private_key,
			wallet_iv = excluded.wallet_iv,
			wallet_encryption_key = excluded.wallet_encryption_key,
			wallet_encryption_method = excluded.wallet_encryption_method
		RETURNING id
	`, c.ID, c.FullName, c.NationalID, c.DateOfBirth.UTC(), c.Address, c.Email, c.PhoneNumber,
		c.Party, c.Position, c.RegistrationStatus,
		c.Wallet.PublicKey, c.Wallet.EncryptedPrivateKey, c.Wallet.IV, c.Wallet.EncryptionKey, c.Wallet.EncryptionMethod,
		c.Votes, time.Now().UTC(),
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("upsert candidate %s: %w", c.FullName, err)
	}

	return nil
}

// Settlement jobs

const jobColumns = `id, signature, status, due_at, attempts, last_error, payload, created_at`

func scanJob(row scanner) (*models.SettlementJob, error) {
	var job models.SettlementJob
	err := row.Scan(&job.ID, &job.Signature, &job.Status, &job.DueAt, &job.Attempts, &job.LastError, &job.Payload, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *SQLStore) InsertJob(ctx context.Context, job *models.SettlementJob) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = models.JobPending

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_job (id, signature, status, due_at, attempts, last_error, payload, created_at)
		VALUES ($1, $2, $3, $4, 0, '', $5, $6)
		ON CONFLICT (signature) DO NOTHING
	`, job.ID, job.Signature, job.Status, job.DueAt.UTC(), job.Payload, job.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	return affected == 1, nil
}

func (s *SQLStore) GetJob(ctx context.Context, id string) (*models.SettlementJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM settlement_job WHERE id = $1`, id)
	return scanJob(row)
}

func (s *SQLStore) ListJobs(ctx context.Context, status string) ([]models.SettlementJob, error) {
	query := `SELECT ` + jobColumns + ` FROM settlement_job`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY due_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.SettlementJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

func (s *SQLStore) FinishJob(ctx context.Context, id, status, lastError string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE settlement_job
		SET status = $2, last_error = $3, attempts = attempts + 1
		WHERE id = $1 AND status = $4
	`, id, status, lastError, models.JobPending)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	return s.checkJobTransition(ctx, result, id)
}

func (s *SQLStore) RearmJob(ctx context.Context, id string, dueAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE settlement_job
		SET status = $2, due_at = $3
		WHERE id = $1 AND status = $4
	`, id, models.JobPending, dueAt.UTC(), models.JobFailed)
	if err != nil {
		return fmt.Errorf("rearm job: %w", err)
	}

	return s.checkJobTransition(ctx, result, id)
}

// checkJobTransition tells a missing job apart from one in the wrong state.
func (s *SQLStore) checkJobTransition(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	if _, err := s.GetJob(ctx, id); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}

	return ErrConflict
}
