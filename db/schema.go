// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL sticks to the subset shared by PostgreSQL and SQLite.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Tables lists every table in dependency order, for test cleanup.
var Tables = []string{"settlement_job", "candidate", "voter"}

const schema = `
-- Voters
CREATE TABLE IF NOT EXISTS voter (
    id TEXT PRIMARY KEY,
    rfid_tag TEXT NOT NULL UNIQUE,
    fingerprint_hash TEXT NOT NULL,
    wallet_public_key TEXT NOT NULL DEFAULT '',
    wallet_encrypted_private_key TEXT NOT NULL DEFAULT '',
    wallet_iv TEXT NOT NULL DEFAULT '',
    wallet_encryption_key TEXT NOT NULL DEFAULT '',
    wallet_encryption_method TEXT NOT NULL DEFAULT 'NACL_SECRETBOX'
        CHECK (wallet_encryption_method IN ('NACL_SECRETBOX', 'AES-256-GCM')),
    has_voted BOOLEAN NOT NULL DEFAULT FALSE,
    voted_at TIMESTAMP,
    voted_for_candidate_id TEXT,
    voted_for_name TEXT,
    voted_for_party TEXT,
    voted_for_position TEXT,
    voted_for_timestamp TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL,
    national_id TEXT NOT NULL UNIQUE,
    date_of_birth TIMESTAMP NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone_number TEXT NOT NULL DEFAULT '',
    party TEXT NOT NULL DEFAULT '',
    position TEXT NOT NULL DEFAULT '',
    registration_status TEXT NOT NULL DEFAULT 'pending'
        CHECK (registration_status IN ('pending', 'biometric', 'completed')),
    wallet_public_key TEXT NOT NULL DEFAULT '',
    wallet_encrypted_private_key TEXT NOT NULL DEFAULT '',
    wallet_iv TEXT NOT NULL DEFAULT '',
    wallet_encryption_key TEXT NOT NULL DEFAULT '',
    wallet_encryption_method TEXT NOT NULL DEFAULT 'NACL_SECRETBOX'
        CHECK (wallet_encryption_method IN ('NACL_SECRETBOX', 'AES-256-GCM')),
    votes BIGINT NOT NULL DEFAULT 0 CHECK (votes >= 0),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_candidate_status ON candidate(registration_status, full_name);

-- Deferred settlement jobs
CREATE TABLE IF NOT EXISTS settlement_job (
    id TEXT PRIMARY KEY,
    signature TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'settled', 'failed')),
    due_at TIMESTAMP NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    payload BYTEA NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_settlement_job_status ON settlement_job(status, due_at);
`
