// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation for the SQL store.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite).

# Tables

  - voter: RFID tag, fingerprint hash, wallet reference, vote state and
    the candidate snapshot taken when the vote was recorded
  - candidate: eligibility fields, registration status, wallet reference
    and the vote tally
  - settlement_job: deferred settlement jobs with sealed payloads

# Constraints

The schema carries the invariants the store depends on:

  - voter.rfid_tag is UNIQUE
  - candidate.national_id is UNIQUE (seed upserts key on it)
  - candidate.votes is never negative
  - settlement_job.signature is UNIQUE, so enqueueing the same transfer
    twice is a no-op

voter.has_voted only ever moves from FALSE to TRUE; the store's
conditional UPDATE is the single writer of that column.
*/
package db
