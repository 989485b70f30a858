// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the votingday kiosk API server.

The kiosk identifies a voter by RFID tag and fingerprint, opens a
server-side voting session, and records exactly one vote per voter as a
one-unit token transfer from the voter's wallet to the candidate's wallet.
Each transfer is re-confirmed later by a deferred settlement queue.

# Starting the Server

	DATABASE_URL=kiosk.db ADMIN_KEY=... VOTING_POOL_ADDRESS=... \
	TREASURY_ADDRESS=... VOTING_TOKEN_MINT=... go run .

Or with flags:

	go run . -p 5000 -t postgres -d "postgres://..." --seed voters.yaml

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite path, postgres URL or mongodb URI
  - ADMIN_KEY (--admin-key): operator key for /admin endpoints
  - VOTING_POOL_ADDRESS, TREASURY_ADDRESS, VOTING_TOKEN_MINT

Optional settings:

  - PORT (-p): Server port (default: 5000)
  - DATABASE_TYPE (-t): sqlite (default), postgres or mongo
  - POOL_SIGNING_KEY: hex pool key; an ephemeral key is generated if unset
  - LEDGER_RPC_URL: ledger gateway; the in-process ledger is used if unset
  - SEED_FILE (--seed): YAML voters and candidates loaded at startup
  - CORS_ORIGIN: allowed browser origin

# Architecture

  - handlers: HTTP request handlers (voters, candidates, settlements)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, session cookie, admin key, JSON helpers
  - voting: the vote-casting protocol
  - session: server-side voting sessions
  - ledger: token transfers (in-process or JSON-RPC gateway)
  - queue: deferred settlement jobs
  - store, db: persistence (SQL or MongoDB)
  - seed: YAML registration import
  - auth, secret, clock, cliparse, models: supporting packages

See package documentation for each component.
*/
package main
