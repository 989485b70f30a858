// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (godotenv). Values
already present in the real environment are not overwritten by it.

# CLI Flags

	-p, --port             Server port (default: 5000)
	-d, --database-url     Database URL, sqlite path or mongodb URI
	-t, --database-type    sqlite (default), postgres or mongo
	--mongo-database       MongoDB database name (default: votingday)
	--admin-key            Operator key for /admin endpoints
	--ledger-url           Ledger gateway JSON-RPC URL
	--pool-key             Hex pool signing key
	--pool-address         Voting pool wallet
	--treasury-address     Treasury wallet
	--token-mint           Voting token asset id
	--seed                 YAML fixture file
	--cors-origin          Allowed CORS origin

# Environment Variables

Flags fall back to environment variables:

	PORT                → -p
	DATABASE_URL        → -d
	DATABASE_TYPE       → -t
	MONGODB_DATABASE    → --mongo-database
	ADMIN_KEY           → --admin-key
	LEDGER_RPC_URL      → --ledger-url
	POOL_SIGNING_KEY    → --pool-key
	VOTING_POOL_ADDRESS → --pool-address
	TREASURY_ADDRESS    → --treasury-address
	VOTING_TOKEN_MINT   → --token-mint
	SEED_FILE           → --seed
	CORS_ORIGIN         → --cors-origin

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if DATABASE_URL, ADMIN_KEY,
VOTING_POOL_ADDRESS, TREASURY_ADDRESS or VOTING_TOKEN_MINT is missing,
or if the database type is unknown.

An empty POOL_SIGNING_KEY makes main generate an ephemeral key, which is
only suitable for development against the in-process ledger.
*/
package cliparse
