// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation and comparison utilities.

# Session Tokens

Session tokens are random 24-byte (192-bit) values:

	token, err := auth.GenerateSessionToken()

Tokens are URL-safe base64 encoded and identify a browser voting session.
They carry no voter data; the server keeps the session state.

# Vote Secrets

Each voting attempt gets a fresh 256-bit secret:

	secret, err := auth.GenerateVoteSecret()

The secret is hex encoded and attached as a memo to ledger transfers. It
is a correlation token, never returned to the client.

# Admin Keys

Operator endpoints compare the X-Admin-Key header to the configured key:

	err := auth.ValidateAdminKey(r.Header.Get("X-Admin-Key"), cfg.AdminKey)

# Fingerprints

Fingerprint hashes are opaque comparable values produced by the kiosk
sensor. FingerprintMatches compares them in constant time.
*/
package auth
