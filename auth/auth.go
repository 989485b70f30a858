// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrMissingAdminKey = errors.New("admin key not configured")
)

// SecretBytes is the size of the per-vote memo secret (256 bits).
const SecretBytes = 32

// GenerateSessionToken creates a random opaque token identifying a
// browser voting session. 24 bytes = 192 bits of entropy.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 24)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// GenerateVoteSecret creates the one-time secret that correlates ballot
// issuance with the candidate transfer. Hex encoded.
func GenerateVoteSecret() (string, error) {
	b := make([]byte, SecretBytes)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate vote secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidateAdminKey checks the presented operator key against the
// configured one in constant time.
func ValidateAdminKey(presented, configured string) error {
	if configured == "" {
		return ErrMissingAdminKey
	}
	// Compare digests so the comparison length does not depend on input
	a := sha256.Sum256([]byte(presented))
	b := sha256.Sum256([]byte(configured))
	if subtle.ConstantTimeCompare(a[:], b[:]) != 1 {
		return ErrInvalidAdminKey
	}
	return nil
}

// FingerprintMatches compares two pre-hashed fingerprint values in
// constant time. Empty values never match.
func FingerprintMatches(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
