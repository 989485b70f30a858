// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/votingday/kiosk/cliparse"
	"github.com/votingday/kiosk/db"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/store"
	_ "modernc.org/sqlite"
)

// Ledger addresses used by GetTestConfig
const (
	TestPoolAddress     = "PoolWallet1111111111111111111111111"
	TestTreasuryAddress = "TreasuryWallet111111111111111111111"
	TestTokenMint       = "VoteMint11111111111111111111111111"
	TestAdminKey        = "test-admin-key"
)

// SetupTestDB opens a fresh in-memory SQLite database with the full schema.
// The pool is pinned to one connection so every query sees the same database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// SetupTestStore wraps SetupTestDB in a SQLStore
func SetupTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	return store.NewSQLStore(SetupTestDB(t))
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            3318,
		DatabaseURL:     "file::memory:",
		DatabaseType:    cliparse.DatabaseSQLite,
		AdminKey:        TestAdminKey,
		PoolAddress:     TestPoolAddress,
		TreasuryAddress: TestTreasuryAddress,
		TokenMint:       TestTokenMint,
	}
}

// TestWallet returns a wallet reference with a unique public key
func TestWallet() models.WalletRef {
	return models.WalletRef{
		PublicKey:           "Wallet" + uuid.NewString(),
		EncryptedPrivateKey: "ciphertext",
		IV:                  "iv",
		EncryptionKey:       "key",
		EncryptionMethod:    models.EncryptionNaclSecretbox,
	}
}

// CreateTestVoter stores a voter that has not voted yet.
// Pass withWallet=false for a voter whose wallet was never provisioned.
func CreateTestVoter(t *testing.T, s store.Identity, rfidTag, fingerprintHash string, withWallet bool) *models.Voter {
	t.Helper()

	voter := &models.Voter{
		RFIDTag:         rfidTag,
		FingerprintHash: fingerprintHash,
	}
	if withWallet {
		voter.Wallet = TestWallet()
	}

	if err := s.UpsertVoter(context.Background(), voter); err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return voter
}

// CreateTestCandidate stores a candidate with the given registration status
func CreateTestCandidate(t *testing.T, s store.Identity, fullName, status string) *models.Candidate {
	t.Helper()

	candidate := &models.Candidate{
		FullName:           fullName,
		NationalID:         "NID-" + uuid.NewString(),
		DateOfBirth:        time.Date(1980, time.March, 14, 0, 0, 0, 0, time.UTC),
		Email:              "candidate@example.com",
		PhoneNumber:        "+1 555 010 0199",
		Party:              "Independent",
		Position:           "Mayor",
		RegistrationStatus: status,
		Wallet:             TestWallet(),
	}

	if err := s.UpsertCandidate(context.Background(), candidate); err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	return candidate
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
