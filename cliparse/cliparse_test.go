// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_KEY", "operator")
	t.Setenv("VOTING_POOL_ADDRESS", "PoolWallet1111111111111111111111111")
	t.Setenv("TREASURY_ADDRESS", "TreasuryWallet111111111111111111111")
	t.Setenv("VOTING_TOKEN_MINT", "VoteMint11111111111111111111111111")
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("DATABASE_TYPE", "postgres")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != DatabasePostgres {
		t.Errorf("expected postgres, got %s", cfg.DatabaseType)
	}
	if cfg.AdminKey != "operator" {
		t.Errorf("expected admin key from env, got %q", cfg.AdminKey)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:test.db", "--token-mint", "OtherMint"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.TokenMint != "OtherMint" {
		t.Errorf("CLI should override env: expected OtherMint, got %s", cfg.TokenMint)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("PORT")
	os.Unsetenv("DATABASE_TYPE")
	os.Unsetenv("MONGODB_DATABASE")

	cfg, err := ParseFlags([]string{"--database-url", "file:test.db"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 5000 {
		t.Errorf("expected default port 5000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != DatabaseSQLite {
		t.Errorf("expected default sqlite, got %s", cfg.DatabaseType)
	}
	if cfg.MongoDatabase != "votingday" {
		t.Errorf("expected default mongo database, got %s", cfg.MongoDatabase)
	}
}

func TestParseFlags_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"admin key", "ADMIN_KEY"},
		{"pool address", "VOTING_POOL_ADDRESS"},
		{"treasury address", "TREASURY_ADDRESS"},
		{"token mint", "VOTING_TOKEN_MINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("DATABASE_URL", "file:test.db")
			t.Setenv(tt.unset, "")

			if _, err := ParseFlags([]string{}); err == nil {
				t.Errorf("expected error when %s is missing", tt.unset)
			}
		})
	}
}

func TestParseFlags_InvalidDatabaseType(t *testing.T) {
	setRequiredEnv(t)

	_, err := ParseFlags([]string{"-d", "file:test.db", "-t", "cassandra"})
	if err == nil {
		t.Error("expected error for unsupported database type")
	}
}

func TestParseFlags_InvalidPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "not-a-port")
	t.Setenv("DATABASE_URL", "file:test.db")

	if _, err := ParseFlags([]string{}); err == nil {
		t.Error("expected error for invalid PORT")
	}
}
