// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Supported database backends
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMongo    = "mongo"
)

type Config struct {
	Port          int
	DatabaseURL   string
	DatabaseType  string
	MongoDatabase string
	AdminKey      string

	LedgerURL       string
	PoolSigningKey  string
	PoolAddress     string
	TreasuryAddress string
	TokenMint       string

	SeedFile   string
	CORSOrigin string
}

// ParseFlags loads .env, parses flags and fills the gaps from the
// environment. Flags take precedence over environment variables.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	flags := pflag.NewFlagSet("votingday", pflag.ContinueOnError)

	// Network and storage
	flags.IntVarP(&cfg.Port, "port", "p", 0, "Server port")
	flags.StringVarP(&cfg.DatabaseURL, "database-url", "d", "", "Database URL")
	flags.StringVarP(&cfg.DatabaseType, "database-type", "t", "", "Database type (sqlite, postgres or mongo)")
	flags.StringVar(&cfg.MongoDatabase, "mongo-database", "", "MongoDB database name")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.StringVar(&cfg.AdminKey, "admin-key", "", "Operator key for /admin endpoints (prefer env)")
	flags.StringVar(&cfg.PoolSigningKey, "pool-key", "", "Hex pool signing key (prefer env)")

	// Ledger
	flags.StringVar(&cfg.LedgerURL, "ledger-url", "", "Ledger gateway JSON-RPC URL (empty = in-process ledger)")
	flags.StringVar(&cfg.PoolAddress, "pool-address", "", "Voting pool wallet public key")
	flags.StringVar(&cfg.TreasuryAddress, "treasury-address", "", "Treasury wallet public key")
	flags.StringVar(&cfg.TokenMint, "token-mint", "", "Voting token asset id")

	flags.StringVar(&cfg.SeedFile, "seed", "", "YAML file with voters and candidates to load at startup")
	flags.StringVar(&cfg.CORSOrigin, "cors-origin", "", "Allowed CORS origin (default: echo request origin)")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 5000 // default
		}
	}

	fallback(&cfg.DatabaseURL, "DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	fallback(&cfg.DatabaseType, "DATABASE_TYPE")
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = DatabaseSQLite
	}
	switch cfg.DatabaseType {
	case DatabaseSQLite, DatabasePostgres, DatabaseMongo:
	default:
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	fallback(&cfg.MongoDatabase, "MONGODB_DATABASE")
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "votingday"
	}

	fallback(&cfg.LedgerURL, "LEDGER_RPC_URL")
	fallback(&cfg.PoolSigningKey, "POOL_SIGNING_KEY")
	fallback(&cfg.SeedFile, "SEED_FILE")
	fallback(&cfg.CORSOrigin, "CORS_ORIGIN")

	// Required values
	required := []struct {
		value *string
		env   string
	}{
		{&cfg.AdminKey, "ADMIN_KEY"},
		{&cfg.PoolAddress, "VOTING_POOL_ADDRESS"},
		{&cfg.TreasuryAddress, "TREASURY_ADDRESS"},
		{&cfg.TokenMint, "VOTING_TOKEN_MINT"},
	}
	for _, r := range required {
		fallback(r.value, r.env)
		if *r.value == "" {
			return Config{}, errors.New(r.env + " required")
		}
	}

	return cfg, nil
}

func fallback(value *string, env string) {
	if *value == "" {
		*value = os.Getenv(env)
	}
}
