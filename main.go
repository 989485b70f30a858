// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/votingday/kiosk/cliparse"
	"github.com/votingday/kiosk/db"
	"github.com/votingday/kiosk/ledger"
	"github.com/votingday/kiosk/middleware"
	"github.com/votingday/kiosk/queue"
	"github.com/votingday/kiosk/router"
	"github.com/votingday/kiosk/secret"
	"github.com/votingday/kiosk/seed"
	"github.com/votingday/kiosk/session"
	"github.com/votingday/kiosk/store"
	"github.com/votingday/kiosk/voting"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("Database ready", "type", cfg.DatabaseType)

	// The pool key lives in a locked buffer; it is never logged
	signer, key, err := loadSigner(cfg)
	if err != nil {
		slog.Error("pool key rejected", "error", err)
		os.Exit(1)
	}
	defer key.Close()

	channel, closeChannel, err := openChannel(ctx, cfg, signer)
	if err != nil {
		slog.Error("ledger connection failed", "error", err)
		os.Exit(1)
	}
	defer closeChannel()

	settlements, err := queue.New(st, channel, key, queue.Options{})
	if err != nil {
		slog.Error("settlement queue setup failed", "error", err)
		os.Exit(1)
	}
	defer settlements.Close()

	if err := settlements.Start(ctx); err != nil {
		if errors.Is(err, queue.ErrForeignKey) {
			slog.Error("refusing to start: configure the pool key the pending settlements were queued under",
				"ephemeral_key", cfg.PoolSigningKey == "", "error", err)
		} else {
			slog.Error("settlement queue start failed", "error", err)
		}
		os.Exit(1)
	}

	if cfg.SeedFile != "" {
		if err := loadSeed(ctx, st, cfg.SeedFile); err != nil {
			slog.Error("seed failed", "file", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	protocol := voting.New(voting.Deps{
		Store:    st,
		Sessions: session.NewManager(nil),
		Channel:  channel,
		Settler:  settlements,
	}, voting.Config{
		PoolAddress:     cfg.PoolAddress,
		TreasuryAddress: cfg.TreasuryAddress,
		TokenMint:       cfg.TokenMint,
	})

	// Create router
	mux := router.NewRouter(router.Deps{
		Store:    st,
		Protocol: protocol,
		Queue:    settlements,
	}, cfg)

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(mux, cfg.CORSOrigin),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// Wait for Ctrl-C signal
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

func openStore(ctx context.Context, cfg cliparse.Config) (store.Store, error) {
	if cfg.DatabaseType == cliparse.DatabaseMongo {
		return store.NewMongoStore(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
	}

	dbConn, err := sql.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseType == cliparse.DatabaseSQLite {
		// Single writer; avoids SQLITE_BUSY under concurrent casts
		dbConn.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := dbConn.PingContext(ctx); err != nil {
		dbConn.Close()
		return nil, err
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}

	return store.NewSQLStore(dbConn), nil
}

func loadSigner(cfg cliparse.Config) (*ledger.Signer, *secret.Buffer, error) {
	if cfg.PoolSigningKey == "" {
		signer, key, err := ledger.GenerateSigner()
		if err != nil {
			return nil, nil, err
		}
		slog.Warn("no pool signing key configured, using an ephemeral key; settlements still queued at shutdown cannot be recovered",
			"signer", signer.Address())
		return signer, key, nil
	}

	key, err := secret.NewFromHex(cfg.PoolSigningKey)
	if err != nil {
		return nil, nil, err
	}
	signer, err := ledger.NewSigner(key)
	if err != nil {
		key.Close()
		return nil, nil, err
	}
	return signer, key, nil
}

func openChannel(ctx context.Context, cfg cliparse.Config, signer *ledger.Signer) (ledger.Channel, func(), error) {
	if cfg.LedgerURL == "" {
		slog.Warn("no ledger URL configured, using the in-process ledger")
		return ledger.NewLocalChannel(signer, cfg.TokenMint, nil), func() {}, nil
	}

	channel, err := ledger.DialRPC(ctx, cfg.LedgerURL, signer, cfg.TokenMint, nil)
	if err != nil {
		return nil, nil, err
	}
	return channel, channel.Close, nil
}

func loadSeed(ctx context.Context, st store.Identity, path string) error {
	f, err := seed.Load(path)
	if err != nil {
		return err
	}

	res, err := seed.Apply(ctx, st, f, time.Now())
	if err != nil {
		return errors.Join(errors.New("seed rejected"), err)
	}

	slog.Info("Seed loaded", "voters", res.Voters, "candidates", res.Candidates)
	return nil
}
