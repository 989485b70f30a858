// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/votingday/kiosk/db"
	"github.com/votingday/kiosk/store"
	"modernc.org/sqlite"
)

// ErrInjected is returned for the statement a FaultPlan fails
var ErrInjected = errors.New("injected database fault")

// FaultPlan fails the first statement containing Match that runs after a
// statement containing After. Later statements run normally.
type FaultPlan struct {
	After string
	Match string

	mu    sync.Mutex
	armed bool
	fired bool
}

func (p *FaultPlan) check(query string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fired {
		return nil
	}
	if p.armed && strings.Contains(query, p.Match) {
		p.fired = true
		return ErrInjected
	}
	if strings.Contains(query, p.After) {
		p.armed = true
	}
	return nil
}

// Fired reports whether the planned fault was injected
func (p *FaultPlan) Fired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fired
}

// SetupFaultyTestStore is SetupTestStore over a connection that injects
// the failure described by plan.
func SetupFaultyTestStore(t *testing.T, plan *FaultPlan) *store.SQLStore {
	t.Helper()

	conn := sql.OpenDB(faultConnector{plan: plan, driver: &sqlite.Driver{}})
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return store.NewSQLStore(conn)
}

type faultConnector struct {
	plan   *FaultPlan
	driver *sqlite.Driver
}

func (c faultConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.driver.Open("file::memory:")
	if err != nil {
		return nil, err
	}
	return &faultConn{Conn: conn, plan: c.plan}, nil
}

func (c faultConnector) Driver() driver.Driver {
	return c.driver
}

type faultConn struct {
	driver.Conn
	plan *FaultPlan
}

func (c *faultConn) Prepare(query string) (driver.Stmt, error) {
	if err := c.plan.check(query); err != nil {
		return nil, err
	}
	return c.Conn.Prepare(query)
}

func (c *faultConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	if err := c.plan.check(query); err != nil {
		return nil, err
	}
	return execer.ExecContext(ctx, query, args)
}

func (c *faultConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryer, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	if err := c.plan.check(query); err != nil {
		return nil, err
	}
	return queryer.QueryContext(ctx, query, args)
}

func (c *faultConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if beginner, ok := c.Conn.(driver.ConnBeginTx); ok {
		return beginner.BeginTx(ctx, opts)
	}
	return c.Conn.Begin()
}
