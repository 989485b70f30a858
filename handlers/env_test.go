// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/votingday/kiosk/clock"
	"github.com/votingday/kiosk/ledger"
	"github.com/votingday/kiosk/middleware"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/queue"
	"github.com/votingday/kiosk/session"
	"github.com/votingday/kiosk/store"
	"github.com/votingday/kiosk/testutil"
	"github.com/votingday/kiosk/voting"
)

var epoch = time.Date(2026, time.May, 5, 8, 0, 0, 0, time.UTC)

const settleDelay = 2 * time.Minute

// switchedChannel fails Confirm while down is set, so settlement jobs
// can be driven into the failed state.
type switchedChannel struct {
	ledger.Channel
	down atomic.Bool
}

func (c *switchedChannel) Confirm(ctx context.Context, signature string) (bool, error) {
	if c.down.Load() {
		return false, ledger.ErrChannelUnavailable
	}
	return c.Channel.Confirm(ctx, signature)
}

type testEnv struct {
	store    *store.SQLStore
	clock    *clock.FakeClock
	channel  *switchedChannel
	queue    *queue.Queue
	protocol *voting.Protocol
	voters   *VoterHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	signer, key, err := ledger.GenerateSigner()
	if err != nil {
		t.Fatalf("GenerateSigner failed: %v", err)
	}
	t.Cleanup(func() { key.Close() })

	env := &testEnv{
		store:   testutil.SetupTestStore(t),
		clock:   clock.Fake(epoch),
		channel: &switchedChannel{Channel: ledger.NewLocalChannel(signer, testutil.TestTokenMint, nil)},
	}

	env.queue, err = queue.New(env.store, env.channel, key, queue.Options{
		Clock: env.clock,
		Delay: func() time.Duration { return settleDelay },
	})
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	t.Cleanup(func() { env.queue.Close() })

	cfg := testutil.GetTestConfig()
	env.protocol = voting.New(voting.Deps{
		Store:    env.store,
		Sessions: session.NewManager(env.clock),
		Channel:  env.channel,
		Settler:  env.queue,
		Clock:    env.clock,
	}, voting.Config{
		PoolAddress:     cfg.PoolAddress,
		TreasuryAddress: cfg.TreasuryAddress,
		TokenMint:       cfg.TokenMint,
	})
	env.voters = NewVoterHandler(env.store, env.protocol)

	return env
}

// initiate runs initiate-voting for voterID and returns the session token.
func (env *testEnv) initiate(t *testing.T, voterID string) string {
	t.Helper()

	req := testutil.MakeRequest("POST", "/voters/initiate-voting", models.InitiateVotingRequest{VoterID: voterID}, nil)
	w := httptest.NewRecorder()
	env.voters.InitiateVoting(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.InitiateVotingResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.SessionToken
}

// withSession attaches token as the session cookie.
func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	return req
}

// sessionCookie returns the voting_session cookie set on the response, if any.
func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}
