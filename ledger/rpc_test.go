// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
)

// testGateway is registered as the "ledger" service on an in-process
// go-ethereum RPC server.
type testGateway struct {
	mu          sync.Mutex
	accounts    map[string]AccountRef
	receipts    map[string]Receipt
	confirmed   map[string]bool
	getCalls    int
	createCalls int
}

func newTestGateway() *testGateway {
	return &testGateway{
		accounts:  make(map[string]AccountRef),
		receipts:  make(map[string]Receipt),
		confirmed: make(map[string]bool),
	}
}

func (g *testGateway) GetAccount(owner, asset string) (*AccountRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.getCalls++
	if ref, ok := g.accounts[owner+"/"+asset]; ok {
		return &ref, nil
	}
	return nil, nil
}

func (g *testGateway) CreateAccount(owner, asset string) (AccountRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.createCalls++
	ref := AccountRef{Address: DeriveAddress(owner, asset), Owner: owner, Asset: asset}
	g.accounts[owner+"/"+asset] = ref
	return ref, nil
}

func (g *testGateway) Transfer(t SignedTransfer) (*Receipt, error) {
	digest := transferDigest(t.FromAccount, t.ToAccount, t.Asset, uint64(t.Amount), t.Memo)
	if !Verify(t.Signer, digest, t.Signature) {
		return nil, errors.New("bad signature")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := t.FromAccount + "/" + t.ToAccount + "/" + t.Memo
	if receipt, ok := g.receipts[key]; ok {
		return &receipt, nil
	}

	receipt := Receipt{Signature: t.Signature, FromAccount: t.FromAccount, ToAccount: t.ToAccount}
	g.receipts[key] = receipt
	g.confirmed[t.Signature] = true
	return &receipt, nil
}

func (g *testGateway) GetSignatureStatus(signature string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.confirmed[signature], nil
}

func (g *testGateway) calls() (get, create int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getCalls, g.createCalls
}

func setupRPCChannel(t *testing.T) (*RPCChannel, *testGateway, *rpc.Client) {
	t.Helper()

	gateway := newTestGateway()
	server := rpc.NewServer()
	if err := server.RegisterName("ledger", gateway); err != nil {
		t.Fatalf("RegisterName failed: %v", err)
	}
	t.Cleanup(server.Stop)

	client := rpc.DialInProc(server)
	channel, err := NewRPCChannel(client, newTestSigner(t), testAsset, nil)
	if err != nil {
		t.Fatalf("NewRPCChannel failed: %v", err)
	}
	t.Cleanup(channel.Close)

	return channel, gateway, client
}

func TestRPCEnsureAccountIdempotent(t *testing.T) {
	channel, gateway, _ := setupRPCChannel(t)
	ctx := context.Background()

	first, err := channel.EnsureAccount(ctx, "PoolWallet", testAsset)
	if err != nil {
		t.Fatalf("EnsureAccount failed: %v", err)
	}
	second, err := channel.EnsureAccount(ctx, "PoolWallet", testAsset)
	if err != nil {
		t.Fatalf("second EnsureAccount failed: %v", err)
	}

	if first != second {
		t.Errorf("expected the same account, got %+v and %+v", first, second)
	}
	getCalls, createCalls := gateway.calls()
	if createCalls != 1 {
		t.Errorf("expected one createAccount call, got %d", createCalls)
	}
	if getCalls != 1 {
		t.Errorf("expected the second lookup to hit the cache, got %d getAccount calls", getCalls)
	}
}

func TestRPCEnsureAccountExisting(t *testing.T) {
	channel, gateway, _ := setupRPCChannel(t)
	gateway.CreateAccount("Treasury", testAsset)

	ref, err := channel.EnsureAccount(context.Background(), "Treasury", testAsset)
	if err != nil {
		t.Fatalf("EnsureAccount failed: %v", err)
	}
	if ref.Address != DeriveAddress("Treasury", testAsset) {
		t.Errorf("unexpected address %s", ref.Address)
	}
	if _, createCalls := gateway.calls(); createCalls != 1 {
		t.Error("an existing account must not be created again")
	}
}

func TestRPCTransferAndConfirm(t *testing.T) {
	channel, _, _ := setupRPCChannel(t)
	ctx := context.Background()
	req := TransferRequest{From: wallet("Voter"), To: wallet("Candidate"), Amount: 1, Memo: "secret"}

	receipt, err := channel.Transfer(ctx, req)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if receipt.Signature == "" {
		t.Fatal("expected a signature")
	}

	replayed, err := channel.Transfer(ctx, req)
	if err != nil {
		t.Fatalf("replayed Transfer failed: %v", err)
	}
	if replayed.Signature != receipt.Signature {
		t.Error("gateway should deduplicate the replayed transfer")
	}

	confirmed, err := channel.Confirm(ctx, receipt.Signature)
	if err != nil || !confirmed {
		t.Errorf("expected confirmed, got %v, %v", confirmed, err)
	}

	if _, err := channel.Transfer(ctx, TransferRequest{From: wallet("Voter"), Amount: 1}); !errors.Is(err, ErrWalletMissing) {
		t.Errorf("expected ErrWalletMissing, got %v", err)
	}
}

func TestRPCUnavailable(t *testing.T) {
	channel, _, client := setupRPCChannel(t)
	client.Close()

	if _, err := channel.Confirm(context.Background(), "0x01"); !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("expected ErrChannelUnavailable, got %v", err)
	}
	_, err := channel.Transfer(context.Background(), TransferRequest{From: wallet("A"), To: wallet("B"), Amount: 1})
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("expected ErrChannelUnavailable, got %v", err)
	}
}
