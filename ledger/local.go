// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"log/slog"
	"sync"
)

// LocalChannel is an in-process ledger. Every transfer is signed by the
// pool key and confirmed immediately. Replaying a transfer with the same
// accounts and memo returns the original receipt instead of moving funds
// twice. Balances are tracked but not enforced: the treasury mints.
type LocalChannel struct {
	signer *Signer
	asset  string
	logger *slog.Logger

	mu        sync.Mutex
	accounts  map[string]AccountRef
	balances  map[string]int64
	transfers map[string]*Receipt
	confirmed map[string]bool
}

func NewLocalChannel(signer *Signer, asset string, logger *slog.Logger) *LocalChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalChannel{
		signer:    signer,
		asset:     asset,
		logger:    logger,
		accounts:  make(map[string]AccountRef),
		balances:  make(map[string]int64),
		transfers: make(map[string]*Receipt),
		confirmed: make(map[string]bool),
	}
}

func (c *LocalChannel) EnsureAccount(ctx context.Context, owner, asset string) (AccountRef, error) {
	if owner == "" {
		return AccountRef{}, ErrWalletMissing
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ensureLocked(owner, asset), nil
}

func (c *LocalChannel) ensureLocked(owner, asset string) AccountRef {
	key := owner + "\x00" + asset
	if ref, ok := c.accounts[key]; ok {
		return ref
	}

	ref := AccountRef{Address: DeriveAddress(owner, asset), Owner: owner, Asset: asset}
	c.accounts[key] = ref
	c.logger.Info("ledger account created", "owner", owner, "asset", asset, "address", ref.Address)

	return ref
}

func (c *LocalChannel) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if err := checkTransfer(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.ensureLocked(req.From.PublicKey, c.asset)
	to := c.ensureLocked(req.To.PublicKey, c.asset)

	dedupKey := from.Address + "\x00" + to.Address + "\x00" + req.Memo
	if receipt, ok := c.transfers[dedupKey]; ok {
		c.logger.Info("ledger transfer replayed", "signature", receipt.Signature)
		copied := *receipt
		return &copied, nil
	}

	signature, err := c.signer.Sign(transferDigest(from.Address, to.Address, c.asset, req.Amount, req.Memo))
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{Signature: signature, FromAccount: from.Address, ToAccount: to.Address}
	c.transfers[dedupKey] = receipt
	c.confirmed[signature] = true
	c.balances[from.Address] -= int64(req.Amount)
	c.balances[to.Address] += int64(req.Amount)

	c.logger.Info("ledger transfer",
		"signature", signature,
		"from", from.Address,
		"to", to.Address,
		"amount", req.Amount,
	)

	copied := *receipt
	return &copied, nil
}

func (c *LocalChannel) Confirm(ctx context.Context, signature string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.confirmed[signature], nil
}

// BalanceOf returns the balance of owner's account in the channel asset.
func (c *LocalChannel) BalanceOf(owner string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.balances[DeriveAddress(owner, c.asset)]
}

// TransferCount returns the number of distinct transfers recorded.
func (c *LocalChannel) TransferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.transfers)
}
