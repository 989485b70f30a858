// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"
)

// knownAccountsSize bounds the cache of accounts already seen on the
// gateway. One kiosk touches a few hundred wallets on election day.
const knownAccountsSize = 4096

// SignedTransfer is the ledger_transfer payload. The gateway verifies
// Signature over the transfer digest against Signer before applying it.
type SignedTransfer struct {
	FromAccount string         `json:"fromAccount"`
	ToAccount   string         `json:"toAccount"`
	Asset       string         `json:"asset"`
	Amount      hexutil.Uint64 `json:"amount"`
	Memo        string         `json:"memo"`
	Signer      string         `json:"signer"`
	Signature   string         `json:"signature"`
}

// RPCChannel talks to a ledger gateway over JSON-RPC. Methods:
//
//	ledger_getAccount(owner, asset) -> AccountRef | null
//	ledger_createAccount(owner, asset) -> AccountRef
//	ledger_transfer(SignedTransfer) -> Receipt
//	ledger_getSignatureStatus(signature) -> bool
type RPCChannel struct {
	client *rpc.Client
	signer *Signer
	asset  string
	logger *slog.Logger
	known  *lru.Cache
}

// DialRPC connects to the gateway at url (http, ws or ipc).
func DialRPC(ctx context.Context, url string, signer *Signer, asset string, logger *slog.Logger) (*RPCChannel, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrChannelUnavailable, url, err)
	}

	channel, err := NewRPCChannel(client, signer, asset, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return channel, nil
}

func NewRPCChannel(client *rpc.Client, signer *Signer, asset string, logger *slog.Logger) (*RPCChannel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	known, err := lru.New(knownAccountsSize)
	if err != nil {
		return nil, err
	}

	return &RPCChannel{
		client: client,
		signer: signer,
		asset:  asset,
		logger: logger,
		known:  known,
	}, nil
}

func (c *RPCChannel) Close() {
	c.client.Close()
}

func (c *RPCChannel) call(ctx context.Context, result any, method string, args ...any) error {
	if err := c.client.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrChannelUnavailable, method, err)
	}
	return nil
}

func (c *RPCChannel) EnsureAccount(ctx context.Context, owner, asset string) (AccountRef, error) {
	if owner == "" {
		return AccountRef{}, ErrWalletMissing
	}

	key := owner + "\x00" + asset
	if cached, ok := c.known.Get(key); ok {
		return cached.(AccountRef), nil
	}

	var existing *AccountRef
	if err := c.call(ctx, &existing, "ledger_getAccount", owner, asset); err != nil {
		return AccountRef{}, err
	}

	if existing == nil {
		var created AccountRef
		if err := c.call(ctx, &created, "ledger_createAccount", owner, asset); err != nil {
			return AccountRef{}, err
		}
		c.logger.Info("ledger account created", "owner", owner, "asset", asset, "address", created.Address)
		existing = &created
	}

	c.known.Add(key, *existing)
	return *existing, nil
}

func (c *RPCChannel) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if err := checkTransfer(req); err != nil {
		return nil, err
	}

	from, err := c.EnsureAccount(ctx, req.From.PublicKey, c.asset)
	if err != nil {
		return nil, err
	}
	to, err := c.EnsureAccount(ctx, req.To.PublicKey, c.asset)
	if err != nil {
		return nil, err
	}

	signature, err := c.signer.Sign(transferDigest(from.Address, to.Address, c.asset, req.Amount, req.Memo))
	if err != nil {
		return nil, err
	}

	var receipt Receipt
	err = c.call(ctx, &receipt, "ledger_transfer", SignedTransfer{
		FromAccount: from.Address,
		ToAccount:   to.Address,
		Asset:       c.asset,
		Amount:      hexutil.Uint64(req.Amount),
		Memo:        req.Memo,
		Signer:      c.signer.Address(),
		Signature:   signature,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("ledger transfer",
		"signature", receipt.Signature,
		"from", receipt.FromAccount,
		"to", receipt.ToAccount,
		"amount", req.Amount,
	)

	return &receipt, nil
}

func (c *RPCChannel) Confirm(ctx context.Context, signature string) (bool, error) {
	var confirmed bool
	if err := c.call(ctx, &confirmed, "ledger_getSignatureStatus", signature); err != nil {
		return false, err
	}
	return confirmed, nil
}
