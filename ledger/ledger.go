// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/votingday/kiosk/models"
)

var (
	ErrWalletMissing      = errors.New("wallet has no public key")
	ErrChannelUnavailable = errors.New("ledger unavailable")
)

// AccountRef is the ledger account holding asset for owner.
type AccountRef struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
}

// TransferRequest moves Amount units of the channel's asset between the
// accounts of two wallets. Memo is an opaque correlation token stored
// with the transfer; it does not authorize anything.
type TransferRequest struct {
	From   models.WalletRef
	To     models.WalletRef
	Amount uint64
	Memo   string
}

type Receipt struct {
	Signature   string `json:"signature"`
	FromAccount string `json:"fromAccount"`
	ToAccount   string `json:"toAccount"`
}

// Channel is the settlement side of a vote.
type Channel interface {
	// EnsureAccount returns the account for owner and asset, creating it
	// only if it does not exist yet.
	EnsureAccount(ctx context.Context, owner, asset string) (AccountRef, error)

	// Transfer fails with ErrWalletMissing if either wallet has no public
	// key and with ErrChannelUnavailable if the ledger cannot be reached.
	Transfer(ctx context.Context, req TransferRequest) (*Receipt, error)

	// Confirm reports whether a transfer with this signature is settled.
	Confirm(ctx context.Context, signature string) (bool, error)
}

// DeriveAddress returns the deterministic account address for owner and
// asset, the same on every node.
func DeriveAddress(owner, asset string) string {
	hash := crypto.Keccak256([]byte(owner), []byte{0}, []byte(asset))
	return common.BytesToAddress(hash[12:]).Hex()
}

// transferDigest is the 32-byte hash the pool key signs.
func transferDigest(fromAccount, toAccount, asset string, amount uint64, memo string) []byte {
	var amountBytes [8]byte
	binary.BigEndian.PutUint64(amountBytes[:], amount)

	return crypto.Keccak256(
		[]byte(fromAccount), []byte{0},
		[]byte(toAccount), []byte{0},
		[]byte(asset), []byte{0},
		amountBytes[:],
		[]byte(memo),
	)
}

func checkTransfer(req TransferRequest) error {
	if !req.From.HasPublicKey() || !req.To.HasPublicKey() {
		return ErrWalletMissing
	}
	if req.Amount == 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	return nil
}
