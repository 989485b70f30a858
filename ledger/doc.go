// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger settles votes as token transfers between custodial wallets.

# Channel

A Channel offers three operations:

	EnsureAccount(owner, asset) -> AccountRef   idempotent
	Transfer(from, to, amount, memo) -> Receipt
	Confirm(signature) -> bool

Each owner has one account per asset, at an address derived from
keccak256(owner, asset). Transfers are signed by the pool key held in a
Signer; the memo carries the per-vote secret as a correlation token.

# Implementations

  - LocalChannel: in-process ledger used in development and tests.
    Transfers confirm immediately and replays (same accounts, same memo)
    return the original receipt.
  - RPCChannel: client for a ledger gateway over go-ethereum JSON-RPC
    (ledger_getAccount, ledger_createAccount, ledger_transfer,
    ledger_getSignatureStatus). Accounts already seen are cached in an LRU.

# Errors

  - ErrWalletMissing: a party has no public key
  - ErrChannelUnavailable: the gateway could not be reached or refused

# Signing Key

The pool key lives in a secret.Buffer and is parsed only inside
Buffer.Use for one signature at a time. Neither the key nor the memo is
ever logged.
*/
package ledger
