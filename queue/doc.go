// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package queue implements the deferred settlement queue.

After a vote is recorded the protocol enqueues a Settlement keyed by the
signature of its synchronous transfer. The job is dispatched after a delay
drawn uniformly from [60s, 300s), so the time a ballot is cast cannot be
matched to a ledger transaction by watching the clock.

# Lifecycle

	Enqueue  persist job (pending) and arm a timer
	dispatch Confirm(signature); if unknown, replay the transfer
	         success -> settled, error -> failed (logged, no retry)
	Retry    operator re-arms a failed job with a fresh delay
	Start    re-arm every pending job after a restart
	Close    stop timers and wait for running dispatches

Duplicate signatures are no-ops at enqueue. Dispatch never moves funds
twice: a confirmed signature is settled as is, and replays carry the same
memo so the ledger returns the original receipt.

# Payloads

The voter wallet, candidate wallet, memo secret and candidate snapshot are
CBOR-encoded (core deterministic) and sealed with XChaCha20-Poly1305 under
a key derived from the pool key with HKDF-SHA256. The job signature is
authenticated data, so a payload cannot be moved to another job.

# Example

	q, err := queue.New(store, channel, poolKey, queue.Options{})
	if err := q.Start(ctx); err != nil { ... }
	defer q.Close()

	job, inserted, err := q.Enqueue(ctx, queue.Settlement{...})
*/
package queue
