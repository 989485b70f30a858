// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting implements the vote-casting protocol.

A vote moves through these states:

	Idle       voter identified, no ballot issued
	Initiated  one token moved treasury -> pool, secret bound to a session
	Settling   a cast holds the session (concurrent casts get ErrConflict)
	Recorded   hasVoted set, snapshot stored, session destroyed
	Expired    session older than 30 minutes, destroyed
	Aborted    voter already voted or vanished, session destroyed

# Cast

Cast runs these steps in order:

 1. candidate exists and is completed (else ErrNotFound / ErrValidation)
 2. session is live and idle (else ErrUnauthorized / ErrConflict)
 3. voter has not voted (else ErrConflict)
 4. transfer voter -> candidate with the secret as memo
 5. enqueue the deferred settlement keyed by the transfer signature
 6. re-check the session window
 7. set hasVoted with a compare-and-set; losers get ErrConflict
 8. increment the candidate tally (a failure is logged, not returned)
 9. destroy the session

Failures in steps 4 to 6 leave hasVoted unchanged. Transfer and enqueue
failures keep the session so the kiosk can retry; the ledger and the queue
both treat the replay as a no-op.

# Errors

Every error is a *StepError. Use errors.Is with ErrNotFound, ErrConflict,
ErrUnauthorized, ErrValidation, ErrChannelUnavailable or ErrInternal to
pick an HTTP status, and errors.As to read the failing step and the state
the attempt was left in.
*/
package voting
