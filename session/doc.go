// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session keeps server-side voting sessions.

A session is created when a verified voter initiates voting and holds the
voter id, the one-time vote secret and the initiation time. The client only
ever sees the opaque token.

# Lifecycle

	Open      new session (or replace the caller's live one)
	Reserve   initiate starts: claim the token before the ballot is issued
	Fill      initiate succeeded: bind voter and secret, restart the window
	Cancel    initiate failed: drop the claim, keep any earlier session
	Begin     cast starts: validate and mark busy
	CheckLive cast is about to commit: re-check expiry
	Release   cast failed in a retryable way: clear busy, keep session
	Consume   cast finished: destroy session

# Expiry

Sessions expire Window (30 minutes) after initiation. Expiry is lazy: any
access to an expired session destroys it and returns ErrExpired. Reserve also
drops idle expired sessions it finds.

# Concurrency

Manager is safe for concurrent use. Begin is the in-flight gate: only one
cast per session can hold it, later callers get ErrInFlight.
*/
package session
