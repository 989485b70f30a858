// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store persists voters, candidates and deferred settlement jobs.

# Backends

Two implementations satisfy Store:

  - SQLStore on database/sql, used with lib/pq (postgres) or
    modernc.org/sqlite. The schema comes from package db.
  - MongoStore on the official MongoDB driver, with collections voters,
    candidates and settlement_jobs.

# Atomic Transitions

The vote protocol depends on two writes being atomic in the store itself:

	MarkVoted          UPDATE voter ... WHERE id = $1 AND has_voted = FALSE
	                   FindOneAndUpdate({_id, hasVoted: false}, {$set: ...})

	IncrementVoteCount UPDATE candidate SET votes = votes + 1 WHERE id = $1
	                   FindOneAndUpdate({_id}, {$inc: {votes: 1}})

When the MarkVoted guard does not match, the store reads the voter once to
report ErrNotFound or ErrConflict. That read never decides whether the
write happens.

# Errors

  - ErrNotFound: no record with that key
  - ErrConflict: the record exists but is not in the required state
    (voter already voted, job not pending or not failed)

# Jobs

InsertJob is keyed by transfer signature; a second insert with the same
signature returns false and stores nothing. Jobs move
pending → settled | failed through FinishJob, and failed → pending through
RearmJob.
*/
package store
