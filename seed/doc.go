// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package seed loads voter and candidate fixtures from YAML at boot.
//
// A file is validated as a whole before anything is written. Candidates
// must be at least 18 on the seed date and carry a well-formed email and
// phone number (+, digits, spaces or dashes, ten or more). Records are
// upserted by RFID tag and national id, so seeding twice is harmless and
// never resets hasVoted or vote tallies.
package seed
