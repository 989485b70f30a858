// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package secret holds the settlement pool's signing key in memory
// allocated with mmap outside the Go heap, locked with mlock and marked
// MADV_DONTDUMP. Callers borrow the bytes through Use and never keep a
// copy; the buffer is zeroed and released by Close at process shutdown.
package secret
