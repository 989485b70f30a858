// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package clock provides an injectable time source.

Components that expire sessions or schedule delayed work hold a Clock
instead of calling the time package directly:

	sessions := session.NewManager(clock.Real())

Tests inject a FakeClock and move time explicitly:

	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c.Advance(31 * time.Minute)

AfterFunc callbacks registered on a FakeClock run synchronously inside
Advance, in deadline order.
*/
package clock
