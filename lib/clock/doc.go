// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The inbox uses time in exactly two places: subscribe streams emit
// heartbeat frames on a ticker, and the hub declares an application
// gone when no frame arrives within the heartbeat timeout. Both take a
// Clock so tests can drive them with Fake instead of sleeping:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	// ... start the stream reader ...
//	fake.WaitForTimers(1)
//	fake.Advance(90 * time.Second)
package clock
