// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code holds a Clock instead of calling time.Now or
// time.NewTicker directly. Real() provides the standard
// library behavior; Fake() provides a deterministic clock that advances
// only when Advance is called.
//
// # FakeClock Synchronization
//
// When a goroutine calls NewTicker on a FakeClock, it registers a
// pending waiter. Use WaitForTimers to block until a
// specific number of waiters are registered before calling Advance.
// This removes the race between a blocked readiness gate registering
// its poll ticker and the test advancing time.
package clock
