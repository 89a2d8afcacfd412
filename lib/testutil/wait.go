// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"time"
)

// Patience bounds every channel operation in this package. It is
// wall-clock time: the operations it guards are blocked in real
// goroutines, not on a fake clock.
const Patience = 5 * time.Second

// TB is the part of testing.TB the helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Receive returns the next value on ch. The test fails if ch is closed
// empty or nothing arrives within Patience; what names the awaited
// event in the failure.
//
//	original := testutil.Receive(t, resolved, "ReadFile gate release")
func Receive[T any](t TB, ch <-chan T, what string) T {
	t.Helper()
	timer := time.NewTimer(Patience) //nolint:realclock bounded wait
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", what)
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing arrived within %v", what, Patience)
	}
	panic("unreachable")
}

// Send delivers value on ch, failing the test if no receiver takes it
// within Patience.
func Send[T any](t TB, ch chan<- T, value T, what string) {
	t.Helper()
	timer := time.NewTimer(Patience) //nolint:realclock bounded wait
	defer timer.Stop()
	select {
	case ch <- value:
	case <-timer.C:
		t.Fatalf("%s: no receiver within %v", what, Patience)
	}
}

// Closed waits for a completion channel to close or fire.
func Closed(t TB, ch <-chan struct{}, what string) {
	t.Helper()
	timer := time.NewTimer(Patience) //nolint:realclock bounded wait
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: still open after %v", what, Patience)
	}
}
