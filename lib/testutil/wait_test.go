// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
)

// fatalRecorder captures Fatalf instead of stopping the goroutine, so
// the helpers' failure paths can be checked. Fatalf panics to unwind
// out of the helper the way runtime.Goexit would.
type fatalRecorder struct {
	message string
}

func (recorder *fatalRecorder) Helper() {}

func (recorder *fatalRecorder) Fatalf(format string, args ...any) {
	recorder.message = fmt.Sprintf(format, args...)
	panic(recorder)
}

func expectFatal(t *testing.T, want string, call func(TB)) {
	t.Helper()
	recorder := &fatalRecorder{}
	func() {
		defer func() {
			if recovered := recover(); recovered != nil && recovered != recorder {
				panic(recovered)
			}
		}()
		call(recorder)
	}()
	if !strings.Contains(recorder.message, want) {
		t.Errorf("failure message = %q, want it to contain %q", recorder.message, want)
	}
}

func TestReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42
	if got := Receive(t, ch, "buffered value"); got != 42 {
		t.Errorf("Receive = %d, want 42", got)
	}

	closed := make(chan int)
	close(closed)
	expectFatal(t, "pipe read result: channel closed", func(tb TB) {
		Receive(tb, closed, "pipe read result")
	})
}

func TestSendAndClosed(t *testing.T) {
	ch := make(chan string, 1)
	Send(t, ch, "ping", "queueing payload")
	if got := <-ch; got != "ping" {
		t.Errorf("sent %q, want ping", got)
	}

	done := make(chan struct{})
	close(done)
	Closed(t, done, "completion")
}

func TestPipeName(t *testing.T) {
	first, second := PipeName("echo"), PipeName("echo")
	if first == second {
		t.Fatalf("PipeName repeated %q", first)
	}
	if !strings.HasPrefix(first, `\\.\pipe\pipespy-echo-`) {
		t.Errorf("PipeName = %q", first)
	}
}
