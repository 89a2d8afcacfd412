// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package intercept

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/bureau-foundation/pipespy/lib/capture"
	"github.com/bureau-foundation/pipespy/lib/hooksim"
	"github.com/bureau-foundation/pipespy/lib/testutil"
)

// logEntry is one captured log record with attribute values rendered
// as strings.
type logEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// recordingHandler is a slog.Handler that keeps every record and
// announces each on a buffered channel.
type recordingHandler struct {
	mutex   sync.Mutex
	entries []logEntry
	notify  chan logEntry
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{notify: make(chan logEntry, 4096)}
}

func (handler *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (handler *recordingHandler) Handle(_ context.Context, record slog.Record) error {
	entry := logEntry{Level: record.Level, Message: record.Message, Attrs: make(map[string]string)}
	record.Attrs(func(attr slog.Attr) bool {
		entry.Attrs[attr.Key] = attr.Value.Resolve().String()
		return true
	})
	handler.mutex.Lock()
	handler.entries = append(handler.entries, entry)
	handler.mutex.Unlock()
	select {
	case handler.notify <- entry:
	default:
	}
	return nil
}

func (handler *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return handler }
func (handler *recordingHandler) WithGroup(string) slog.Handler      { return handler }

// find returns every entry with message.
func (handler *recordingHandler) find(message string) []logEntry {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()
	var matches []logEntry
	for _, entry := range handler.entries {
		if entry.Message == message {
			matches = append(matches, entry)
		}
	}
	return matches
}

// waitFor blocks until a record with message arrives.
func (handler *recordingHandler) waitFor(t *testing.T, message string) logEntry {
	t.Helper()
	for {
		entry := testutil.Receive(t, handler.notify, fmt.Sprintf("log record %q", message))
		if entry.Message == message {
			return entry
		}
	}
}

// memoryRecorder keeps appended capture records, copying their data.
type memoryRecorder struct {
	mutex   sync.Mutex
	records []capture.Record
	err     error
}

func (recorder *memoryRecorder) Append(record capture.Record) error {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	if recorder.err != nil {
		return recorder.err
	}
	record.Data = append([]byte(nil), record.Data...)
	recorder.records = append(recorder.records, record)
	return nil
}

func (recorder *memoryRecorder) all() []capture.Record {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return append([]capture.Record(nil), recorder.records...)
}

// harness is a started controller over a simulated process.
type harness struct {
	process    *hooksim.Process
	host       *hooksim.Host
	logs       *recordingHandler
	recorder   *memoryRecorder
	controller *Controller
}

type harnessOption func(*ControllerConfig)

func withDuplicateHandle(config *ControllerConfig) { config.DuplicateHandle = true }

func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()
	process := hooksim.NewProcess()
	logs := newRecordingHandler()
	recorder := &memoryRecorder{}
	config := ControllerConfig{
		Engine:   process,
		ABI:      process,
		Logger:   slog.New(logs),
		Module:   hooksim.Module,
		Recorder: recorder,
		Fatal:    func(message string) { t.Fatalf("fatal: %s", message) },
	}
	for _, option := range options {
		option(&config)
	}
	controller, err := NewController(config)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := controller.Start("pipespy.dll"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &harness{
		process:    process,
		host:       process.Host(),
		logs:       logs,
		recorder:   recorder,
		controller: controller,
	}
}
