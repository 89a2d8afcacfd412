// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logsink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// bufferSize is the write buffer in front of the log file.
const bufferSize = 64 * 1024

// Sink is a buffered, fail-open io.Writer over a log file. Safe for
// concurrent use.
type Sink struct {
	mutex       sync.Mutex
	destination io.Writer
	writer      *bufio.Writer
	closed      bool

	dropped atomic.Uint64
}

// Open creates (or appends to) the log file at path, creating parent
// directories as needed.
func Open(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return New(file), nil
}

// New wraps an arbitrary writer. If w is also an io.Closer, Close
// closes it.
func New(w io.Writer) *Sink {
	return &Sink{
		destination: w,
		writer:      bufio.NewWriterSize(w, bufferSize),
	}
}

// Write buffers p. It never returns an error: failed or post-Close
// writes are counted in Dropped and otherwise discarded.
func (sink *Sink) Write(p []byte) (int, error) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	if sink.closed {
		sink.dropped.Add(uint64(len(p)))
		return len(p), nil
	}
	if _, err := sink.writer.Write(p); err != nil {
		sink.dropped.Add(uint64(len(p)))
		// bufio.Writer latches its first error; start over so a
		// transient failure does not silence the log forever.
		sink.writer.Reset(sink.destination)
	}
	return len(p), nil
}

// Flush writes buffered records to the file.
func (sink *Sink) Flush() error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if sink.closed {
		return nil
	}
	return sink.writer.Flush()
}

// Close flushes and closes the underlying file. Later writes are
// dropped. Close is idempotent.
func (sink *Sink) Close() error {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if sink.closed {
		return nil
	}
	sink.closed = true

	flushErr := sink.writer.Flush()
	if closer, ok := sink.destination.(io.Closer); ok {
		if err := closer.Close(); err != nil && flushErr == nil {
			return fmt.Errorf("closing log file: %w", err)
		}
	}
	if flushErr != nil {
		return fmt.Errorf("flushing log file: %w", flushErr)
	}
	return nil
}

// Dropped returns the number of bytes that could not be written.
func (sink *Sink) Dropped() uint64 {
	return sink.dropped.Load()
}
