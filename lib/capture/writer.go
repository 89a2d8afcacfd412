// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/pipespy/lib/clock"
	"github.com/bureau-foundation/pipespy/lib/codec"
)

// magic opens every capture file: "PIPESPY" and the format version.
var magic = [8]byte{'P', 'I', 'P', 'E', 'S', 'P', 'Y', 1}

// frameHeaderSize is tag + uncompressed length + stored length.
const frameHeaderSize = 9

// DefaultMaxPayload bounds the bytes kept per record when Options
// leaves MaxPayload unset.
const DefaultMaxPayload = 64 * 1024

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("capture: writer closed")

// Options configures a Writer.
type Options struct {
	// Compression is requested per frame. Defaults to CompressionNone.
	Compression Compression

	// MaxPayload truncates record data. Zero selects
	// DefaultMaxPayload; negative keeps no data at all.
	MaxPayload int

	// Clock stamps records. Defaults to clock.Real().
	Clock clock.Clock
}

// Writer appends records to a capture stream.
type Writer struct {
	mutex       sync.Mutex
	destination io.Writer
	buffered    *bufio.Writer
	sequence    uint64
	closed      bool

	compression Compression
	maxPayload  int
	clock       clock.Clock

	dropped atomic.Uint64
}

// Create opens a new capture file at path, truncating any previous
// capture, and writes the file header.
func Create(path string, options Options) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	writer, err := NewWriter(file, options)
	if err != nil {
		file.Close()
		return nil, err
	}
	return writer, nil
}

// NewWriter writes the capture header to w and returns a Writer that
// appends frames to it. If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer, options Options) (*Writer, error) {
	if _, err := w.Write(magic[:]); err != nil {
		return nil, fmt.Errorf("writing capture header: %w", err)
	}
	maxPayload := options.MaxPayload
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	if maxPayload < 0 {
		maxPayload = 0
	}
	recordClock := options.Clock
	if recordClock == nil {
		recordClock = clock.Real()
	}
	return &Writer{
		destination: w,
		buffered:    bufio.NewWriter(w),
		compression: options.Compression,
		maxPayload:  maxPayload,
		clock:       recordClock,
	}, nil
}

// Append stamps record with the next sequence number and the current
// time, digests and truncates its data, and writes one frame. The
// caller's Data slice is not retained or modified.
func (writer *Writer) Append(record Record) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		writer.dropped.Add(1)
		return ErrClosed
	}

	writer.sequence++
	record.Sequence = writer.sequence
	record.TimeNanos = writer.clock.Now().UnixNano()
	if record.Data != nil {
		record.Digest = Digest(record.Data)
		if len(record.Data) > writer.maxPayload {
			record.Data = record.Data[:writer.maxPayload]
			record.Truncated = true
		}
	}

	encoded, err := codec.Marshal(record)
	if err != nil {
		writer.dropped.Add(1)
		return fmt.Errorf("encoding record %d: %w", record.Sequence, err)
	}
	tag, stored, err := compressFrame(encoded, writer.compression)
	if err != nil {
		writer.dropped.Add(1)
		return fmt.Errorf("compressing record %d: %w", record.Sequence, err)
	}

	var header [frameHeaderSize]byte
	header[0] = byte(tag)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(encoded)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(stored)))
	if _, err := writer.buffered.Write(header[:]); err != nil {
		return writer.failed(record.Sequence, err)
	}
	if _, err := writer.buffered.Write(stored); err != nil {
		return writer.failed(record.Sequence, err)
	}
	return nil
}

// failed counts a record lost to a write error and resets the buffer
// so later records are not silenced by the latched error. The frame
// stream may be corrupt from this point; readers stop at the damage.
func (writer *Writer) failed(sequence uint64, err error) error {
	writer.dropped.Add(1)
	writer.buffered.Reset(writer.destination)
	return fmt.Errorf("writing record %d: %w", sequence, err)
}

// Flush writes buffered frames to the underlying writer.
func (writer *Writer) Flush() error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.closed {
		return nil
	}
	return writer.buffered.Flush()
}

// Close flushes and, when the destination is an io.Closer, closes it.
// Subsequent Appends are counted as dropped. Close is idempotent.
func (writer *Writer) Close() error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.closed {
		return nil
	}
	writer.closed = true
	flushErr := writer.buffered.Flush()
	var closeErr error
	if closer, ok := writer.destination.(io.Closer); ok {
		closeErr = closer.Close()
	}
	return errors.Join(flushErr, closeErr)
}

// Dropped returns the number of records that could not be written.
func (writer *Writer) Dropped() uint64 {
	return writer.dropped.Load()
}
