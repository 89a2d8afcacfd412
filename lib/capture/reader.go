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

	"github.com/bureau-foundation/pipespy/lib/codec"
)

// maxFrameSize rejects corrupt length fields before allocating.
const maxFrameSize = 64 * 1024 * 1024

var (
	// ErrNotCapture is returned when the stream does not start with
	// the capture magic.
	ErrNotCapture = errors.New("capture: not a capture file")

	// ErrDigestMismatch is returned by Next when an untruncated
	// record's data does not match its digest.
	ErrDigestMismatch = errors.New("capture: payload digest mismatch")
)

// Reader decodes records from a capture stream.
type Reader struct {
	source io.Reader
	closer io.Closer
}

// Open opens the capture file at path. Close the returned reader when
// done.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// NewReader validates the capture header on r.
func NewReader(r io.Reader) (*Reader, error) {
	buffered := bufio.NewReader(r)
	var header [len(magic)]byte
	if _, err := io.ReadFull(buffered, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotCapture
		}
		return nil, fmt.Errorf("reading capture header: %w", err)
	}
	if header != magic {
		return nil, ErrNotCapture
	}
	return &Reader{source: buffered}, nil
}

// Next returns the next record. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF when the last frame is cut short, as
// happens when the host process dies between flushes.
//
// A record whose digest does not match is returned together with
// ErrDigestMismatch so callers can still display it.
func (reader *Reader) Next() (Record, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(reader.source, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, io.ErrUnexpectedEOF
	}

	tag := Compression(header[0])
	uncompressedSize := binary.BigEndian.Uint32(header[1:5])
	storedSize := binary.BigEndian.Uint32(header[5:9])
	if uncompressedSize > maxFrameSize || storedSize > maxFrameSize {
		return Record{}, fmt.Errorf("capture: frame size %d/%d exceeds limit", storedSize, uncompressedSize)
	}

	stored := make([]byte, storedSize)
	if _, err := io.ReadFull(reader.source, stored); err != nil {
		return Record{}, io.ErrUnexpectedEOF
	}
	encoded, err := decompressFrame(stored, tag, int(uncompressedSize))
	if err != nil {
		return Record{}, fmt.Errorf("capture: %w", err)
	}

	var record Record
	if err := codec.Unmarshal(encoded, &record); err != nil {
		return Record{}, fmt.Errorf("capture: decoding record: %w", err)
	}
	if !record.Truncated && len(record.Digest) > 0 && !record.Verified() {
		return record, ErrDigestMismatch
	}
	return record, nil
}

// All reads every remaining record. A truncated final frame ends the
// list without error; the records before it are returned.
func (reader *Reader) All() ([]Record, error) {
	var records []Record
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

// Close closes the underlying file when the reader was created by Open.
func (reader *Reader) Close() error {
	if reader.closer == nil {
		return nil
	}
	return reader.closer.Close()
}
