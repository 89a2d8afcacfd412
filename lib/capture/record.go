// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"time"

	"github.com/zeebo/blake3"
)

// Operation names the intercepted primitive a record came from.
type Operation string

const (
	OperationRead  Operation = "read"
	OperationWrite Operation = "write"
)

// Record is one observed pipe transfer.
type Record struct {
	// Sequence is assigned by the writer, starting at 1.
	Sequence uint64 `cbor:"seq"`

	// TimeNanos is the observation time in Unix nanoseconds.
	TimeNanos int64 `cbor:"time"`

	Operation Operation `cbor:"op"`
	Handle    uint64    `cbor:"handle"`

	// Requested is the byte count the caller asked for.
	Requested uint32 `cbor:"requested"`

	// Transferred is the byte count the primitive reported. For
	// writes observed before forwarding it equals Requested.
	Transferred uint32 `cbor:"transferred"`

	// Data holds the observed bytes, possibly truncated.
	Data []byte `cbor:"data,omitempty"`

	// Truncated is set when Data is shorter than the observed payload.
	Truncated bool `cbor:"truncated,omitempty"`

	// Digest is the keyed BLAKE3 digest of the full observed payload.
	Digest []byte `cbor:"digest,omitempty"`

	// Error is the failure the primitive reported, if any.
	Error string `cbor:"error,omitempty"`
}

// Time returns the observation time.
func (record Record) Time() time.Time {
	return time.Unix(0, record.TimeNanos)
}

// payloadDomainKey separates capture digests from any other BLAKE3
// use of the same bytes. ASCII "pipespy.capture.payload", zero-padded.
var payloadDomainKey = [32]byte{
	'p', 'i', 'p', 'e', 's', 'p', 'y', '.', 'c', 'a', 'p', 't', 'u', 'r', 'e', '.',
	'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest computes the payload digest stored in records.
func Digest(payload []byte) []byte {
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		panic("capture: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	return hasher.Sum(nil)
}

// Verified reports whether the record's digest matches its data.
// Truncated records cannot be verified and report false.
func (record Record) Verified() bool {
	if record.Truncated || len(record.Digest) == 0 {
		return false
	}
	return bytes.Equal(record.Digest, Digest(record.Data))
}
