// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides pipespy's CBOR encoding configuration.
//
// The diagnostic log is JSON (slog); the capture file is CBOR. Capture
// records are written from inside intercepted host calls, so the
// encoding has to be compact and allocation-light, and the same record
// must always produce the same bytes so that frames can be compared
// and deduplicated across runs. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
//
//	data, err := codec.Marshal(record)
//	err = codec.Unmarshal(data, &record)
//
// Types serialized only as CBOR use `cbor` struct tags.
package codec
