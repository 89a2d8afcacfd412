// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture records observed pipe traffic to a binary file.
//
// The diagnostic log shows what crossed a pipe as text; a capture
// keeps the exact bytes for later inspection with pipespy-capture. A
// capture file is an 8-byte magic ("PIPESPY" followed by format
// version 1) and a sequence of frames:
//
//	+-----+------------------+--------------+-----------------+
//	| tag | uncompressed len | stored len   | stored bytes    |
//	| 1 B | 4 B big-endian   | 4 B big-end. | stored len B    |
//	+-----+------------------+--------------+-----------------+
//
// Each frame holds one CBOR-encoded [Record]. The tag names the
// [Compression] applied to that frame; frames that do not shrink are
// stored raw regardless of the configured algorithm.
//
// Every record carries a BLAKE3 keyed digest of the full observed
// payload, computed before the payload is truncated to the writer's
// MaxPayload, so a reader can tell identical traffic apart from
// merely similar traffic even when the bytes were cut short.
//
// [Writer] is safe for concurrent use and, like the log sink, never
// lets a failure reach the intercepted call: [Writer.Append] errors
// are for tests and counters, and the interceptor discards them.
package capture
