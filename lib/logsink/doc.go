// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logsink provides pipespy's file-backed diagnostic log.
//
// The sink lives inside someone else's process, so it must never be
// the reason a host call fails or stalls: [Sink.Write] always reports
// success to its caller and counts what it could not persist instead.
// Records are buffered and reach disk when the buffer fills, on
// [Sink.Flush], and on [Sink.Close] at detach.
//
// [NewLogger] builds the slog.Logger that writes to a sink, with the
// extra [LevelTrace] used by the readiness gate's wait diagnostics.
package logsink
