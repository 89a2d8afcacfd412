// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package win32 holds the portable vocabulary of the Windows file and
// pipe primitives that pipespy intercepts: [Handle], [Overlapped],
// [SecurityAttributes], last-error codes as [Errno], and the string
// encodings used by the A and W variants of CreateNamedPipe.
//
// The types mirror golang.org/x/sys/windows field for field so that a
// pointer received from the host process can be reinterpreted without
// copying, but they compile on every platform. Only the [Caller]
// implementation that actually invokes an entry point
// ([SyscallCaller]) is Windows-specific; tests drive the same interface
// through the simulated process in lib/hooksim.
package win32
