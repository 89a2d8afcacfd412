// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hooksim simulates a host process for exercising the
// interceptor without Windows.
//
// A [Process] bundles three things that are external collaborators in
// a real deployment:
//
//   - a [Kernel]: an in-memory implementation of the intercepted
//     primitives with a per-process handle table, anonymous pipes,
//     named pipe instances, plain files and handle duplication;
//   - a detour engine ([hook.Engine]) with a patch table that
//     redirects a symbol to a replacement entry point, plus test
//     controls to hold an installation mid-flight ([Process.HoldDetour])
//     or make it fail ([Process.FailDetour]);
//   - an ABI ([hook.ABI]) whose entry points are table indices rather
//     than machine addresses.
//
// [Host] is the host program's view: each method calls through
// whatever entry point the patch table currently holds for the symbol,
// exactly as host code calling an import would.
//
// Handle values are multiples of four starting at 0x40 and freed
// values are reused most-recently-freed first, as on Windows. Pipe
// writes never block; reads block until data arrives or every write
// end is closed.
package hooksim
