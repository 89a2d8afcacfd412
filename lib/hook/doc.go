// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hook defines the contract between pipespy and the detour
// engine that patches primitives in the running process.
//
// The engine is an external collaborator: pipespy never rewrites
// machine code itself. It asks the [Engine] to install a replacement
// entry point for a [Symbol] in a module, asks whether that
// installation has completed, and asks for the original (trampoline)
// entry point so a replacement body can forward to it.
//
// The [ABI] bridges calling conventions in both directions. It turns
// Go [Bodies] into host-callable entry points via Export, and it
// invokes original entry points through the embedded win32.Caller. On
// Windows, [StdcallABI] does both with windows.NewCallback and
// syscall.SyscallN; lib/hooksim provides an in-memory implementation
// for tests.
package hook
