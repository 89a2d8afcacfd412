// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import "github.com/bureau-foundation/pipespy/lib/win32"

// Engine is the detour engine's hook record table and installer.
type Engine interface {
	// IsHooked reports whether the detour for symbol is fully
	// installed and its original entry point is valid.
	IsHooked(symbol Symbol) bool

	// Original returns the entry point that reaches the unpatched
	// primitive. Only meaningful once IsHooked reports true.
	Original(symbol Symbol) uintptr

	// Detour patches symbol in module so that calls reach replacement.
	Detour(module string, symbol Symbol, replacement uintptr) error
}

// Bodies is the set of replacement bodies that exported entry points
// dispatch to. The signatures match win32.Caller without the entry
// point.
type Bodies interface {
	CreatePipe(read, write *win32.Handle, attributes *win32.SecurityAttributes, size uint32) error
	CreateNamedPipeA(name *byte, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error)
	CreateNamedPipeW(name *uint16, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error)
	ReadFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error
	WriteFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error
	DuplicateHandle(sourceProcess, source, targetProcess win32.Handle, target *win32.Handle, access uint32, inherit bool, options uint32) error
}

// ABI converts between the host calling convention and Go.
type ABI interface {
	win32.Caller

	// Export returns a host-callable entry point for symbol that
	// dispatches to the matching method of bodies.
	Export(symbol Symbol, bodies Bodies) (uintptr, error)
}

// ProcessIdentifier is implemented by ABIs that can tell whether a
// process handle denotes the calling process. Without it only the
// CurrentProcess pseudo handle is recognised.
type ProcessIdentifier interface {
	IsCurrentProcess(process win32.Handle) bool
}
