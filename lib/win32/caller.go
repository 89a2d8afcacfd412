// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package win32

// Caller invokes an original, unpatched primitive through its entry
// point. Each method has the shape of the corresponding
// golang.org/x/sys/windows function with the entry point prepended;
// a non-nil error is always an [Errno].
type Caller interface {
	CreatePipe(entry uintptr, read, write *Handle, attributes *SecurityAttributes, size uint32) error
	CreateNamedPipeA(entry uintptr, name *byte, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *SecurityAttributes) (Handle, error)
	CreateNamedPipeW(entry uintptr, name *uint16, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *SecurityAttributes) (Handle, error)
	ReadFile(entry uintptr, handle Handle, buffer []byte, done *uint32, overlapped *Overlapped) error
	WriteFile(entry uintptr, handle Handle, buffer []byte, done *uint32, overlapped *Overlapped) error
	DuplicateHandle(entry uintptr, sourceProcess, source, targetProcess Handle, target *Handle, access uint32, inherit bool, options uint32) error
}
