// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hooksim

import (
	"github.com/bureau-foundation/pipespy/lib/hook"
	"github.com/bureau-foundation/pipespy/lib/win32"
)

// Host calls the primitives the way host code does: through the entry
// point currently in the patch table, so patched symbols reach their
// replacement bodies.
type Host struct {
	process *Process
}

func (host *Host) CreatePipe(read, write *win32.Handle, attributes *win32.SecurityAttributes, size uint32) error {
	return host.process.CreatePipe(host.process.current(hook.CreatePipe), read, write, attributes, size)
}

func (host *Host) CreateNamedPipeA(name *byte, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	return host.process.CreateNamedPipeA(host.process.current(hook.CreateNamedPipeA), name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes)
}

func (host *Host) CreateNamedPipeW(name *uint16, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	return host.process.CreateNamedPipeW(host.process.current(hook.CreateNamedPipeW), name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes)
}

func (host *Host) ReadFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	return host.process.ReadFile(host.process.current(hook.ReadFile), handle, buffer, done, overlapped)
}

func (host *Host) WriteFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	return host.process.WriteFile(host.process.current(hook.WriteFile), handle, buffer, done, overlapped)
}

func (host *Host) DuplicateHandle(sourceProcess, source, targetProcess win32.Handle, target *win32.Handle, access uint32, inherit bool, options uint32) error {
	return host.process.DuplicateHandle(host.process.current(hook.DuplicateHandle), sourceProcess, source, targetProcess, target, access, inherit, options)
}

// Pipe creates an anonymous pipe through the patched CreatePipe.
func (host *Host) Pipe() (read, write win32.Handle, err error) {
	err = host.CreatePipe(&read, &write, nil, 0)
	return read, write, err
}

// Write writes data through the patched WriteFile and returns the
// transferred count.
func (host *Host) Write(handle win32.Handle, data []byte) (uint32, error) {
	var done uint32
	err := host.WriteFile(handle, data, &done, nil)
	return done, err
}

// Read reads up to size bytes through the patched ReadFile.
func (host *Host) Read(handle win32.Handle, size int) ([]byte, error) {
	buffer := make([]byte, size)
	var done uint32
	err := host.ReadFile(handle, buffer, &done, nil)
	return buffer[:done], err
}

// Duplicate duplicates handle within the current process through the
// patched DuplicateHandle.
func (host *Host) Duplicate(handle win32.Handle) (win32.Handle, error) {
	var target win32.Handle
	err := host.DuplicateHandle(win32.CurrentProcess, handle, win32.CurrentProcess, &target, 0, false, win32.DuplicateSameAccess)
	return target, err
}
