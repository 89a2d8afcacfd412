// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hooksim

import (
	"strings"

	"github.com/bureau-foundation/pipespy/lib/win32"
)

// CreatePipe creates an anonymous pipe and stores its read and write
// handles. The size hint is accepted and ignored.
func (kernel *Kernel) CreatePipe(read, write *win32.Handle, attributes *win32.SecurityAttributes, size uint32) error {
	if read == nil || write == nil {
		return win32.ErrorInvalidParameter
	}
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()

	flow := newPipe()
	readEnd := &object{kind: kindPipe, inbound: flow}
	writeEnd := &object{kind: kindPipe, outbound: flow}
	flow.addReader()
	flow.addWriter()
	*read = kernel.current.insert(readEnd)
	*write = kernel.current.insert(writeEnd)
	return nil
}

// CreateNamedPipeA creates a server instance of the named pipe.
func (kernel *Kernel) CreateNamedPipeA(name *byte, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	return kernel.createNamedPipe(win32.AnsiString(name), openMode, maxInstances)
}

// CreateNamedPipeW creates a server instance of the named pipe.
func (kernel *Kernel) CreateNamedPipeW(name *uint16, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *win32.SecurityAttributes) (win32.Handle, error) {
	return kernel.createNamedPipe(win32.WideString(name), openMode, maxInstances)
}

func (kernel *Kernel) createNamedPipe(name string, openMode, maxInstances uint32) (win32.Handle, error) {
	if len(name) <= len(namedPipePrefix) || !strings.EqualFold(name[:len(namedPipePrefix)], namedPipePrefix) {
		return win32.InvalidHandle, win32.ErrorInvalidName
	}
	access := openMode & win32.PipeAccessDuplex
	if access == 0 || maxInstances == 0 || maxInstances > win32.PipeUnlimitedInstances {
		return win32.InvalidHandle, win32.ErrorInvalidParameter
	}

	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()

	key := strings.ToLower(name)
	existing := kernel.namedPipes[key]
	if maxInstances != win32.PipeUnlimitedInstances && len(existing) >= int(maxInstances) {
		return win32.InvalidHandle, win32.ErrorPipeBusy
	}

	instance := &namedInstance{
		name:     name,
		openMode: access,
		toServer: newPipe(),
		toClient: newPipe(),
	}
	server := &object{kind: kindNamedPipe, instance: instance}
	if access&win32.PipeAccessInbound != 0 {
		server.inbound = instance.toServer
		server.inbound.addReader()
	}
	if access&win32.PipeAccessOutbound != 0 {
		server.outbound = instance.toClient
		server.outbound.addWriter()
	}
	kernel.namedPipes[key] = append(existing, instance)
	return kernel.current.insert(server), nil
}

// ReadFile reads from a pipe end, named pipe or file. Synchronous
// pipe reads block until data arrives or the last writer closes.
// Overlapped pipe reads complete immediately when data is available
// and report ErrorIOPending otherwise; the simulated kernel never
// completes a pending read later.
func (kernel *Kernel) ReadFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	if done == nil && overlapped == nil {
		return win32.ErrorInvalidParameter
	}
	if done != nil {
		*done = 0
	}
	target, err := kernel.readyObject(handle)
	if err != nil {
		return err
	}

	var n int
	switch {
	case target.kind == kindFile:
		n = target.file.read(buffer)
	case target.inbound == nil:
		return win32.ErrorAccessDenied
	default:
		n, err = target.inbound.read(buffer, overlapped == nil)
		if err != nil {
			return err
		}
	}
	complete(done, overlapped, n)
	return nil
}

// WriteFile writes to a pipe end, named pipe or file. Writes never
// block.
func (kernel *Kernel) WriteFile(handle win32.Handle, buffer []byte, done *uint32, overlapped *win32.Overlapped) error {
	if done == nil && overlapped == nil {
		return win32.ErrorInvalidParameter
	}
	if done != nil {
		*done = 0
	}
	target, err := kernel.readyObject(handle)
	if err != nil {
		return err
	}

	var n int
	switch {
	case target.kind == kindFile:
		n = target.file.write(buffer)
	case target.outbound == nil:
		return win32.ErrorAccessDenied
	default:
		n, err = target.outbound.write(buffer)
		if err != nil {
			return err
		}
	}
	complete(done, overlapped, n)
	return nil
}

// readyObject looks up handle for I/O, refusing process handles and
// named pipe instances without a client.
func (kernel *Kernel) readyObject(handle win32.Handle) (*object, error) {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()

	target, ok := kernel.current.entries[handle]
	if !ok {
		return nil, win32.ErrorInvalidHandle
	}
	switch target.kind {
	case kindProcess:
		return nil, win32.ErrorInvalidHandle
	case kindNamedPipe:
		if !target.instance.connected {
			return nil, win32.ErrorPipeListening
		}
	}
	return target, nil
}

func complete(done *uint32, overlapped *win32.Overlapped, n int) {
	if done != nil {
		*done = uint32(n)
	}
	if overlapped != nil {
		overlapped.Internal = 0
		overlapped.InternalHigh = uintptr(n)
	}
}

// DuplicateHandle creates a new handle in targetProcess referring to
// the object behind source in sourceProcess. A nil target performs the
// duplication without returning the handle, which combined with
// DuplicateCloseSource closes a handle in another process.
func (kernel *Kernel) DuplicateHandle(sourceProcess, source, targetProcess win32.Handle, target *win32.Handle, access uint32, inherit bool, options uint32) error {
	kernel.mutex.Lock()
	defer kernel.mutex.Unlock()

	sourceTable, err := kernel.processTableLocked(sourceProcess)
	if err != nil {
		return err
	}
	targetTable, err := kernel.processTableLocked(targetProcess)
	if err != nil {
		return err
	}
	shared, ok := sourceTable.entries[source]
	if !ok {
		return win32.ErrorInvalidHandle
	}
	if target != nil {
		*target = targetTable.insert(shared)
	}
	if options&win32.DuplicateCloseSource != 0 {
		return kernel.closeLocked(sourceTable, source)
	}
	return nil
}

func (f *file) read(buffer []byte) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	n := copy(buffer, f.data[f.offset:])
	f.offset += n
	return n
}

func (f *file) write(buffer []byte) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	end := f.offset + len(buffer)
	if end > len(f.data) {
		f.data = append(f.data[:f.offset], buffer...)
	} else {
		copy(f.data[f.offset:], buffer)
	}
	f.offset = end
	return len(buffer)
}
