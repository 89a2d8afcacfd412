// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package win32

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// SyscallCaller invokes original entry points with the stdcall
// convention via syscall.SyscallN.
//
// Win32 primitives may set the thread's last-error value even when
// they succeed, and everything the interceptor does after the call
// (logging, file writes) clobbers it. SyscallCaller therefore records
// the value each call left behind, keyed by OS thread, so the exported
// entry point can restore it with [SyscallCaller.RestoreLastError]
// just before returning to the host.
//
// Hosts may also pass ReadFile or WriteFile a NULL buffer with a
// non-zero size, which no Go slice can describe. The exported entry
// point hands such arguments over with [SyscallCaller.ForwardRawBuffer]
// and the next empty-buffer transfer on the same thread passes them to
// the original unchanged.
type SyscallCaller struct {
	lastErrors sync.Map // uint32 thread id -> Errno
	rawBuffers sync.Map // uint32 thread id -> rawBuffer
}

type rawBuffer struct {
	address uintptr
	size    uintptr
}

var procSetLastError = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetLastError")

// NewSyscallCaller returns a caller ready for use.
func NewSyscallCaller() *SyscallCaller {
	return &SyscallCaller{}
}

// RestoreLastError sets the calling thread's last-error value to the
// one recorded by the most recent call made on this thread. Threads
// that made no call are left untouched.
func (caller *SyscallCaller) RestoreLastError() {
	value, ok := caller.lastErrors.LoadAndDelete(windows.GetCurrentThreadId())
	if !ok {
		return
	}
	procSetLastError.Call(uintptr(value.(Errno)))
}

// ForwardRawBuffer records the host's buffer arguments for the next
// ReadFile or WriteFile made with an empty buffer on this thread.
func (caller *SyscallCaller) ForwardRawBuffer(address, size uintptr) {
	caller.rawBuffers.Store(windows.GetCurrentThreadId(), rawBuffer{address: address, size: size})
}

// takeRawBuffer claims the arguments recorded by ForwardRawBuffer.
// Non-empty buffers never claim them, so nested transfers made while
// observing the outer call leave them in place.
func (caller *SyscallCaller) takeRawBuffer(buffer []byte) (rawBuffer, bool) {
	if len(buffer) != 0 {
		return rawBuffer{}, false
	}
	value, ok := caller.rawBuffers.LoadAndDelete(windows.GetCurrentThreadId())
	if !ok {
		return rawBuffer{}, false
	}
	return value.(rawBuffer), true
}

func (caller *SyscallCaller) record(errno syscall.Errno) Errno {
	code := Errno(errno)
	caller.lastErrors.Store(windows.GetCurrentThreadId(), code)
	return code
}

func (caller *SyscallCaller) boolResult(result uintptr, errno syscall.Errno) error {
	code := caller.record(errno)
	if result == 0 {
		if code == ErrorSuccess {
			return ErrorGenFailure
		}
		return code
	}
	return nil
}

func (caller *SyscallCaller) handleResult(result uintptr, errno syscall.Errno) (Handle, error) {
	code := caller.record(errno)
	handle := Handle(result)
	if handle == InvalidHandle {
		if code == ErrorSuccess {
			return handle, ErrorGenFailure
		}
		return handle, code
	}
	return handle, nil
}

// bufferStart returns the address of the first byte, or nil for an
// empty buffer. Conversions to uintptr happen inside each SyscallN
// argument list so the referenced memory stays live for the call.
func bufferStart(buffer []byte) *byte {
	if len(buffer) == 0 {
		return nil
	}
	return &buffer[0]
}

// IsCurrentProcess reports whether process is the CurrentProcess
// pseudo handle or a real handle to this process.
func (caller *SyscallCaller) IsCurrentProcess(process Handle) bool {
	if process == CurrentProcess {
		return true
	}
	id, err := windows.GetProcessId(windows.Handle(process))
	return err == nil && id == windows.GetCurrentProcessId()
}

func boolArgument(value bool) uintptr {
	if value {
		return 1
	}
	return 0
}

func (caller *SyscallCaller) CreatePipe(entry uintptr, read, write *Handle, attributes *SecurityAttributes, size uint32) error {
	result, _, errno := syscall.SyscallN(entry,
		uintptr(unsafe.Pointer(read)),
		uintptr(unsafe.Pointer(write)),
		uintptr(unsafe.Pointer(attributes)),
		uintptr(size))
	return caller.boolResult(result, errno)
}

func (caller *SyscallCaller) CreateNamedPipeA(entry uintptr, name *byte, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *SecurityAttributes) (Handle, error) {
	result, _, errno := syscall.SyscallN(entry,
		uintptr(unsafe.Pointer(name)),
		uintptr(openMode), uintptr(pipeMode), uintptr(maxInstances),
		uintptr(outSize), uintptr(inSize), uintptr(timeout),
		uintptr(unsafe.Pointer(attributes)))
	return caller.handleResult(result, errno)
}

func (caller *SyscallCaller) CreateNamedPipeW(entry uintptr, name *uint16, openMode, pipeMode, maxInstances, outSize, inSize, timeout uint32, attributes *SecurityAttributes) (Handle, error) {
	result, _, errno := syscall.SyscallN(entry,
		uintptr(unsafe.Pointer(name)),
		uintptr(openMode), uintptr(pipeMode), uintptr(maxInstances),
		uintptr(outSize), uintptr(inSize), uintptr(timeout),
		uintptr(unsafe.Pointer(attributes)))
	return caller.handleResult(result, errno)
}

func (caller *SyscallCaller) ReadFile(entry uintptr, handle Handle, buffer []byte, done *uint32, overlapped *Overlapped) error {
	if raw, ok := caller.takeRawBuffer(buffer); ok {
		result, _, errno := syscall.SyscallN(entry,
			uintptr(handle),
			raw.address,
			raw.size,
			uintptr(unsafe.Pointer(done)),
			uintptr(unsafe.Pointer(overlapped)))
		return caller.boolResult(result, errno)
	}
	result, _, errno := syscall.SyscallN(entry,
		uintptr(handle),
		uintptr(unsafe.Pointer(bufferStart(buffer))),
		uintptr(len(buffer)),
		uintptr(unsafe.Pointer(done)),
		uintptr(unsafe.Pointer(overlapped)))
	return caller.boolResult(result, errno)
}

func (caller *SyscallCaller) WriteFile(entry uintptr, handle Handle, buffer []byte, done *uint32, overlapped *Overlapped) error {
	if raw, ok := caller.takeRawBuffer(buffer); ok {
		result, _, errno := syscall.SyscallN(entry,
			uintptr(handle),
			raw.address,
			raw.size,
			uintptr(unsafe.Pointer(done)),
			uintptr(unsafe.Pointer(overlapped)))
		return caller.boolResult(result, errno)
	}
	result, _, errno := syscall.SyscallN(entry,
		uintptr(handle),
		uintptr(unsafe.Pointer(bufferStart(buffer))),
		uintptr(len(buffer)),
		uintptr(unsafe.Pointer(done)),
		uintptr(unsafe.Pointer(overlapped)))
	return caller.boolResult(result, errno)
}

func (caller *SyscallCaller) DuplicateHandle(entry uintptr, sourceProcess, source, targetProcess Handle, target *Handle, access uint32, inherit bool, options uint32) error {
	result, _, errno := syscall.SyscallN(entry,
		uintptr(sourceProcess),
		uintptr(source),
		uintptr(targetProcess),
		uintptr(unsafe.Pointer(target)),
		uintptr(access),
		boolArgument(inherit),
		uintptr(options))
	return caller.boolResult(result, errno)
}
