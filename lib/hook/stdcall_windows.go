// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package hook

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/bureau-foundation/pipespy/lib/win32"
)

// StdcallABI exports bodies as stdcall callbacks and calls originals
// with syscall.SyscallN. Every exported entry point restores the
// thread's last-error value left by the original before returning, so
// the host observes exactly what the unpatched primitive produced.
type StdcallABI struct {
	*win32.SyscallCaller
}

var _ ProcessIdentifier = (*StdcallABI)(nil)

// NewStdcallABI returns an ABI for the current process.
func NewStdcallABI() *StdcallABI {
	return &StdcallABI{SyscallCaller: win32.NewSyscallCaller()}
}

// Export implements ABI. windows.NewCallback allocates from a fixed
// pool that is never freed, which suits hooks installed once for the
// life of the process.
func (abi *StdcallABI) Export(symbol Symbol, bodies Bodies) (uintptr, error) {
	switch symbol {
	case CreatePipe:
		return windows.NewCallback(func(read, write, attributes, size uintptr) uintptr {
			defer abi.RestoreLastError()
			err := bodies.CreatePipe(
				(*win32.Handle)(unsafe.Pointer(read)),
				(*win32.Handle)(unsafe.Pointer(write)),
				(*win32.SecurityAttributes)(unsafe.Pointer(attributes)),
				uint32(size))
			return boolReturn(err)
		}), nil

	case CreateNamedPipeA:
		return windows.NewCallback(func(name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes uintptr) uintptr {
			defer abi.RestoreLastError()
			handle, _ := bodies.CreateNamedPipeA(
				(*byte)(unsafe.Pointer(name)),
				uint32(openMode), uint32(pipeMode), uint32(maxInstances),
				uint32(outSize), uint32(inSize), uint32(timeout),
				(*win32.SecurityAttributes)(unsafe.Pointer(attributes)))
			return uintptr(handle)
		}), nil

	case CreateNamedPipeW:
		return windows.NewCallback(func(name, openMode, pipeMode, maxInstances, outSize, inSize, timeout, attributes uintptr) uintptr {
			defer abi.RestoreLastError()
			handle, _ := bodies.CreateNamedPipeW(
				(*uint16)(unsafe.Pointer(name)),
				uint32(openMode), uint32(pipeMode), uint32(maxInstances),
				uint32(outSize), uint32(inSize), uint32(timeout),
				(*win32.SecurityAttributes)(unsafe.Pointer(attributes)))
			return uintptr(handle)
		}), nil

	case ReadFile:
		return windows.NewCallback(func(handle, buffer, size, done, overlapped uintptr) uintptr {
			defer abi.RestoreLastError()
			view := hostBuffer(buffer, size)
			if view == nil && uint32(size) != 0 {
				abi.ForwardRawBuffer(buffer, size)
			}
			err := bodies.ReadFile(
				win32.Handle(handle),
				view,
				(*uint32)(unsafe.Pointer(done)),
				(*win32.Overlapped)(unsafe.Pointer(overlapped)))
			return boolReturn(err)
		}), nil

	case WriteFile:
		return windows.NewCallback(func(handle, buffer, size, done, overlapped uintptr) uintptr {
			defer abi.RestoreLastError()
			view := hostBuffer(buffer, size)
			if view == nil && uint32(size) != 0 {
				abi.ForwardRawBuffer(buffer, size)
			}
			err := bodies.WriteFile(
				win32.Handle(handle),
				view,
				(*uint32)(unsafe.Pointer(done)),
				(*win32.Overlapped)(unsafe.Pointer(overlapped)))
			return boolReturn(err)
		}), nil

	case DuplicateHandle:
		return windows.NewCallback(func(sourceProcess, source, targetProcess, target, access, inherit, options uintptr) uintptr {
			defer abi.RestoreLastError()
			err := bodies.DuplicateHandle(
				win32.Handle(sourceProcess),
				win32.Handle(source),
				win32.Handle(targetProcess),
				(*win32.Handle)(unsafe.Pointer(target)),
				uint32(access),
				uint32(inherit) != 0,
				uint32(options))
			return boolReturn(err)
		}), nil
	}
	return 0, fmt.Errorf("no stdcall export for symbol %q", symbol)
}

// hostBuffer views caller-owned memory as a byte slice. The slice is
// only valid for the duration of the intercepted call. DWORD sizes
// arrive zero-extended, so only the low 32 bits are used. A NULL
// address yields nil whatever the size; Export forwards that pair to
// the original separately.
func hostBuffer(address, size uintptr) []byte {
	length := int(uint32(size))
	if address == 0 || length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(address)), length)
}

func boolReturn(err error) uintptr {
	if err != nil {
		return 0
	}
	return 1
}
