// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package win32

import (
	"fmt"
	"log/slog"
)

// Handle is an opaque, process-local identifier for an open I/O
// object. Same width and representation as windows.Handle.
type Handle uintptr

// InvalidHandle is the failure sentinel returned by CreateNamedPipe
// (INVALID_HANDLE_VALUE).
const InvalidHandle = ^Handle(0)

// CurrentProcess is the pseudo handle returned by GetCurrentProcess.
// It shares its numeric value with InvalidHandle; the meaning depends
// on the parameter it is passed as.
const CurrentProcess = ^Handle(0)

// String formats the handle the way the Windows debugging tools do.
func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uintptr(h))
}

// LogValue renders handles as hex strings in structured logs.
func (h Handle) LogValue() slog.Value {
	return slog.StringValue(h.String())
}

// Overlapped mirrors the OVERLAPPED structure used for asynchronous
// I/O. The core never inspects it; it is forwarded verbatim.
type Overlapped struct {
	Internal     uintptr
	InternalHigh uintptr
	Offset       uint32
	OffsetHigh   uint32
	HEvent       Handle
}

// SecurityAttributes mirrors SECURITY_ATTRIBUTES.
type SecurityAttributes struct {
	Length             uint32
	SecurityDescriptor uintptr
	InheritHandle      uint32
}

// DuplicateHandle option flags.
const (
	DuplicateCloseSource = 0x00000001
	DuplicateSameAccess  = 0x00000002
)

// CreateNamedPipe open modes and pipe modes used by callers and the
// simulated kernel.
const (
	PipeAccessInbound  = 0x00000001
	PipeAccessOutbound = 0x00000002
	PipeAccessDuplex   = 0x00000003

	PipeTypeByte    = 0x00000000
	PipeTypeMessage = 0x00000004
	PipeWait        = 0x00000000

	PipeUnlimitedInstances = 255
)
