// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package win32

import (
	"errors"
	"fmt"
)

// Errno is a Win32 last-error code. Every failing primitive reports
// its failure as an Errno so the exact code can be handed back to the
// host thread.
type Errno uintptr

// Last-error codes the interceptor and the simulated kernel produce.
const (
	ErrorSuccess          Errno = 0
	ErrorFileNotFound     Errno = 2
	ErrorAccessDenied     Errno = 5
	ErrorInvalidHandle    Errno = 6
	ErrorNotEnoughMemory  Errno = 8
	ErrorGenFailure       Errno = 31
	ErrorInvalidParameter Errno = 87
	ErrorBrokenPipe       Errno = 109
	ErrorInvalidName      Errno = 123
	ErrorProcNotFound     Errno = 127
	ErrorAlreadyExists    Errno = 183
	ErrorPipeBusy         Errno = 231
	ErrorNoData           Errno = 232
	ErrorPipeListening    Errno = 536
	ErrorIOPending        Errno = 997
)

var errnoNames = map[Errno]string{
	ErrorSuccess:          "ERROR_SUCCESS",
	ErrorFileNotFound:     "ERROR_FILE_NOT_FOUND",
	ErrorAccessDenied:     "ERROR_ACCESS_DENIED",
	ErrorInvalidHandle:    "ERROR_INVALID_HANDLE",
	ErrorNotEnoughMemory:  "ERROR_NOT_ENOUGH_MEMORY",
	ErrorGenFailure:       "ERROR_GEN_FAILURE",
	ErrorInvalidParameter: "ERROR_INVALID_PARAMETER",
	ErrorBrokenPipe:       "ERROR_BROKEN_PIPE",
	ErrorInvalidName:      "ERROR_INVALID_NAME",
	ErrorProcNotFound:     "ERROR_PROC_NOT_FOUND",
	ErrorAlreadyExists:    "ERROR_ALREADY_EXISTS",
	ErrorPipeBusy:         "ERROR_PIPE_BUSY",
	ErrorNoData:           "ERROR_NO_DATA",
	ErrorPipeListening:    "ERROR_PIPE_LISTENING",
	ErrorIOPending:        "ERROR_IO_PENDING",
}

// Error returns the symbolic name of well-known codes and the decimal
// code otherwise.
func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", uintptr(e))
}

// Code returns the last-error value a failing call leaves on the
// thread for err. A nil error maps to ERROR_SUCCESS; errors that are
// not an Errno map to ERROR_GEN_FAILURE.
func Code(err error) Errno {
	if err == nil {
		return ErrorSuccess
	}
	var errno Errno
	if errors.As(err, &errno) {
		return errno
	}
	return ErrorGenFailure
}
