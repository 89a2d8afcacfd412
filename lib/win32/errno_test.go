// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package win32

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrnoError(t *testing.T) {
	if got := ErrorBrokenPipe.Error(); got != "ERROR_BROKEN_PIPE" {
		t.Errorf("ErrorBrokenPipe.Error() = %q", got)
	}
	if got := Errno(4242).Error(); got != "errno 4242" {
		t.Errorf("Errno(4242).Error() = %q", got)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Errno
	}{
		{"nil", nil, ErrorSuccess},
		{"errno", ErrorInvalidHandle, ErrorInvalidHandle},
		{"wrapped", fmt.Errorf("reading: %w", ErrorBrokenPipe), ErrorBrokenPipe},
		{"foreign", errors.New("boom"), ErrorGenFailure},
	}
	for _, test := range tests {
		if got := Code(test.err); got != test.want {
			t.Errorf("%s: Code = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestHandleString(t *testing.T) {
	if got := Handle(0x1a4).String(); got != "0x1a4" {
		t.Errorf("Handle(0x1a4).String() = %q", got)
	}
	if got := Handle(0x1a4).LogValue().String(); got != "0x1a4" {
		t.Errorf("LogValue = %q", got)
	}
}
