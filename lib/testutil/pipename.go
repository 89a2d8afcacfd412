// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var pipeSerial atomic.Uint64

// PipeName returns a named pipe path unique within the test binary:
// `\\.\pipe\pipespy-<stem>-<n>`.
func PipeName(stem string) string {
	return fmt.Sprintf(`\\.\pipe\pipespy-%s-%d`, stem, pipeSerial.Add(1))
}
