// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// Replaced by tests.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run().
func Fatal(err error) {
	fmt.Fprintf(stderr, "error: %v\n", err)
	exit(1)
}

// Terminate writes message to stderr and exits with code 1.
func Terminate(message string) {
	fmt.Fprintln(stderr, message)
	exit(1)
}
