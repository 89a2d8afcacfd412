// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process terminates the process on unrecoverable errors.
//
// Both entry points write to stderr rather than a structured logger:
// they run either before the diagnostic log exists (bad configuration
// at attach, argument errors in a CLI) or after it has already been
// flushed.
//
//   - [Fatal] is the CLI form: "error: <err>" and exit status 1.
//   - [Terminate] is the interceptor form: the message verbatim, for
//     "Initialization error: ..." when hooks cannot be installed.
//     Inside a hosting module this ends the host process, which is
//     intended: a host with half-installed hooks must not continue.
package process
