// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version identifies a pipespy build. The hosted DLL logs it
// in its attach banner so a log file can be matched to the binary that
// wrote it; pipespy-capture prints it for --version.
//
// Release builds stamp the build variables with -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/pipespy/lib/version.Commit=$(git rev-parse --short HEAD)"
package version
