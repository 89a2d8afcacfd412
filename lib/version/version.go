// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
)

// Product is the name logged at attach and printed by --version.
const Product = "pipespy"

// Build variables, overridden with -ldflags -X.
var (
	Number = "0.1.0-dev"
	Commit = "unknown"
	Dirty  = "false"
	Built  = "unknown"
)

// Short returns the release number alone, as shown in the banner
// message itself.
func Short() string { return Number }

// Info returns the release number with its provenance, for example
// "0.1.0-dev (3f2a9c1-dirty, 2026-10-19T09:30:00Z)".
func Info() string {
	commit := Commit
	if Dirty == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Number, commit, Built)
}

// Fprint writes the --version line for binary, followed by the Go
// release and target platform.
func Fprint(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s %s %s %s/%s\n", binary, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
