// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// pipespy-capture prints the pipe traffic recorded in a pipespy
// capture file.
//
// Each record is one observed ReadFile or WriteFile on a classified
// pipe handle: sequence number, time, operation, handle, transferred
// and requested byte counts, and a quoted preview of the payload.
// With --stats, prints per-handle totals instead.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/pipespy/lib/capture"
	"github.com/bureau-foundation/pipespy/lib/process"
	"github.com/bureau-foundation/pipespy/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

// filter selects records to print. Zero values match everything.
type filter struct {
	operation capture.Operation
	handle    uint64
	hasHandle bool
	limit     int
}

func (f filter) matches(record capture.Record) bool {
	if f.operation != "" && record.Operation != f.operation {
		return false
	}
	if f.hasHandle && record.Handle != f.handle {
		return false
	}
	return true
}

func run(args []string, stdout, stderr io.Writer) error {
	var filePath string
	var operation string
	var handle string
	var limit int
	var width int
	var stats bool
	var noColor bool
	var showVersion bool

	flagSet := pflag.NewFlagSet("pipespy-capture", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&filePath, "file", "f", "", "capture file to read (or pass it as the only argument)")
	flagSet.StringVar(&operation, "op", "", "only show records of this operation: read or write")
	flagSet.StringVar(&handle, "handle", "", "only show records for this handle (hex with 0x prefix, or decimal)")
	flagSet.IntVarP(&limit, "limit", "n", 0, "stop after this many matching records (0 for no limit)")
	flagSet.IntVar(&width, "width", 60, "maximum width of the quoted payload preview")
	flagSet.BoolVar(&stats, "stats", false, "print per-handle totals instead of records")
	flagSet.BoolVar(&noColor, "no-color", false, "disable colored output")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet, stderr)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stderr)
		return nil
	}
	if showVersion {
		version.Fprint(stdout, "pipespy-capture")
		return nil
	}

	remaining := flagSet.Args()
	switch {
	case filePath == "" && len(remaining) == 1:
		filePath = remaining[0]
	case len(remaining) > 0:
		return fmt.Errorf("unexpected argument: %s", remaining[0])
	case filePath == "":
		return errors.New("no capture file given (use --file or pass a path)")
	}

	selection := filter{limit: limit}
	switch operation {
	case "":
	case string(capture.OperationRead), string(capture.OperationWrite):
		selection.operation = capture.Operation(operation)
	default:
		return fmt.Errorf("--op must be read or write, got %q", operation)
	}
	if handle != "" {
		value, err := strconv.ParseUint(handle, 0, 64)
		if err != nil {
			return fmt.Errorf("--handle: %w", err)
		}
		selection.handle = value
		selection.hasHandle = true
	}
	if width < 8 {
		return fmt.Errorf("--width must be at least 8, got %d", width)
	}

	reader, err := capture.Open(filePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	styles := newStyles(!noColor && isTerminal(stdout))
	if stats {
		totals, err := collectStats(reader, selection, stderr)
		if err != nil {
			return err
		}
		totals.print(stdout, styles)
		return nil
	}
	return printRecords(reader, selection, width, stdout, stderr, styles)
}

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func printHelp(flagSet *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `pipespy-capture prints the pipe traffic recorded by pipespy.

Enable capture in pipespy.yaml:

  capture:
    path: ${PIPESPY_DIR}/pipespy.capture
    compression: zstd

Usage:
  pipespy-capture [flags] <capture-file>

Examples:
  # Print every record
  pipespy-capture pipespy.capture

  # Only reads on handle 0x1a4
  pipespy-capture --op read --handle 0x1a4 pipespy.capture

  # Per-handle byte totals
  pipespy-capture --stats pipespy.capture

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
