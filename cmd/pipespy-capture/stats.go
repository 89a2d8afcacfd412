// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/pipespy/lib/capture"
)

// handleTotals accumulates traffic for one handle.
type handleTotals struct {
	handle     uint64
	reads      uint64
	readBytes  uint64
	writes     uint64
	writeBytes uint64
	failures   uint64
}

// captureTotals is the --stats result.
type captureTotals struct {
	handles    map[uint64]*handleTotals
	records    uint64
	mismatches uint64
	first      time.Time
	last       time.Time
}

func collectStats(reader *capture.Reader, selection filter, stderr io.Writer) (*captureTotals, error) {
	totals := &captureTotals{handles: make(map[uint64]*handleTotals)}
	for selection.limit == 0 || totals.records < uint64(selection.limit) {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			fmt.Fprintln(stderr, "warning: capture ends with a truncated frame")
			break
		}
		if errors.Is(err, capture.ErrDigestMismatch) {
			totals.mismatches++
		} else if err != nil {
			return nil, err
		}
		if !selection.matches(record) {
			continue
		}
		totals.add(record)
	}
	return totals, nil
}

func (totals *captureTotals) add(record capture.Record) {
	entry, ok := totals.handles[record.Handle]
	if !ok {
		entry = &handleTotals{handle: record.Handle}
		totals.handles[record.Handle] = entry
	}
	switch {
	case record.Error != "":
		entry.failures++
	case record.Operation == capture.OperationRead:
		entry.reads++
		entry.readBytes += uint64(record.Transferred)
	case record.Operation == capture.OperationWrite:
		entry.writes++
		entry.writeBytes += uint64(record.Transferred)
	}

	at := record.Time()
	if totals.records == 0 || at.Before(totals.first) {
		totals.first = at
	}
	if at.After(totals.last) {
		totals.last = at
	}
	totals.records++
}

// sorted returns the per-handle totals ordered by handle value.
func (totals *captureTotals) sorted() []*handleTotals {
	entries := make([]*handleTotals, 0, len(totals.handles))
	for _, entry := range totals.handles {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b *handleTotals) int {
		switch {
		case a.handle < b.handle:
			return -1
		case a.handle > b.handle:
			return 1
		}
		return 0
	})
	return entries
}

func (totals *captureTotals) print(w io.Writer, s styles) {
	fmt.Fprintln(w, s.render(s.header, fmt.Sprintf("%-12s %8s %10s %8s %10s %8s", "HANDLE", "READS", "READ", "WRITES", "WRITTEN", "FAILED")))
	for _, entry := range totals.sorted() {
		fmt.Fprintf(w, "%-12s %8s %10s %8s %10s %8s\n",
			fmt.Sprintf("0x%x", entry.handle),
			humanize.Comma(int64(entry.reads)),
			humanize.Bytes(entry.readBytes),
			humanize.Comma(int64(entry.writes)),
			humanize.Bytes(entry.writeBytes),
			humanize.Comma(int64(entry.failures)),
		)
	}
	summary := fmt.Sprintf("%s records on %d handles", humanize.Comma(int64(totals.records)), len(totals.handles))
	if totals.records > 0 {
		summary += " over " + span(totals.first, totals.last)
	}
	fmt.Fprintln(w, summary)
	if totals.mismatches > 0 {
		fmt.Fprintln(w, s.render(s.failure, fmt.Sprintf("%d records failed digest verification", totals.mismatches)))
	}
}

// span formats the time covered by a capture.
func span(first, last time.Time) string {
	return last.Sub(first).Round(time.Millisecond).String()
}
