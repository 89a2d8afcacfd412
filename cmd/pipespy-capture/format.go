// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/pipespy/lib/capture"
)

// styles renders output fragments, or passes them through unchanged
// when color is off.
type styles struct {
	enabled bool

	sequence lipgloss.Style
	read     lipgloss.Style
	write    lipgloss.Style
	handle   lipgloss.Style
	failure  lipgloss.Style
	header   lipgloss.Style
}

func newStyles(enabled bool) styles {
	return styles{
		enabled:  enabled,
		sequence: lipgloss.NewStyle().Faint(true),
		read:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		write:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		handle:   lipgloss.NewStyle().Bold(true),
		failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		header:   lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

func (s styles) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s styles) operation(operation capture.Operation) string {
	label := fmt.Sprintf("%-5s", operation)
	switch operation {
	case capture.OperationRead:
		return s.render(s.read, label)
	case capture.OperationWrite:
		return s.render(s.write, label)
	}
	return label
}

// formatRecord renders one record on a single line.
func formatRecord(record capture.Record, width int, s styles) string {
	line := fmt.Sprintf("%s %s %s %s %d/%d",
		s.render(s.sequence, fmt.Sprintf("#%d", record.Sequence)),
		record.Time().UTC().Format("15:04:05.000000"),
		s.operation(record.Operation),
		s.render(s.handle, fmt.Sprintf("0x%x", record.Handle)),
		record.Transferred,
		record.Requested,
	)
	if record.Error != "" {
		return line + " " + s.render(s.failure, record.Error)
	}
	line += " " + quotePayload(record.Data, width)
	if record.Truncated {
		line += " (truncated)"
	}
	return line
}

// quotePayload quotes data as an ASCII Go string literal and, past
// width characters, keeps the head and tail around an elision.
func quotePayload(data []byte, width int) string {
	quoted := strconv.QuoteToASCII(string(data))
	if len(quoted) <= width {
		return quoted
	}
	const elision = `"..."`
	keep := width - len(elision)
	head := keep / 2
	tail := keep - head
	return quoted[:head] + elision + quoted[len(quoted)-tail:]
}

// printRecords prints every matching record. A digest mismatch is
// flagged on the record's line; a truncated final frame is reported
// on stderr and ends the listing.
func printRecords(reader *capture.Reader, selection filter, width int, stdout, stderr io.Writer, s styles) error {
	printed := 0
	for selection.limit == 0 || printed < selection.limit {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			fmt.Fprintln(stderr, "warning: capture ends with a truncated frame")
			return nil
		}
		mismatch := errors.Is(err, capture.ErrDigestMismatch)
		if err != nil && !mismatch {
			return err
		}
		if !selection.matches(record) {
			continue
		}
		line := formatRecord(record, width, s)
		if mismatch {
			line += " " + s.render(s.failure, "[digest mismatch]")
		}
		fmt.Fprintln(stdout, line)
		printed++
	}
	return nil
}
