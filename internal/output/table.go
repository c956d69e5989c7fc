// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	aqtable "github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bonial-oss/nvd-mirror/internal/types"
)

const (
	maxDescriptionWords = 12
	detailURL           = "https://nvd.nist.gov/vuln/detail/"
)

// TableConfig controls how record tables are rendered.
type TableConfig struct {
	SortBy     string // "cve", "score", "published", "" (preserve order)
	IsTerminal bool   // true when output goes to a terminal (enables ANSI styling)
}

// SortKeys lists the accepted TableConfig.SortBy values besides "".
var SortKeys = []string{"cve", "score", "published"}

// ValidSortKey reports whether key is "" or one of SortKeys.
func ValidSortKey(key string) bool {
	return key == "" || slices.Contains(SortKeys, key)
}

// Entry pairs a record with its identifier.
type Entry struct {
	ID     string
	Record types.Record
}

// Status describes the local mirror for the status command.
type Status struct {
	Dir        string
	LastSynced time.Time // zero when never synced
	Fresh      bool
	Chunks     int
	Records    int
	Bytes      int64
}

// IsOutputToTerminal returns true if the writer is stdout connected to a
// character device (TTY).
func IsOutputToTerminal(output io.Writer) bool {
	return output == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
}

// WriteRecordTable writes records as a table preceded by a severity summary.
func WriteRecordTable(w io.Writer, entries []Entry, cfg TableConfig) error {
	rows := make([]Entry, len(entries))
	copy(rows, entries)
	sortEntries(rows, cfg.SortBy)

	writeHeader(w, "NVD records", cfg.IsTerminal)
	fmt.Fprintln(w, severitySummary(rows))
	fmt.Fprintln(w)

	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders("Vulnerability", "Severity", "Score", "CVSS", "Vector", "Published", "Last Modified", "Description")
	for i := range rows {
		tw.AddRow(rowCells(&rows[i], cfg.IsTerminal)...)
	}
	tw.Render()
	return nil
}

// WriteStatusTable writes the mirror status as a two column table.
func WriteStatusTable(w io.Writer, st Status, isTerminal bool) error {
	writeHeader(w, st.Dir, isTerminal)

	lastSynced := "never"
	if !st.LastSynced.IsZero() {
		lastSynced = st.LastSynced.UTC().Format(time.RFC3339)
	}
	freshness := "stale"
	if st.Fresh {
		freshness = "fresh"
	}
	if isTerminal {
		if st.Fresh {
			freshness = tml.Sprintf("<green>%s</green>", freshness)
		} else {
			freshness = tml.Sprintf("<yellow>%s</yellow>", freshness)
		}
	}

	tw := newTableWriter(w, isTerminal)
	tw.SetHeaders("Property", "Value")
	tw.AddRow("Last Synced", lastSynced)
	tw.AddRow("Freshness", freshness)
	tw.AddRow("Chunks", fmt.Sprintf("%d", st.Chunks))
	tw.AddRow("Records", fmt.Sprintf("%d", st.Records))
	tw.AddRow("Size", formatBytes(st.Bytes))
	tw.Render()
	return nil
}

// writeHeader writes an underlined title.
func writeHeader(w io.Writer, title string, isTerminal bool) {
	if isTerminal {
		_ = tml.Fprintf(w, "<underline><bold>%s</bold></underline>\n", title)
		return
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", utf8.RuneCountInString(title)))
}

// newTableWriter creates a table writer with borders and row separators.
// When isTerminal is true, header and line styles use ANSI formatting.
func newTableWriter(w io.Writer, isTerminal bool) *aqtable.Table {
	tw := aqtable.New(w)
	if isTerminal {
		tw.SetHeaderStyle(aqtable.StyleBold)
		tw.SetLineStyle(aqtable.StyleDim)
	}
	tw.SetBorders(true)
	tw.SetRowLines(true)
	return tw
}

func rowCells(e *Entry, isTerminal bool) []string {
	rec := e.Record
	severity := rec.Severity()
	if isTerminal {
		severity = colorizeSeverity(severity)
	}
	return []string{
		e.ID,
		severity,
		formatScore(rec.BaseScore),
		orDash(rec.ScoreSchemaVersion),
		orDash(rec.Vector),
		orDash(rec.PublishedAt),
		orDash(rec.ModifiedAt),
		descriptionWithURL(e, isTerminal),
	}
}

// severitySummary returns a line like:
// Total: 5 (UNKNOWN: 0, NONE: 0, LOW: 2, MEDIUM: 1, HIGH: 1, CRITICAL: 1)
func severitySummary(entries []Entry) string {
	counts := map[string]int{}
	for i := range entries {
		counts[entries[i].Record.Severity()]++
	}
	return fmt.Sprintf("Total: %d (UNKNOWN: %d, NONE: %d, LOW: %d, MEDIUM: %d, HIGH: %d, CRITICAL: %d)",
		len(entries), counts["UNKNOWN"], counts["NONE"], counts["LOW"], counts["MEDIUM"], counts["HIGH"], counts["CRITICAL"])
}

var severityColors = map[string]func(a ...any) string{
	"UNKNOWN":  color.New(color.FgCyan).SprintFunc(),
	"NONE":     color.New(color.FgWhite).SprintFunc(),
	"LOW":      color.New(color.FgBlue).SprintFunc(),
	"MEDIUM":   color.New(color.FgYellow).SprintFunc(),
	"HIGH":     color.New(color.FgHiRed).SprintFunc(),
	"CRITICAL": color.New(color.FgRed).SprintFunc(),
}

func colorizeSeverity(severity string) string {
	if fn, ok := severityColors[severity]; ok {
		return fn(severity)
	}
	return severity
}

func sortEntries(rows []Entry, sortBy string) {
	switch sortBy {
	case "cve":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	case "score":
		sort.SliceStable(rows, func(i, j int) bool {
			return scoreValue(rows[i].Record) > scoreValue(rows[j].Record)
		})
	case "published":
		sort.SliceStable(rows, func(i, j int) bool {
			return deref(rows[i].Record.PublishedAt) > deref(rows[j].Record.PublishedAt)
		})
	}
}

func scoreValue(r types.Record) float64 {
	if r.BaseScore == nil {
		return -1
	}
	return *r.BaseScore
}

// descriptionWithURL truncates the description to maxDescriptionWords words
// and appends the NVD detail page on a new line.
func descriptionWithURL(e *Entry, isTerminal bool) string {
	desc := truncateWords(deref(e.Record.Description), maxDescriptionWords)
	url := detailURL + e.ID
	if isTerminal {
		url = tml.Sprintf("<blue>%s</blue>", url)
	}
	if desc == "" {
		return url
	}
	return desc + "\n" + url
}

// truncateWords limits text to maxWords words, appending "..." if truncated.
func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *score)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
