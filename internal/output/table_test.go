// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/nvd-mirror/internal/types"
)

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }

// makeEntries builds three records of varying severity.
func makeEntries() []Entry {
	return []Entry{
		{
			ID: "CVE-2023-5678",
			Record: types.Record{
				Description:        strPtr("Medium issue"),
				PublishedAt:        strPtr("2023-06-01T00:00:00.000"),
				BaseScore:          floatPtr(5.5),
				Vector:             strPtr("CVSS:3.1/AV:L/AC:L/PR:L/UI:N/S:U/C:H/I:N/A:N"),
				ScoreSchemaVersion: strPtr("3.1"),
			},
		},
		{
			ID: "CVE-2024-1234",
			Record: types.Record{
				Description:        strPtr("Critical issue"),
				PublishedAt:        strPtr("2024-01-15T00:00:00.000"),
				BaseScore:          floatPtr(9.8),
				Vector:             strPtr("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"),
				ScoreSchemaVersion: strPtr("3.1"),
			},
		},
		{
			ID:     "CVE-2022-0001",
			Record: types.Record{PublishedAt: strPtr("2022-03-01T00:00:00.000")},
		},
	}
}

func TestRecordTable_Columns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, makeEntries(), TableConfig{}))
	output := buf.String()

	assert.Contains(t, output, "NVD records")
	assert.Contains(t, output, "===")
	assert.Contains(t, output, "Total: 3 (UNKNOWN: 1, NONE: 0, LOW: 0, MEDIUM: 1, HIGH: 0, CRITICAL: 1)")

	for _, ch := range []string{"┌", "┐", "└", "┘", "│"} {
		assert.Contains(t, output, ch)
	}
	for _, col := range []string{"Vulnerability", "Severity", "Score", "CVSS", "Vector", "Published", "Description"} {
		assert.Contains(t, output, col)
	}
	for _, expected := range []string{"CRITICAL", "MEDIUM", "UNKNOWN", "9.8", "5.5", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"} {
		assert.Contains(t, output, expected)
	}
	assert.Contains(t, output, "https://nvd.nist.gov/vuln/detail/CVE-2024-1234")
	assert.NotContains(t, output, "\x1b[", "no ANSI codes when not writing to a terminal")
}

func TestRecordTable_PreserveOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, makeEntries(), TableConfig{}))
	assertOrder(t, buf.String(), "CVE-2023-5678", "CVE-2024-1234", "CVE-2022-0001")
}

func TestRecordTable_SortByCVE(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, makeEntries(), TableConfig{SortBy: "cve"}))
	assertOrder(t, buf.String(), "CVE-2022-0001", "CVE-2023-5678", "CVE-2024-1234")
}

func TestRecordTable_SortByScore(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, makeEntries(), TableConfig{SortBy: "score"}))
	assertOrder(t, buf.String(), "CVE-2024-1234", "CVE-2023-5678", "CVE-2022-0001")
}

func TestRecordTable_SortByPublished(t *testing.T) {
	entries := makeEntries()
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, entries, TableConfig{SortBy: "published"}))
	assertOrder(t, buf.String(), "CVE-2024-1234", "CVE-2023-5678", "CVE-2022-0001")
	assert.Equal(t, "CVE-2023-5678", entries[0].ID, "input slice must not be reordered")
}

func TestValidSortKey(t *testing.T) {
	for _, key := range []string{"", "cve", "score", "published"} {
		assert.True(t, ValidSortKey(key), key)
	}
	for _, key := range []string{"risk", "CVE", "severity"} {
		assert.False(t, ValidSortKey(key), key)
	}
}

func TestRecordTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, nil, TableConfig{}))
	output := buf.String()

	assert.Contains(t, output, "Total: 0")
	assert.Contains(t, output, "┌")
	assert.Contains(t, output, "Vulnerability")
}

func TestRecordTable_NullFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, []Entry{{ID: "CVE-2020-0001"}}, TableConfig{}))
	output := buf.String()

	assert.Contains(t, output, "UNKNOWN")
	assert.Contains(t, output, "-")
	assert.Contains(t, output, "https://nvd.nist.gov/vuln/detail/CVE-2020-0001")
}

func TestRecordTable_DescriptionTruncation(t *testing.T) {
	long := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, []Entry{{ID: "CVE-2020-0001", Record: types.Record{Description: &long}}}, TableConfig{}))
	output := buf.String()

	assert.Contains(t, output, "...")
	assert.NotContains(t, output, "thirteen")
}

func TestRecordTable_Terminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecordTable(&buf, makeEntries(), TableConfig{IsTerminal: true}))
	output := buf.String()

	assert.NotContains(t, output, "===")
	assert.Contains(t, output, "CVE-2024-1234")
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		score *float64
		want  string
	}{
		{nil, "UNKNOWN"},
		{floatPtr(0), "NONE"},
		{floatPtr(3.9), "LOW"},
		{floatPtr(4.0), "MEDIUM"},
		{floatPtr(7.0), "HIGH"},
		{floatPtr(9.0), "CRITICAL"},
		{floatPtr(10), "CRITICAL"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, types.Record{BaseScore: tc.score}.Severity())
	}
}

func TestStatusTable(t *testing.T) {
	st := Status{
		Dir:        "/srv/nvd",
		LastSynced: time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC),
		Fresh:      true,
		Chunks:     3,
		Records:    250000,
		Bytes:      200 * 1024 * 1024,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteStatusTable(&buf, st, false))
	output := buf.String()

	assert.Contains(t, output, "/srv/nvd")
	assert.Contains(t, output, "2026-02-12T12:00:00Z")
	assert.Contains(t, output, "fresh")
	assert.Contains(t, output, "250000")
	assert.Contains(t, output, "200.0 MiB")
}

func TestStatusTable_NeverSynced(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatusTable(&buf, Status{Dir: "/srv/nvd"}, false))
	output := buf.String()

	assert.Contains(t, output, "never")
	assert.Contains(t, output, "stale")
	assert.Contains(t, output, "0 B")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(1536*1024))
	assert.Equal(t, "90.0 MiB", formatBytes(90*1024*1024))
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "a b", truncateWords("a b", 2))
	assert.Equal(t, "a b...", truncateWords("a b c", 2))
	assert.Equal(t, "", truncateWords("", 2))
}

// assertOrder checks that items appear in output in the given order.
func assertOrder(t *testing.T, output string, items ...string) {
	t.Helper()
	prev := -1
	for _, item := range items {
		idx := strings.Index(output, item)
		require.NotEqual(t, -1, idx, "missing %q in output", item)
		assert.Greater(t, idx, prev, "%q should appear after previous item", item)
		prev = idx
	}
}
