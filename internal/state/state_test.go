// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_LastSynced_NoFile(t *testing.T) {
	s := New(t.TempDir())

	_, ok, err := s.LastSynced()
	require.NoError(t, err)
	assert.False(t, ok, "LastSynced() ok = true, want false when no timestamp file exists")
}

func TestState_Commit(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	now := time.Date(2026, 2, 12, 8, 30, 15, 123456789, time.UTC)
	require.NoError(t, s.Commit(now))

	got, ok, err := s.LastSynced()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, now.Equal(got), "LastSynced() = %v, want %v", got, now)

	// Exactly one file, no temporaries left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filename, entries[0].Name())
}

func TestState_LastSynced_NumericOffset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte("2024-05-01T10:20:30.123456+00:00"), 0o644))

	got, ok, err := New(dir).LastSynced()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC), got.UTC())
}

func TestState_LastSynced_Garbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte("yesterday-ish"), 0o644))

	_, ok, err := New(dir).LastSynced()
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestState_IsFresh(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name string
		ago  time.Duration
		want bool
	}{
		{"one hour ago", time.Hour, true},
		{"ten hours ago", 10 * time.Hour, true},
		{"twenty five hours ago", 25 * time.Hour, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(t.TempDir())
			require.NoError(t, s.Commit(now.Add(-tc.ago)))
			assert.Equal(t, tc.want, s.IsFresh(now))
		})
	}

	assert.False(t, New(t.TempDir()).IsFresh(now), "IsFresh() = true, want false without a timestamp")
}
