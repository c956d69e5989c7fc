// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long a sync stays fresh.
	DefaultTTL = 24 * time.Hour

	filename = "last_update.txt"
)

// State persists the time of the last successful sync as a single ISO-8601
// timestamp in a text file.
type State struct {
	dir string
	ttl time.Duration
}

func New(dir string) *State {
	return &State{dir: dir, ttl: DefaultTTL}
}

// Path returns the timestamp file path.
func (s *State) Path() string {
	return filepath.Join(s.dir, filename)
}

// TTL returns the freshness window.
func (s *State) TTL() time.Duration {
	return s.ttl
}

// LastSynced returns the persisted timestamp. ok is false when no timestamp
// has been written yet.
func (s *State) LastSynced() (t time.Time, ok bool, err error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("reading sync timestamp: %w", err)
	}
	t, err = time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing sync timestamp %s: %w", s.Path(), err)
	}
	return t, true, nil
}

// IsFresh reports whether the last sync happened less than the TTL before now.
func (s *State) IsFresh(now time.Time) bool {
	t, ok, err := s.LastSynced()
	if err != nil || !ok {
		return false
	}
	return now.Sub(t) < s.ttl
}

// Commit records t as the last sync time. The file is replaced atomically.
func (s *State) Commit(t time.Time) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	f, err := os.CreateTemp(s.dir, filename+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temporary timestamp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(t.UTC().Format(time.RFC3339Nano) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("writing sync timestamp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing sync timestamp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing sync timestamp: %w", err)
	}
	if err := os.Rename(f.Name(), s.Path()); err != nil {
		return fmt.Errorf("installing sync timestamp: %w", err)
	}
	return nil
}
