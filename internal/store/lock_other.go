// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package store

import (
	"fmt"
	"os"
)

// Lock only ensures the base directory exists and reinstalls an interrupted
// Write's backup on platforms without flock.
func (s *Store) Lock() (func() error, error) {
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	s.restoreBackup()
	return func() error { return nil }, nil
}
