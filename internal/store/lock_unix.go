// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock takes an exclusive advisory lock on the store's base directory and
// then reinstalls a snapshot left behind by an interrupted Write. The
// returned function releases the lock. The kernel drops the lock if the process
// dies, so a crashed run never wedges the next one.
func (s *Store) Lock() (func() error, error) {
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	path := filepath.Join(s.base, lockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	s.restoreBackup()
	return func() error {
		defer f.Close()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
