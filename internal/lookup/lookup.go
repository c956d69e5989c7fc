// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package lookup answers point queries against the local mirror.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bonial-oss/nvd-mirror/internal/syncer"
	"github.com/bonial-oss/nvd-mirror/internal/types"
)

// ErrNotFound is returned when the mirror has no record for an identifier.
var ErrNotFound = errors.New("CVE not found")

// Reader is the read side of the snapshot.
type Reader interface {
	Exists() bool
	Read() (types.Dataset, error)
}

// Runner performs a sync.
type Runner interface {
	Run(ctx context.Context, reinit bool) (*syncer.Result, error)
}

// Searcher looks up CVEs, triggering a first sync when the mirror is empty.
type Searcher struct {
	store  Reader
	sync   Runner
	logger *zap.Logger
	data   types.Dataset
}

// New creates a Searcher. sync may be nil, in which case a missing snapshot
// is reported as the snapshot's read error instead of being synced.
func New(r Reader, sync Runner, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{store: r, sync: sync, logger: logger.Named("lookup")}
}

// Load returns the full merged dataset, reading it at most once.
func (s *Searcher) Load(ctx context.Context) (types.Dataset, error) {
	if s.data != nil {
		return s.data, nil
	}
	if !s.store.Exists() && s.sync != nil {
		s.logger.Info("no local snapshot, running first sync")
		res, err := s.sync.Run(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("initial sync: %w", err)
		}
		s.data = res.Dataset
		return s.data, nil
	}
	ds, err := s.store.Read()
	if err != nil {
		return nil, err
	}
	s.data = ds
	return s.data, nil
}

// Lookup returns the record for id, matched case-insensitively.
func (s *Searcher) Lookup(ctx context.Context, id string) (types.Record, error) {
	ds, err := s.Load(ctx)
	if err != nil {
		return types.Record{}, err
	}
	rec, ok := ds.Get(id)
	if !ok {
		return types.Record{}, fmt.Errorf("%w: %s", ErrNotFound, types.NormalizeID(id))
	}
	return rec, nil
}
