// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package syncer decides per run whether the local mirror needs a full
// bootstrap, an incremental refresh or nothing, and commits the result.
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bonial-oss/nvd-mirror/internal/datasource/nvd"
	"github.com/bonial-oss/nvd-mirror/internal/normalize"
	"github.com/bonial-oss/nvd-mirror/internal/state"
	"github.com/bonial-oss/nvd-mirror/internal/types"
)

// Epoch is the earliest publish date a bootstrap asks the upstream for.
var Epoch = time.Date(1988, time.October, 1, 0, 0, 0, 0, time.UTC)

// Fetcher retrieves raw CVEs for a time span, page by page.
type Fetcher interface {
	FetchSpan(ctx context.Context, start, end time.Time, mode nvd.Mode, fn nvd.PageFunc) error
}

// Snapshot is the on-disk dataset.
type Snapshot interface {
	Exists() bool
	Read() (types.Dataset, error)
	Write(ds types.Dataset) (int, error)
	Lock() (func() error, error)
}

// SyncState holds the last successful sync time.
type SyncState interface {
	LastSynced() (time.Time, bool, error)
	Commit(t time.Time) error
}

// Outcome describes what a run did.
type Outcome int

const (
	// OutcomeFresh means the snapshot was recent enough; nothing was fetched.
	OutcomeFresh Outcome = iota
	// OutcomeRefresh means records changed since the last sync were merged.
	OutcomeRefresh
	// OutcomeFullSync means the dataset was rebuilt from the epoch.
	OutcomeFullSync
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRefresh:
		return "refresh"
	case OutcomeFullSync:
		return "full-sync"
	default:
		return "fresh"
	}
}

// Result summarizes a run.
type Result struct {
	Outcome    Outcome
	Dataset    types.Dataset
	Fetched    int
	Chunks     int
	Committed  bool
	LastSynced time.Time
}

// Syncer runs the sync state machine. Only the Syncer writes to the snapshot
// and the sync state.
type Syncer struct {
	fetcher Fetcher
	store   Snapshot
	state   SyncState
	logger  *zap.Logger
	now     func() time.Time
	ttl     time.Duration
	epoch   time.Time
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithEpoch overrides the bootstrap start date.
func WithEpoch(epoch time.Time) Option {
	return func(s *Syncer) { s.epoch = epoch }
}

func New(f Fetcher, snap Snapshot, st SyncState, logger *zap.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Syncer{
		fetcher: f,
		store:   snap,
		state:   st,
		logger:  logger.Named("sync"),
		now:     time.Now,
		ttl:     state.DefaultTTL,
		epoch:   Epoch,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run performs one sync. reinit discards the existing snapshot and rebuilds
// from the epoch. The snapshot is written before the timestamp, so a crash
// in between only causes the next run to refetch an overlapping window.
func (s *Syncer) Run(ctx context.Context, reinit bool) (*Result, error) {
	unlock, err := s.store.Lock()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn("failed to release store lock", zap.Error(err))
		}
	}()

	now := s.now().UTC()
	res := &Result{Outcome: OutcomeFresh, Dataset: make(types.Dataset)}

	exists := s.store.Exists()
	bootstrap := !exists || reinit
	if bootstrap {
		s.logger.Info("starting full sync",
			zap.Time("from", s.epoch),
			zap.Time("to", now),
			zap.Bool("reinit", reinit))
		n, err := s.fetch(ctx, res.Dataset, s.epoch, now, nvd.ByPublishDate)
		if err != nil {
			return nil, fmt.Errorf("full sync: %w", err)
		}
		res.Fetched += n
		res.Outcome = OutcomeFullSync
	}

	last, ok, err := s.state.LastSynced()
	if err != nil {
		s.logger.Warn("ignoring unreadable sync timestamp", zap.Error(err))
		ok = false
	}
	if !ok {
		last = now.Add(-2 * s.ttl)
	}
	res.LastSynced = last

	if exists && !reinit {
		ds, err := s.store.Read()
		if err != nil {
			return nil, fmt.Errorf("reading snapshot: %w", err)
		}
		res.Dataset = ds
	}

	refresh := last.Before(now.Add(-s.ttl)) || reinit
	if refresh {
		s.logger.Info("refreshing", zap.Time("since", last), zap.Time("until", now))
		for _, mode := range []nvd.Mode{nvd.ByPublishDate, nvd.ByModifyDate} {
			n, err := s.fetch(ctx, res.Dataset, last, now, mode)
			if err != nil {
				return nil, fmt.Errorf("refresh %s: %w", mode, err)
			}
			res.Fetched += n
		}
		if res.Outcome == OutcomeFresh {
			res.Outcome = OutcomeRefresh
		}
	}

	if !refresh && !bootstrap {
		s.logger.Info("snapshot is fresh", zap.Time("last_synced", last))
		return res, nil
	}
	if len(res.Dataset) == 0 {
		s.logger.Warn("nothing to commit: dataset is empty")
		return res, nil
	}

	chunks, err := s.store.Write(res.Dataset)
	if err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := s.state.Commit(now); err != nil {
		return nil, fmt.Errorf("writing sync timestamp: %w", err)
	}
	res.Chunks = chunks
	res.Committed = true
	res.LastSynced = now

	s.logger.Info("sync committed",
		zap.Stringer("outcome", res.Outcome),
		zap.Int("records", len(res.Dataset)),
		zap.Int("fetched", res.Fetched),
		zap.Int("chunks", chunks))
	return res, nil
}

func (s *Syncer) fetch(ctx context.Context, ds types.Dataset, start, end time.Time, mode nvd.Mode) (int, error) {
	n := 0
	err := s.fetcher.FetchSpan(ctx, start, end, mode, func(cves []types.RawCVE) error {
		n += normalize.MergeAll(ds, cves)
		return nil
	})
	return n, err
}
