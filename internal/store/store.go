// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package store persists a dataset as an ordered set of size-bounded JSON
// chunk files and reads it back.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/bonial-oss/nvd-mirror/internal/types"
)

const (
	// DefaultChunkSize is the default per-file byte ceiling (90 MiB).
	DefaultChunkSize = 90 * 1024 * 1024

	chunkDirName = "chunks"
	backupSuffix = ".old"
	tmpPrefix    = ".chunks-tmp-"
	chunkExt     = ".json"

	// Framing written around the entries of every chunk file.
	chunkOpen  = "{\n"
	chunkClose = "\n}\n"
	entrySep   = ",\n"

	readAttempts = 5
)

var (
	// ErrNoSnapshot is returned by Read when no chunk directory exists yet.
	ErrNoSnapshot = errors.New("no snapshot: bootstrap required")

	// ErrCorruptStore matches any CorruptStoreError.
	ErrCorruptStore = errors.New("corrupt store")

	errSnapshotMoved = errors.New("snapshot replaced during read")
)

// CorruptStoreError reports a chunk file that could not be read or parsed.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt chunk file %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// Is makes CorruptStoreError match ErrCorruptStore.
func (e *CorruptStoreError) Is(target error) bool { return target == ErrCorruptStore }

// Store manages the chunk directory under a base directory.
type Store struct {
	base      string
	chunkSize int64
	logger    *zap.Logger
}

// New returns a Store rooted at base. chunkSize <= 0 selects DefaultChunkSize.
func New(base string, chunkSize int64, logger *zap.Logger) *Store {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{base: base, chunkSize: chunkSize, logger: logger.Named("store")}
}

// Dir returns the chunk directory path.
func (s *Store) Dir() string {
	return filepath.Join(s.base, chunkDirName)
}

// Exists reports whether a snapshot is present, either installed or as the
// backup a swap in progress (or an interrupted one) left behind.
func (s *Store) Exists() bool {
	for _, path := range []string{s.Dir(), s.Dir() + backupSuffix} {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// Chunks returns the chunk file paths in read order.
func (s *Store) Chunks() ([]string, error) {
	snap, err := s.openSnapshot()
	if err != nil {
		return nil, err
	}
	defer snap.root.Close()
	paths := make([]string, len(snap.names))
	for i, name := range snap.names {
		paths[i] = filepath.Join(snap.root.Name(), name)
	}
	return paths, nil
}

// Stats summarizes the chunk files on disk.
type Stats struct {
	Chunks int
	Bytes  int64
}

// Stats counts the chunk files and their total size.
func (s *Store) Stats() (Stats, error) {
	snap, err := s.openSnapshot()
	if err != nil {
		return Stats{}, err
	}
	defer snap.root.Close()
	st := Stats{Chunks: len(snap.names)}
	for _, name := range snap.names {
		info, err := snap.root.Stat(name)
		if err != nil {
			return Stats{}, fmt.Errorf("stat chunk file: %w", err)
		}
		st.Bytes += info.Size()
	}
	return st, nil
}

// Read loads every chunk and unions them into one dataset. On key collision
// the later file wins. Read never modifies the store; a read that overlaps a
// Write is retried so the result always comes from a single snapshot.
func (s *Store) Read() (types.Dataset, error) {
	for attempt := 1; ; attempt++ {
		ds, err := s.readOnce()
		if err == nil {
			return ds, nil
		}
		if !errors.Is(err, errSnapshotMoved) || attempt == readAttempts {
			return nil, err
		}
		s.logger.Debug("snapshot replaced during read, retrying", zap.Int("attempt", attempt))
	}
}

func (s *Store) readOnce() (types.Dataset, error) {
	snap, err := s.openSnapshot()
	if err != nil {
		return nil, err
	}
	defer snap.root.Close()

	ds := make(types.Dataset)
	for _, name := range snap.names {
		path := filepath.Join(snap.root.Name(), name)
		data, err := readFile(snap.root, name)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errSnapshotMoved, path)
		}
		if err != nil {
			return nil, &CorruptStoreError{Path: path, Err: err}
		}
		var chunk map[string]types.Record
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, &CorruptStoreError{Path: path, Err: err}
		}
		for id, rec := range chunk {
			ds[id] = rec
		}
	}

	// The directory may have been moved aside or removed after it was
	// opened; its content is then no longer a snapshot on disk.
	if cur, err := os.Stat(snap.root.Name()); err != nil || !os.SameFile(cur, snap.info) {
		return nil, fmt.Errorf("%w: %s", errSnapshotMoved, snap.root.Name())
	}

	s.logger.Debug("read snapshot", zap.String("dir", snap.root.Name()),
		zap.Int("chunks", len(snap.names)), zap.Int("records", len(ds)))
	return ds, nil
}

// snapshot is a chunk directory pinned by an open handle. Files are opened
// relative to the handle, so renames of the directory cannot mix snapshots.
type snapshot struct {
	root  *os.Root
	info  os.FileInfo
	names []string
}

// openSnapshot opens the installed chunk directory, falling back to the
// backup that exists while a Write swaps directories.
func (s *Store) openSnapshot() (*snapshot, error) {
	dir := s.Dir()
	for _, path := range []string{dir, dir + backupSuffix, dir} {
		root, err := os.OpenRoot(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening chunk directory: %w", err)
		}
		snap, err := listChunks(root)
		if err != nil {
			root.Close()
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %v", errSnapshotMoved, err)
			}
			return nil, err
		}
		return snap, nil
	}
	return nil, ErrNoSnapshot
}

func listChunks(root *os.Root) (*snapshot, error) {
	d, err := root.Open(".")
	if err != nil {
		return nil, fmt.Errorf("opening chunk directory: %w", err)
	}
	defer d.Close()
	info, err := d.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat chunk directory: %w", err)
	}
	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("listing chunk directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), chunkExt) {
			names = append(names, e.Name())
		}
	}
	// Chunk names are zero padded, so name order is creation order.
	sort.Strings(names)
	return &snapshot{root: root, info: info, names: names}, nil
}

func readFile(root *os.Root, name string) ([]byte, error) {
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Write replaces the snapshot with ds. Records are written in identifier
// order into a fresh temporary directory, synced, and swapped into place, so
// readers see either the old snapshot or the new one. It returns the number
// of chunk files written.
func (s *Store) Write(ds types.Dataset) (int, error) {
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return 0, fmt.Errorf("creating store dir: %w", err)
	}
	s.restoreBackup()
	s.removeStaleTemps()

	tmp, err := os.MkdirTemp(s.base, tmpPrefix)
	if err != nil {
		return 0, fmt.Errorf("creating temporary chunk dir: %w", err)
	}
	defer os.RemoveAll(tmp) // no-op once renamed

	n, err := s.writeChunks(tmp, ds)
	if err != nil {
		return 0, err
	}
	if err := syncDir(tmp); err != nil {
		return 0, err
	}
	if err := s.swap(tmp); err != nil {
		return 0, err
	}

	s.logger.Info("wrote snapshot", zap.Int("chunks", n), zap.Int("records", len(ds)))
	return n, nil
}

// writeChunks partitions ds into files of at most chunkSize bytes. A single
// entry larger than the ceiling still gets a file of its own.
func (s *Store) writeChunks(dir string, ds types.Dataset) (int, error) {
	ids := make([]string, 0, len(ds))
	for id := range ds {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		seq     int
		entries [][]byte
		size    int64
	)
	flush := func() error {
		if len(entries) == 0 {
			return nil
		}
		seq++
		path := filepath.Join(dir, chunkName(seq))
		if err := writeChunkFile(path, entries); err != nil {
			return err
		}
		s.logger.Debug("wrote chunk", zap.String("path", path), zap.Int("records", len(entries)), zap.Int64("bytes", size))
		entries = entries[:0]
		return nil
	}

	for _, id := range ids {
		entry, err := encodeEntry(id, ds[id])
		if err != nil {
			return 0, err
		}
		next := int64(len(chunkOpen)+len(chunkClose)) + int64(len(entry))
		if len(entries) > 0 {
			next = size + int64(len(entrySep)) + int64(len(entry))
		}
		if next > s.chunkSize && len(entries) > 0 {
			if err := flush(); err != nil {
				return 0, err
			}
			next = int64(len(chunkOpen)+len(chunkClose)) + int64(len(entry))
		}
		entries = append(entries, entry)
		size = next
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return seq, nil
}

// swap moves tmp into place as the chunk directory, keeping the previous
// snapshot as a backup until the rename has succeeded.
func (s *Store) swap(tmp string) error {
	dir := s.Dir()
	backup := dir + backupSuffix

	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("removing old backup: %w", err)
	}
	hadPrevious := false
	if err := os.Rename(dir, backup); err == nil {
		hadPrevious = true
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("moving previous snapshot aside: %w", err)
	}

	if err := os.Rename(tmp, dir); err != nil {
		if hadPrevious {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("installing new snapshot: %w", err)
	}
	if err := syncDir(s.base); err != nil {
		return err
	}
	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			s.logger.Warn("failed to remove previous snapshot", zap.String("path", backup), zap.Error(err))
		}
	}
	return nil
}

// restoreBackup reinstalls the backup left behind when a swap was interrupted
// after the previous snapshot was moved aside. It renames directories, so
// only the lock holder may call it.
func (s *Store) restoreBackup() {
	dir := s.Dir()
	backup := dir + backupSuffix
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		return
	}
	if _, err := os.Stat(backup); err != nil {
		return
	}
	if err := os.Rename(backup, dir); err != nil {
		s.logger.Warn("failed to restore snapshot backup", zap.String("path", backup), zap.Error(err))
		return
	}
	s.logger.Warn("restored snapshot from interrupted write", zap.String("path", dir))
}

func (s *Store) removeStaleTemps() {
	matches, _ := filepath.Glob(filepath.Join(s.base, tmpPrefix+"*"))
	for _, m := range matches {
		_ = os.RemoveAll(m)
	}
}

func chunkName(seq int) string {
	return fmt.Sprintf("%05d%s", seq, chunkExt)
}

// encodeEntry renders one `"id": record` member of a chunk object.
func encodeEntry(id string, rec types.Record) ([]byte, error) {
	key, err := marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encoding identifier %s: %w", id, err)
	}
	val, err := marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", id, err)
	}
	entry := make([]byte, 0, len(key)+len(val)+4)
	entry = append(entry, "  "...)
	entry = append(entry, key...)
	entry = append(entry, ": "...)
	entry = append(entry, val...)
	return entry, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeChunkFile(path string, entries [][]byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating chunk file: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(chunkOpen)
	buf.Write(bytes.Join(entries, []byte(entrySep)))
	buf.WriteString(chunkClose)

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("writing chunk file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing chunk file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing chunk file: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening dir for sync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("syncing dir: %w", err)
	}
	return nil
}
