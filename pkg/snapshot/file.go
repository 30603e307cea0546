// Package snapshot persists the most recent feed snapshot. Writes go to a candidate
// slot first and are promoted to the current slot afterwards, so an interrupted
// write leaves either the old or the new snapshot intact.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/newsrelay/pkg/domain"
)

// candidateSuffix is appended to the current slot path to make the candidate slot path
const candidateSuffix = ".new"

// FileStore keeps the snapshot as a JSON array of strings in a file
type FileStore struct {
	current   string
	candidate string
	mu        sync.Mutex
}

// NewFileStore makes a store with the current slot at path, the directory is created if missing
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("empty snapshot path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &FileStore{current: path, candidate: path + candidateSuffix}, nil
}

// Load returns the persisted snapshot or domain.ErrSnapshotNotFound if nothing was stored yet.
// If the current slot is gone but a candidate exists, the write was interrupted between
// removal and rename, and the candidate is complete.
func (s *FileStore) Load(_ context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := readSlot(s.current)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return domain.Snapshot{}, &domain.StorageError{Op: "load", Err: err}
	}

	res, err = readSlot(s.candidate)
	if err == nil {
		lgr.Printf("[WARN] current snapshot %s missing, using candidate %s", s.current, s.candidate)
		return res, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	return domain.Snapshot{}, &domain.StorageError{Op: "load", Err: err}
}

// Store writes snap to the candidate slot, syncs it, then removes the current slot and
// moves the candidate in its place
func (s *FileStore) Store(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "store", Err: err}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return &domain.StorageError{Op: "store", Err: fmt.Errorf("marshal snapshot: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeSynced(s.candidate, data); err != nil {
		return &domain.StorageError{Op: "store", Err: err}
	}
	if err := os.Remove(s.current); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.StorageError{Op: "store", Err: fmt.Errorf("remove current slot: %w", err)}
	}
	if err := os.Rename(s.candidate, s.current); err != nil {
		return &domain.StorageError{Op: "store", Err: fmt.Errorf("promote candidate slot: %w", err)}
	}
	lgr.Printf("[DEBUG] snapshot with %d headlines stored to %s", snap.Len(), s.current)
	return nil
}

func readSlot(path string) (domain.Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return domain.Snapshot{}, err
	}
	var res domain.Snapshot
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return res, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:gosec // path comes from config
	if err != nil {
		return fmt.Errorf("open candidate slot: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write candidate slot: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync candidate slot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close candidate slot: %w", err)
	}
	return nil
}
