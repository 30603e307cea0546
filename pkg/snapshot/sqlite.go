package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/umputun/newsrelay/pkg/domain"
)

//go:embed schema.sql
var schemaSQL string

// errCritical stops repeater, anything not wrapped with it is a lock error worth retrying
var errCritical = errors.New("critical database error")

// SQLiteStore keeps the snapshot in a sqlite table with current and candidate rows
type SQLiteStore struct {
	db *sqlx.DB
	mu sync.Mutex
}

// NewSQLiteStore opens the database and makes sure the schema exists
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "file:newsrelay.db?cache=shared&mode=rwc&_txlock=immediate"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the current snapshot or domain.ErrSnapshotNotFound
func (s *SQLiteStore) Load(ctx context.Context) (domain.Snapshot, error) {
	var data string
	err := s.db.GetContext(ctx, &data, "SELECT headlines FROM snapshots WHERE slot = 'current'")
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, &domain.StorageError{Op: "load", Err: fmt.Errorf("get current slot: %w", err)}
	}

	var res domain.Snapshot
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return domain.Snapshot{}, &domain.StorageError{Op: "load", Err: err}
	}
	return res, nil
}

// Store upserts the candidate row, then replaces the current row with it in one transaction.
// SQLite lock errors are retried with backoff.
func (s *SQLiteStore) Store(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return &domain.StorageError{Op: "store", Err: fmt.Errorf("marshal snapshot: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		return s.write(ctx, string(data))
	}, errCritical)
	if err != nil {
		return &domain.StorageError{Op: "store", Err: err}
	}
	lgr.Printf("[DEBUG] snapshot with %d headlines stored to database", snap.Len())
	return nil
}

func (s *SQLiteStore) write(ctx context.Context, data string) error {
	upsert := `
		INSERT INTO snapshots (slot, headlines, updated_at) VALUES ('candidate', ?, ?)
		ON CONFLICT(slot) DO UPDATE SET headlines = excluded.headlines, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, upsert, data, time.Now().UTC()); err != nil {
		return classify("write candidate slot", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots WHERE slot = 'current'"); err != nil {
		return classify("remove current slot", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE snapshots SET slot = 'current' WHERE slot = 'candidate'"); err != nil {
		return classify("promote candidate slot", err)
	}
	if err := tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// classify wraps err with context, non-lock errors are marked critical to stop retries
func classify(op string, err error) error {
	if isLockError(err) {
		return fmt.Errorf("%s: %w", op, err) // repeater will retry this
	}
	return fmt.Errorf("%w: %s: %w", errCritical, op, err)
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
