// Package sqlitestore is a physical hawk.Storage kept in a SQLite database.
// The schema is managed by the migrations subpackage; relations are
// enforced with foreign keys, so removing a user or a group cascades in the
// database itself.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"hawk-go/internal/hawk"
	"hawk-go/internal/storage/sqlitestore/migrations"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements hawk.Storage over SQLite. Calls are serialized with a
// mutex and multi-row changes run in a transaction.
type Store struct {
	mu     sync.Mutex
	path   string
	logger hawk.Logger
	clock  hawk.Clock
	idgen  hawk.IDGenerator
	db     *sql.DB
}

var (
	_ hawk.Storage     = (*Store)(nil)
	_ hawk.Snapshotter = (*Store)(nil)
)

// New creates a closed Store for the database at path. clock and idgen are
// used only to bootstrap the administrator of an empty database.
func New(path string, logger hawk.Logger, clock hawk.Clock, idgen hawk.IDGenerator) *Store {
	return &Store{
		path:   path,
		logger: hawk.LoggerOrNop(logger),
		clock:  clock,
		idgen:  idgen,
	}
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes
	// writers on a file database.
	db.SetMaxOpenConns(1)

	// SQLite default is OFF for backward compatibility
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// Open connects, migrates the schema and creates the administrator when
// the database has no users.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	if s.path != MemoryPath {
		if info, err := os.Stat(s.path); err == nil && info.IsDir() {
			return fmt.Errorf("opening %s: %w", s.path, hawk.ErrObjectNotFile)
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w: %w", hawk.ErrOpenFileFail, err)
		}
	}

	db, err := OpenConnection(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", hawk.ErrOpenFileFail, err)
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", hawk.ErrIncorrectVersion, err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", hawk.ErrIncorrectVersion, err)
	}
	s.db = db

	if err := s.bootstrapLocked(); err != nil {
		s.closeLocked()
		return err
	}
	s.logger.Info("sqlite storage opened", "path", s.path)
	return nil
}

func (s *Store) bootstrapLocked() error {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil
	}
	admin := hawk.NewAdminUser(s.idgen.New(), hawk.StorageTime(s.clock))
	if err := insertUser(context.Background(), s.db, admin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}
	s.logger.Info("sqlite storage created", "path", s.path, "admin", admin.UUID)
	return nil
}

// IsOpen reports whether a connection is held.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// Close releases the connection. Committed changes are already durable.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Store) closeLocked() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database", "path", s.path, "error", err)
	}
	s.db = nil
}

// WriteSnapshot copies a consistent image of the database to w using
// VACUUM INTO.
func (s *Store) WriteSnapshot(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "hawk-snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := s.db.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("vacuum into snapshot: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func (s *Store) requireOpen() error {
	if s.db == nil {
		return hawk.ErrNotOpen
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction that is committed only when fn succeeds.
func (s *Store) inTx(fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// exists reports whether query returns a row.
func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func userExists(ctx context.Context, q querier, id string) (bool, error) {
	return exists(ctx, q, "SELECT 1 FROM users WHERE uuid = ?", id)
}

func groupExists(ctx context.Context, q querier, id string) (bool, error) {
	return exists(ctx, q, "SELECT 1 FROM chat_groups WHERE uuid = ?", id)
}

func requireUser(ctx context.Context, q querier, id string) error {
	ok, err := userExists(ctx, q, id)
	if err != nil {
		return fmt.Errorf("looking up user %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("user %s: %w", id, hawk.ErrUserNotExists)
	}
	return nil
}

func requireGroup(ctx context.Context, q querier, id string) error {
	ok, err := groupExists(ctx, q, id)
	if err != nil {
		return fmt.Errorf("looking up group %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("group %s: %w", id, hawk.ErrGroupNotExists)
	}
	return nil
}

// queryIDs collects a single string column.
func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
