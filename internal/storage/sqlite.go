package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements service.DocumentStore on top of SQLite. Every
// document is a row keyed by its full path with its fields stored as JSON.
type SQLiteStorage struct {
	db     *sql.DB
	hub    *hub
	logger *slog.Logger
	now    func() time.Time
	dbPath string
}

var _ service.DocumentStore = (*SQLiteStorage)(nil)

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets the logger used for background listener work.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to resolve ServerTimestamp values.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSQLiteStorage opens (or creates) the database at dbPath. Use ":memory:"
// for a throwaway store.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger)
	return s, nil
}

// Close stops every live listener and closes the database.
func (s *SQLiteStorage) Close() error {
	s.hub.close()
	return s.db.Close()
}

// NewCheckpointManager creates a checkpoint manager for this database.
func (s *SQLiteStorage) NewCheckpointManager() (*CheckpointManager, error) {
	return NewCheckpointManager(s.db, s.dbPath)
}

// NewID returns a fresh random document id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the document at path, or common.ErrNotFound.
func (s *SQLiteStorage) Get(ctx context.Context, path string) (*service.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getDoc(ctx, s.db, path)
}

// Exists reports whether a document exists at path.
func (s *SQLiteStorage) Exists(ctx context.Context, path string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if _, _, err := splitDocumentPath(path); err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE path = ?`, path).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check document %s: %w", path, err)
	}
	return n > 0, nil
}

// List returns the direct children of a collection ordered by id.
func (s *SQLiteStorage) List(ctx context.Context, collection string) ([]service.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listDocs(ctx, s.db, collection)
}

// Set overwrites the document at path.
func (s *SQLiteStorage) Set(ctx context.Context, path string, data map[string]any) error {
	return s.Batch().Set(path, data).Commit(ctx)
}

// Merge deep-merges data into the document at path, creating it when absent.
func (s *SQLiteStorage) Merge(ctx context.Context, path string, data map[string]any) error {
	return s.Batch().Merge(path, data).Commit(ctx)
}

// Update deep-merges data into an existing document. It fails with
// common.ErrNotFound when the document does not exist.
func (s *SQLiteStorage) Update(ctx context.Context, path string, data map[string]any) error {
	return s.Batch().Update(path, data).Commit(ctx)
}

// Delete removes the document at path. Sub-collections are left in place and
// deleting a missing document is not an error.
func (s *SQLiteStorage) Delete(ctx context.Context, path string) error {
	return s.Batch().Delete(path).Commit(ctx)
}

// Add creates a document with a generated id in collection.
func (s *SQLiteStorage) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validateCollectionPath(collection); err != nil {
		return "", err
	}
	id := NewID()
	if err := s.Set(ctx, collection+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

// RunTransaction runs fn inside a database transaction. Reads and writes must
// go through tx; an error from fn rolls every write back.
func (s *SQLiteStorage) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: fn", ErrNilParameter)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &sqliteTx{tx: sqlTx, now: s.now(), changed: make(map[string]struct{})}
	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.notify(tx.changedCollections())
	return nil
}

// sqliteTx implements service.Tx over a sql.Tx.
type sqliteTx struct {
	tx      *sql.Tx
	changed map[string]struct{}
	now     time.Time
}

func (t *sqliteTx) Get(ctx context.Context, path string) (*service.Document, error) {
	return getDoc(ctx, t.tx, path)
}

func (t *sqliteTx) List(ctx context.Context, collection string) ([]service.Document, error) {
	return listDocs(ctx, t.tx, collection)
}

func (t *sqliteTx) Set(ctx context.Context, path string, data map[string]any) error {
	return t.apply(ctx, writeOp{kind: opSet, path: path, data: data})
}

func (t *sqliteTx) Merge(ctx context.Context, path string, data map[string]any) error {
	return t.apply(ctx, writeOp{kind: opMerge, path: path, data: data})
}

func (t *sqliteTx) Update(ctx context.Context, path string, data map[string]any) error {
	return t.apply(ctx, writeOp{kind: opUpdate, path: path, data: data})
}

func (t *sqliteTx) Delete(ctx context.Context, path string) error {
	return t.apply(ctx, writeOp{kind: opDelete, path: path})
}

func (t *sqliteTx) apply(ctx context.Context, op writeOp) error {
	parent, err := applyOp(ctx, t.tx, op, t.now)
	if err != nil {
		return err
	}
	t.changed[parent] = struct{}{}
	return nil
}

func (t *sqliteTx) changedCollections() []string {
	out := make([]string, 0, len(t.changed))
	for c := range t.changed {
		out = append(out, c)
	}
	return out
}
