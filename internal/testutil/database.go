// Package testutil provides shared helpers for tests that need a document store.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// FixedTime is the clock used by stores created with SetupTestStore.
var FixedTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// SetupTestStore creates a migrated in-memory store that is closed when the
// test ends. Server timestamps resolve to FixedTime.
func SetupTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:",
		storage.WithClock(func() time.Time { return FixedTime }))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// Seed writes each document in docs, keyed by path.
func Seed(t *testing.T, store service.DocumentStore, docs map[string]map[string]any) {
	t.Helper()

	batch := store.Batch()
	for path, data := range docs {
		batch.Set(path, data)
	}
	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("failed to seed documents: %v", err)
	}
}

// MustGet returns the fields of the document at path or fails the test.
func MustGet(t *testing.T, store service.DocumentStore, path string) map[string]any {
	t.Helper()

	doc, err := store.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to get %s: %v", path, err)
	}
	return doc.Data
}

// Count returns the number of documents in collection or fails the test.
func Count(t *testing.T, store service.DocumentStore, collection string) int {
	t.Helper()

	docs, err := store.List(context.Background(), collection)
	if err != nil {
		t.Fatalf("failed to list %s: %v", collection, err)
	}
	return len(docs)
}
