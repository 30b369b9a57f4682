package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStorage opens a migrated store backed by a temp file.
func createTestStorage(t *testing.T, opts ...Option) *SQLiteStorage {
	t.Helper()
	return openTestStorage(t, filepath.Join(t.TempDir(), "test.db"), opts...)
}

func openTestStorage(t *testing.T, dbPath string, opts ...Option) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(dbPath, opts...)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_SetGet(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	err := store.Set(ctx, "clients/c1", map[string]any{
		"firstName": "Jane",
		"scores":    map[string]any{"experian": 710},
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "clients/c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", doc.ID)
	assert.Equal(t, "clients/c1", doc.Path)
	assert.Equal(t, "Jane", doc.Data["firstName"])
	assert.Equal(t, map[string]any{"experian": float64(710)}, doc.Data["scores"])
	assert.False(t, doc.CreateTime.IsZero())

	// Set overwrites every field but keeps the create time.
	require.NoError(t, store.Set(ctx, "clients/c1", map[string]any{"lastName": "Doe"}))
	again, err := store.Get(ctx, "clients/c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lastName": "Doe"}, again.Data)
	assert.Equal(t, doc.CreateTime, again.CreateTime)
}

func TestSQLiteStorage_GetMissing(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.Get(context.Background(), "clients/nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)

	ok, err := store.Exists(context.Background(), "clients/nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_InvalidPaths(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		run  func() error
		name string
	}{
		{name: "get collection path", run: func() error { _, err := store.Get(ctx, "clients"); return err }},
		{name: "list document path", run: func() error { _, err := store.List(ctx, "clients/c1"); return err }},
		{name: "set empty segment", run: func() error { return store.Set(ctx, "clients//tasks/t1", nil) }},
		{name: "delete empty", run: func() error { return store.Delete(ctx, "") }},
		{name: "add to document", run: func() error { _, err := store.Add(ctx, "clients/c1", nil); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), ErrInvalidPath)
		})
	}
}

func TestSQLiteStorage_MergeIsDeep(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	path := "clients/c1/banking_relationships/l1"

	// Merge creates the document when absent.
	require.NoError(t, store.Merge(ctx, path, map[string]any{
		"institution": "Navy Federal",
		"pulls":       map[string]any{"experian": true, "equifax": false},
	}))
	require.NoError(t, store.Merge(ctx, path, map[string]any{
		"status": "approved",
		"pulls":  map[string]any{"equifax": true},
	}))

	doc, err := store.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Navy Federal", doc.Data["institution"])
	assert.Equal(t, "approved", doc.Data["status"])
	assert.Equal(t, map[string]any{"experian": true, "equifax": true}, doc.Data["pulls"])
}

func TestSQLiteStorage_UpdateRequiresDocument(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	err := store.Update(ctx, "clients/ghost", map[string]any{"isPinned": true})
	assert.ErrorIs(t, err, common.ErrNotFound)

	exists, err := store.Exists(ctx, "clients/ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteStorage_DeleteDoesNotCascade(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "clients/c1", map[string]any{"firstName": "Jane"}))
	require.NoError(t, store.Set(ctx, "clients/c1/tasks/t1", map[string]any{"title": "Call"}))

	require.NoError(t, store.Delete(ctx, "clients/c1"))
	require.NoError(t, store.Delete(ctx, "clients/c1"), "deleting twice is not an error")

	tasks, err := store.List(ctx, "clients/c1/tasks")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSQLiteStorage_ListDirectChildren(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for _, p := range []string{"clients/b", "clients/a", "clients/a/tasks/t1", "funding_sources/x"} {
		require.NoError(t, store.Set(ctx, p, map[string]any{"n": p}))
	}

	docs, err := store.List(ctx, "clients")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)

	empty, err := store.List(ctx, "law_library_docs")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStorage_ServerTimestamp(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store := createTestStorage(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	id, err := store.Add(ctx, "clients", map[string]any{
		"createdAt": ServerTimestamp,
		"nested":    map[string]any{"at": ServerTimestamp},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, err := store.Get(ctx, "clients/"+id)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05Z", doc.Data["createdAt"])
	assert.Equal(t, map[string]any{"at": "2024-01-02T03:04:05Z"}, doc.Data["nested"])

	var decoded struct {
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, doc.DataTo(&decoded))
	assert.True(t, fixed.Equal(decoded.CreatedAt))
}

func TestWriteBatch_AllOrNothing(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	err := store.Batch().
		Set("clients/c1", map[string]any{"firstName": "Jane"}).
		Update("clients/missing", map[string]any{"status": "Active"}).
		Commit(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)

	exists, err := store.Exists(ctx, "clients/c1")
	require.NoError(t, err)
	assert.False(t, exists, "first write must be rolled back")
}

func TestWriteBatch_Empty(t *testing.T) {
	store := createTestStorage(t)
	b := store.Batch()
	assert.Equal(t, 0, b.Len())
	assert.NoError(t, b.Commit(context.Background()))
}

func TestWriteBatch_RejectsBadPathUpFront(t *testing.T) {
	store := createTestStorage(t)
	err := store.Batch().Set("clients/c1", nil).Delete("clients").Commit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestRunTransaction(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "clients/c1", map[string]any{"status": "Lead"}))

	t.Run("commits read-then-write", func(t *testing.T) {
		err := store.RunTransaction(ctx, func(ctx context.Context, tx service.Tx) error {
			doc, err := tx.Get(ctx, "clients/c1")
			if err != nil {
				return err
			}
			return tx.Merge(ctx, "clients/c1/active_ops/l1", map[string]any{"copied": doc.Data["status"]})
		})
		require.NoError(t, err)

		doc, err := store.Get(ctx, "clients/c1/active_ops/l1")
		require.NoError(t, err)
		assert.Equal(t, "Lead", doc.Data["copied"])
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunTransaction(ctx, func(ctx context.Context, tx service.Tx) error {
			if err := tx.Delete(ctx, "clients/c1"); err != nil {
				return err
			}
			// Writes are visible inside the transaction.
			if _, err := tx.Get(ctx, "clients/c1"); !errors.Is(err, common.ErrNotFound) {
				return errors.New("delete not visible inside transaction")
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		exists, err := store.Exists(ctx, "clients/c1")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestToFields(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Notes string `json:"notes,omitempty"`
		Count int    `json:"count"`
	}
	fields, err := ToFields(payload{Name: "x", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "x", "count": float64(2)}, fields)

	_, err = ToFields([]int{1})
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestNewSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Migrate(context.Background()))

	require.NoError(t, store.Set(context.Background(), "clients/c1", map[string]any{"a": 1}))
	ok, err := store.Exists(context.Background(), "clients/c1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.NewCheckpointManager()
	assert.ErrorIs(t, err, ErrInMemoryCheckpoint)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(" ")
	assert.ErrorIs(t, err, ErrEmptyString)
}
