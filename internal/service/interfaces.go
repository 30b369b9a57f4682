// Package service defines the interfaces shared between application services.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Document is a single stored document snapshot.
type Document struct {
	CreateTime time.Time
	UpdateTime time.Time
	Data       map[string]any
	ID         string
	Path       string
}

// DataTo decodes the document fields into v, which must be a pointer to a
// struct with json tags.
func (d *Document) DataTo(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", d.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.Path, err)
	}
	return nil
}

// DocumentStore defines the contract for our persistence layer: a hierarchical
// document database addressed by slash-separated paths.
type DocumentStore interface {
	// Single-document reads
	Get(ctx context.Context, path string) (*Document, error)
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, collection string) ([]Document, error)

	// Single-document writes
	Set(ctx context.Context, path string, data map[string]any) error
	Merge(ctx context.Context, path string, data map[string]any) error
	Update(ctx context.Context, path string, data map[string]any) error
	Delete(ctx context.Context, path string) error
	Add(ctx context.Context, collection string, data map[string]any) (string, error)

	// Atomic units
	Batch() WriteBatch
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Live queries
	Listen(ctx context.Context, collection string, fn func([]Document)) (Listener, error)
}

// WriteBatch collects blind writes that commit all-or-nothing.
type WriteBatch interface {
	Set(path string, data map[string]any) WriteBatch
	Merge(path string, data map[string]any) WriteBatch
	Update(path string, data map[string]any) WriteBatch
	Delete(path string) WriteBatch
	Len() int
	Commit(ctx context.Context) error
}

// Tx is a read-then-write unit; writes are visible to later reads in the same Tx.
type Tx interface {
	Get(ctx context.Context, path string) (*Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Set(ctx context.Context, path string, data map[string]any) error
	Merge(ctx context.Context, path string, data map[string]any) error
	Update(ctx context.Context, path string, data map[string]any) error
	Delete(ctx context.Context, path string) error
}

// Listener is a live query handle.
type Listener interface {
	Stop()
	// Done is closed once the listener has stopped, whether through Stop or
	// because its context ended.
	Done() <-chan struct{}
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
