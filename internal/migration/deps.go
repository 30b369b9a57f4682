// Package migration moves every client's legacy funding collection into the
// banking_relationships / active_ops layout. The job is one-shot and linear:
// it copies each document before deleting the original, never resumes, and
// never rolls back.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// Checkpointer snapshots the database before the job runs.
// storage.CheckpointManager satisfies it.
type Checkpointer interface {
	AutoCheckpoint(ctx context.Context, prefix string) (*storage.CheckpointInfo, error)
}

// ProgressFunc reports progress through a stage of the run.
type ProgressFunc func(stage string, done, total int)

// Deps contains the dependencies of a Runner.
type Deps struct {
	// Store is the document store being migrated.
	Store service.DocumentStore
	// Log receives the timestamped console log. Optional.
	Log *Log
	// Logger receives structured logs. Optional.
	Logger *slog.Logger
	// Checkpointer takes the optional pre-run snapshot. Optional.
	Checkpointer Checkpointer
	// Progress is called as clients are processed. Optional.
	Progress ProgressFunc
	// Clock stamps log entries. Optional.
	Clock func() time.Time
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	return nil
}
