package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/funding"
	"github.com/Veraticus/clientdesk/internal/registry"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// Legacy layout.
const (
	LegacyCollection = "funding"
	LegacyHistory    = "history"
	// Source is the provenance marker stamped on every migrated document.
	Source = "legacy_funding"
)

// mirroredFields are copied from a legacy lender into the new mirror.
var mirroredFields = []string{
	"institution", "tier", "minScore", "pulls", "softPull",
	"isWinner", "strategy", "membershipNotes", "status",
}

// Outcome is the terminal state of a run.
type Outcome string

const (
	// OutcomeRejected means the run was refused before any write.
	OutcomeRejected Outcome = "rejected"
	// OutcomeNoEffect means the run finished without migrating anything.
	OutcomeNoEffect Outcome = "no_effect"
	// OutcomeMigrated means at least one lender was migrated.
	OutcomeMigrated Outcome = "migrated"
	// OutcomeFatal means the run aborted. Writes made before the failure remain.
	OutcomeFatal Outcome = "fatal"
)

// Options controls a run.
type Options struct {
	// Armed must be set for the run to write anything.
	Armed bool
	// Checkpoint takes a database snapshot before the first write.
	Checkpoint bool
}

// Summary reports what a run did.
type Summary struct {
	Outcome         Outcome
	Checkpoint      string
	ClientsScanned  int
	ClientsSkipped  int
	ClientsMigrated int
	LendersMigrated int
	SessionsMoved   int
}

// Runner executes the legacy funding migration.
type Runner struct {
	deps   Deps
	log    *Log
	logger *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(deps Deps) (*Runner, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	log := deps.Log
	if log == nil {
		log = NewLog(nil)
	}
	if deps.Clock != nil {
		log.clock = deps.Clock
	}
	if deps.Progress == nil {
		deps.Progress = func(string, int, int) {}
	}
	return &Runner{
		deps:   deps,
		log:    log,
		logger: common.LoggerOrDefault(deps.Logger),
	}, nil
}

// Log returns the run's console log.
func (r *Runner) Log() *Log {
	return r.log
}

// Run walks every client and relocates its legacy funding records. It is not
// resumable: a failure part way leaves earlier clients migrated and the
// failing client possibly half migrated. Rerunning is safe because writes
// merge and migrated lenders no longer exist under the legacy path.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	if !opts.Armed {
		r.log.appendf("Migration rejected: console is not armed")
		r.logger.Warn("legacy migration rejected", "reason", "not armed")
		return Summary{Outcome: OutcomeRejected}, common.ErrNotArmed
	}

	var summary Summary

	if opts.Checkpoint {
		if r.deps.Checkpointer == nil {
			return Summary{Outcome: OutcomeRejected}, fmt.Errorf("%w: checkpoint requested but no checkpointer configured", common.ErrMissingConfig)
		}
		info, err := r.deps.Checkpointer.AutoCheckpoint(ctx, "legacy-migrate")
		if err != nil {
			return r.fatal(summary, fmt.Errorf("pre-run checkpoint: %w", err))
		}
		summary.Checkpoint = info.ID
		r.log.appendf("Checkpoint %s created", info.ID)
	}

	r.log.appendf("Scanning clients")
	clients, err := r.deps.Store.List(ctx, registry.ClientsCollection)
	if err != nil {
		return r.fatal(summary, fmt.Errorf("list clients: %w", err))
	}
	r.log.appendf("Found %d clients", len(clients))

	for i, client := range clients {
		if err := ctx.Err(); err != nil {
			return r.fatal(summary, err)
		}
		r.deps.Progress("clients", i, len(clients))
		summary.ClientsScanned++

		moved, sessions, err := r.migrateClient(ctx, client)
		summary.LendersMigrated += moved
		summary.SessionsMoved += sessions
		if err != nil {
			return r.fatal(summary, err)
		}
		if moved == 0 {
			summary.ClientsSkipped++
		} else {
			summary.ClientsMigrated++
		}
	}
	r.deps.Progress("clients", len(clients), len(clients))

	if summary.LendersMigrated == 0 {
		summary.Outcome = OutcomeNoEffect
		r.log.appendf("Migration terminated without effect: 0 records migrated")
	} else {
		summary.Outcome = OutcomeMigrated
		r.log.appendf("Migration complete: %d lender records migrated across %d clients (%d sessions)",
			summary.LendersMigrated, summary.ClientsMigrated, summary.SessionsMoved)
	}

	r.logger.Info("legacy migration finished",
		"outcome", summary.Outcome,
		"clients", summary.ClientsScanned,
		"lenders", summary.LendersMigrated,
		"sessions", summary.SessionsMoved)
	return summary, nil
}

func (r *Runner) fatal(summary Summary, err error) (Summary, error) {
	summary.Outcome = OutcomeFatal
	r.log.appendf("FATAL: %v", err)
	r.logger.Error("legacy migration aborted", "error", err, "lenders_migrated", summary.LendersMigrated)
	return summary, err
}

func (r *Runner) migrateClient(ctx context.Context, client service.Document) (int, int, error) {
	label := registry.NormalizeClient(client.ID, client.Data).DisplayName()

	legacy, err := r.deps.Store.List(ctx, storage.Join(client.Path, LegacyCollection))
	if err != nil {
		return 0, 0, fmt.Errorf("client %s: list legacy funding: %w", client.ID, err)
	}
	if len(legacy) == 0 {
		r.log.appendf("Skipped %s: no legacy collection", label)
		return 0, 0, nil
	}

	var lenders, sessions int
	for _, lender := range legacy {
		n, err := r.migrateLender(ctx, client.ID, lender, label)
		sessions += n
		if err != nil {
			return lenders, sessions, fmt.Errorf("client %s lender %s: %w", client.ID, lender.ID, err)
		}
		lenders++
	}
	return lenders, sessions, nil
}

// migrateLender copies one legacy lender and its history, then deletes the
// originals. Each copy is committed before its original is removed.
func (r *Runner) migrateLender(ctx context.Context, clientID string, lender service.Document, label string) (int, error) {
	history, err := r.deps.Store.List(ctx, storage.Join(lender.Path, LegacyHistory))
	if err != nil {
		return 0, fmt.Errorf("list history: %w", err)
	}

	master := provenance(lender.Data)
	mirror := provenance(pick(lender.Data, mirroredFields))

	err = r.deps.Store.Batch().
		Merge(funding.MasterPath(clientID, lender.ID), master).
		Merge(funding.MirrorPath(clientID, lender.ID), mirror).
		Commit(ctx)
	if err != nil {
		return 0, fmt.Errorf("write master: %w", err)
	}
	r.log.appendf("Relocated lender %s for %s", lenderLabel(lender), label)

	moved := 0
	for _, session := range history {
		fields := provenance(session.Data)
		dest := storage.Join(funding.SessionsPath(clientID, lender.ID), session.ID)
		if err := r.deps.Store.Merge(ctx, dest, fields); err != nil {
			return moved, fmt.Errorf("copy session %s: %w", session.ID, err)
		}
		if err := r.deps.Store.Delete(ctx, session.Path); err != nil {
			return moved, fmt.Errorf("delete legacy session %s: %w", session.ID, err)
		}
		moved++
	}
	if moved > 0 {
		r.log.appendf("Nested %d sessions under %s", moved, funding.SessionsPath(clientID, lender.ID))
	}

	if err := r.deps.Store.Delete(ctx, lender.Path); err != nil {
		return moved, fmt.Errorf("delete legacy lender: %w", err)
	}
	return moved, nil
}

func provenance(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	out["migratedAt"] = storage.ServerTimestamp
	out["migrationSource"] = Source
	return out
}

func pick(data map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := data[k]; ok {
			out[k] = v
		}
	}
	return out
}

func lenderLabel(doc service.Document) string {
	if name, ok := doc.Data["institution"].(string); ok && name != "" {
		return fmt.Sprintf("%s (%s)", name, doc.ID)
	}
	return doc.ID
}
