package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

const errNotReturned = "account missing from audit output"

// Orchestrator runs forensic audits. It never retries; failures are returned
// to the caller as-is.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator with the provided dependencies.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if deps.MaxReferences == 0 {
		deps.MaxReferences = DefaultMaxReferences
	}
	return &Orchestrator{
		deps:   deps,
		logger: common.LoggerOrDefault(deps.Logger),
	}, nil
}

// Engine reports the inference engine identifier stamped on findings.
func (o *Orchestrator) Engine() string {
	return o.deps.Inference.Engine()
}

// Run audits the selected accounts of a client.
//
// Pass 1 sees the accounts with an empty supplementary context. If any
// returned account sets research_needed, library references are fetched and
// pass 2 runs once over the same accounts; its result replaces pass 1. The
// final findings are written in one atomic batch. On any inference failure
// or malformed output nothing is written except a failed status marker.
func (o *Orchestrator) Run(ctx context.Context, clientID string, accounts []model.MergedAccount) (*model.AuditResult, error) {
	if err := validateSelection(clientID, accounts); err != nil {
		return nil, err
	}

	log := o.logger.With("client_id", clientID, "accounts", len(accounts))

	if err := o.markStatus(ctx, clientID, accounts, model.AuditAnalyzing, ""); err != nil {
		return nil, fmt.Errorf("failed to mark accounts analyzing: %w", err)
	}

	result, err := o.runPasses(ctx, log, clientID, accounts)
	if err != nil {
		o.fail(ctx, log, clientID, accounts, err)
		return nil, err
	}

	if err := o.persist(ctx, clientID, accounts, result); err != nil {
		o.fail(ctx, log, clientID, accounts, err)
		return nil, fmt.Errorf("failed to persist findings: %w", err)
	}

	log.Info("Forensic audit complete",
		"findings", len(result.Accounts),
		"violations", result.Summary.ViolationCount,
		"engine", o.Engine())
	return result, nil
}

func (o *Orchestrator) runPasses(ctx context.Context, log *slog.Logger, clientID string, accounts []model.MergedAccount) (*model.AuditResult, error) {
	req := Request{ClientID: clientID, Accounts: accounts}

	result, err := o.deps.Inference.ForensicAudit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := validateResult(result, accounts); err != nil {
		return nil, err
	}

	if !result.NeedsResearch() {
		log.Debug("Pass 1 final, no research requested")
		return result, nil
	}

	supplementary, err := o.supplementaryContext(ctx)
	if err != nil {
		return nil, err
	}
	if supplementary == "" {
		log.Warn("Research requested but the library is empty, keeping pass 1")
		return result, nil
	}

	log.Info("Research requested, running pass 2")
	req.SupplementaryContext = supplementary
	result, err = o.deps.Inference.ForensicAudit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := validateResult(result, accounts); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) supplementaryContext(ctx context.Context) (string, error) {
	docs, err := o.deps.References.References(ctx, o.deps.MaxReferences)
	if err != nil {
		return "", fmt.Errorf("failed to load reference documents: %w", err)
	}
	if len(docs) > o.deps.MaxReferences {
		docs = docs[:o.deps.MaxReferences]
	}

	sections := make([]string, 0, len(docs))
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		heading := "### " + doc.Title
		if doc.Citation != "" {
			heading += " (" + doc.Citation + ")"
		}
		sections = append(sections, heading+"\n"+content)
	}
	return strings.Join(sections, "\n\n"), nil
}

// persist writes the final findings in one batch. Selected accounts the
// output left out are marked failed in the same batch.
func (o *Orchestrator) persist(ctx context.Context, clientID string, accounts []model.MergedAccount, result *model.AuditResult) error {
	engine := o.Engine()
	batch := o.deps.Store.Batch()

	returned := make(map[string]bool, len(result.Accounts))
	for _, f := range result.Accounts {
		returned[f.RowID] = true

		violations := f.Violations
		if violations == nil {
			violations = []model.Violation{}
		}
		batch.Merge(FindingPath(clientID, f.RowID), map[string]any{
			"rowId": f.RowID,
			"analysis": map[string]any{
				"violations":      violations,
				"research_needed": f.ResearchNeeded,
				"account_name":    f.AccountName,
				"summary":         f.Summary,
			},
			"status":      string(model.AuditAnalyzed),
			"auditedAt":   storage.ServerTimestamp,
			"engine":      engine,
			"analysisRan": true,
			"lastError":   "",
		})
	}

	for _, a := range accounts {
		if returned[a.RowID] {
			continue
		}
		batch.Merge(FindingPath(clientID, a.RowID), statusFields(a.RowID, model.AuditFailed, errNotReturned))
	}

	return batch.Commit(ctx)
}

func (o *Orchestrator) markStatus(ctx context.Context, clientID string, accounts []model.MergedAccount, status model.AuditStatus, lastError string) error {
	batch := o.deps.Store.Batch()
	for _, a := range accounts {
		batch.Merge(FindingPath(clientID, a.RowID), statusFields(a.RowID, status, lastError))
	}
	return batch.Commit(ctx)
}

// fail records the failure on every selected account. It runs even when ctx
// was canceled so the accounts do not stay "analyzing".
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, clientID string, accounts []model.MergedAccount, cause error) {
	log.Error("Forensic audit failed", "error", cause)
	if err := o.markStatus(context.WithoutCancel(ctx), clientID, accounts, model.AuditFailed, cause.Error()); err != nil {
		log.Error("Failed to mark accounts failed", "error", err)
	}
}

func statusFields(rowID string, status model.AuditStatus, lastError string) map[string]any {
	return map[string]any{
		"rowId":     rowID,
		"status":    string(status),
		"lastError": lastError,
	}
}

// Findings lists the persisted findings of a client ordered by row id.
func (o *Orchestrator) Findings(ctx context.Context, clientID string) ([]model.StoredFinding, error) {
	return ListFindings(ctx, o.deps.Store, clientID)
}

// ListFindings reads a client's findings straight from the store; it needs no inference provider.
func ListFindings(ctx context.Context, store service.DocumentStore, clientID string) ([]model.StoredFinding, error) {
	if err := common.ValidateID("client id", clientID); err != nil {
		return nil, err
	}

	docs, err := store.List(ctx, FindingsPath(clientID))
	if err != nil {
		return nil, err
	}

	findings := make([]model.StoredFinding, 0, len(docs))
	for i := range docs {
		var f model.StoredFinding
		if err := docs[i].DataTo(&f); err != nil {
			return nil, fmt.Errorf("failed to decode finding %s: %w", docs[i].Path, err)
		}
		if f.RowID == "" {
			f.RowID = docs[i].ID
		}
		findings = append(findings, f)
	}
	return findings, nil
}
