// Package audit runs the two-pass forensic audit of a client's merged credit
// report accounts and persists the findings.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/service"
)

// DefaultMaxReferences bounds how many library documents feed pass 2.
const DefaultMaxReferences = 5

// Request is the payload of one inference pass.
type Request struct {
	ClientID             string
	SupplementaryContext string
	Accounts             []model.MergedAccount
}

// Inference performs one forensic audit pass.
type Inference interface {
	ForensicAudit(ctx context.Context, req Request) (*model.AuditResult, error)
	// Engine identifies the model behind the audit; it is stored with findings.
	Engine() string
}

// ReferenceSource supplies legal reference documents for the second pass.
type ReferenceSource interface {
	References(ctx context.Context, limit int) ([]model.LawDoc, error)
}

// Deps contains all dependencies required by the orchestrator.
type Deps struct {
	// Store persists account findings.
	Store service.DocumentStore
	// Inference runs the audit passes.
	Inference Inference
	// References supplies supplementary context when pass 1 asks for research.
	References ReferenceSource
	Logger     *slog.Logger
	// MaxReferences defaults to DefaultMaxReferences.
	MaxReferences int
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	if d.Inference == nil {
		return fmt.Errorf("inference dependency is required")
	}
	if d.References == nil {
		return fmt.Errorf("reference source dependency is required")
	}
	if d.MaxReferences < 0 {
		return fmt.Errorf("max references must not be negative")
	}
	return nil
}
