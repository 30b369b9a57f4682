package funding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// Sources lists the shared lender catalog ordered by tier then institution.
func (s *Synchronizer) Sources(ctx context.Context) ([]model.FundingSource, error) {
	docs, err := s.store.List(ctx, SourcesCollection)
	if err != nil {
		return nil, err
	}
	out := make([]model.FundingSource, 0, len(docs))
	for _, doc := range docs {
		var src model.FundingSource
		if err := doc.DataTo(&src); err != nil {
			s.logger.Warn("skipping malformed funding source", "path", doc.Path, "error", err)
			continue
		}
		src.ID = doc.ID
		out = append(out, src)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return strings.ToLower(out[i].Institution) < strings.ToLower(out[j].Institution)
	})
	return out, nil
}

// AddSource adds a lender to the shared catalog.
func (s *Synchronizer) AddSource(ctx context.Context, src model.FundingSource) (string, error) {
	if strings.TrimSpace(src.Institution) == "" {
		return "", fmt.Errorf("%w: institution is required", common.ErrInvalidInput)
	}
	if src.Tier != "" && !src.Tier.Valid() {
		return "", fmt.Errorf("%w: unknown tier %q", common.ErrInvalidInput, src.Tier)
	}
	fields, err := storage.ToFields(src)
	if err != nil {
		return "", err
	}
	return s.store.Add(ctx, SourcesCollection, fields)
}

// Profile returns a client's latest funding profile. A client without one
// gets an empty profile.
func (s *Synchronizer) Profile(ctx context.Context, clientID string) (*model.FundingProfile, error) {
	if err := validateIDs(clientID); err != nil {
		return nil, err
	}
	var p model.FundingProfile
	if err := s.readOptional(ctx, profilePath(clientID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile replaces a client's latest funding profile.
func (s *Synchronizer) SaveProfile(ctx context.Context, clientID string, p model.FundingProfile) error {
	if err := validateIDs(clientID); err != nil {
		return err
	}
	p.UpdatedAt = nil
	fields, err := storage.ToFields(p)
	if err != nil {
		return err
	}
	fields["updatedAt"] = storage.ServerTimestamp
	return s.store.Set(ctx, profilePath(clientID), fields)
}

// Readiness returns a client's funding-readiness checklist.
func (s *Synchronizer) Readiness(ctx context.Context, clientID string) (*model.Readiness, error) {
	if err := validateIDs(clientID); err != nil {
		return nil, err
	}
	var r model.Readiness
	if err := s.readOptional(ctx, readinessPath(clientID), &r); err != nil {
		return nil, err
	}
	if r.Checklist == nil {
		r.Checklist = map[string]bool{}
	}
	return &r, nil
}

// SaveReadiness merges checklist items into a client's readiness record.
func (s *Synchronizer) SaveReadiness(ctx context.Context, clientID string, r model.Readiness) error {
	if err := validateIDs(clientID); err != nil {
		return err
	}
	checklist := make(map[string]any, len(r.Checklist))
	for k, v := range r.Checklist {
		checklist[k] = v
	}
	fields := map[string]any{
		"checklist": checklist,
		"updatedAt": storage.ServerTimestamp,
	}
	if r.Notes != "" {
		fields["notes"] = r.Notes
	}
	return s.store.Merge(ctx, readinessPath(clientID), fields)
}

func (s *Synchronizer) readOptional(ctx context.Context, path string, v any) error {
	doc, err := s.store.Get(ctx, path)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return doc.DataTo(v)
}
