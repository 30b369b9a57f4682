package funding

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// Synchronizer performs every lender-relationship mutation as a paired write.
// Errors are returned as-is; no call ever reports partial success.
type Synchronizer struct {
	store  service.DocumentStore
	logger *slog.Logger
}

// NewSynchronizer creates a synchronizer backed by store.
func NewSynchronizer(store service.DocumentStore, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		store:  store,
		logger: common.LoggerOrDefault(logger),
	}
}

// LenderPatch lists the editable relationship fields. Nil fields are left
// unchanged.
type LenderPatch struct {
	Institution     *string
	Tier            *model.Tier
	MinScore        *int
	Pulls           *model.BureauPulls
	SoftPull        *bool
	IsWinner        *bool
	Strategy        *string
	MembershipNotes *string
	Status          *string
}

func (p LenderPatch) fields() (map[string]any, error) {
	f := map[string]any{}
	if p.Institution != nil {
		if strings.TrimSpace(*p.Institution) == "" {
			return nil, fmt.Errorf("%w: institution cannot be blank", common.ErrInvalidInput)
		}
		f["institution"] = strings.TrimSpace(*p.Institution)
	}
	if p.Tier != nil {
		if !p.Tier.Valid() {
			return nil, fmt.Errorf("%w: unknown tier %q", common.ErrInvalidInput, *p.Tier)
		}
		f["tier"] = string(*p.Tier)
	}
	if p.MinScore != nil {
		if *p.MinScore < 0 || *p.MinScore > 850 {
			return nil, fmt.Errorf("%w: minimum score %d out of range", common.ErrInvalidInput, *p.MinScore)
		}
		f["minScore"] = *p.MinScore
	}
	if p.Pulls != nil {
		f["pulls"] = map[string]any{
			"experian":   p.Pulls.Experian,
			"equifax":    p.Pulls.Equifax,
			"transUnion": p.Pulls.TransUnion,
		}
	}
	if p.SoftPull != nil {
		f["softPull"] = *p.SoftPull
	}
	if p.IsWinner != nil {
		f["isWinner"] = *p.IsWinner
	}
	if p.Strategy != nil {
		f["strategy"] = *p.Strategy
	}
	if p.MembershipNotes != nil {
		f["membershipNotes"] = *p.MembershipNotes
	}
	if p.Status != nil {
		f["status"] = *p.Status
	}
	return f, nil
}

// Create writes a new relationship to the master and the mirror.
func (s *Synchronizer) Create(ctx context.Context, clientID string, lender model.LenderRelationship) (string, error) {
	if err := lender.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	lender.UpdatedAt = nil
	lender.LastSession = nil

	fields, err := storage.ToFields(lender)
	if err != nil {
		return "", err
	}
	fields["createdAt"] = storage.ServerTimestamp
	fields["updatedAt"] = storage.ServerTimestamp

	id := lender.ID
	if id == "" {
		id = storage.NewID()
	}

	err = s.apply(ctx, PairedWrite{
		ClientID: clientID,
		LenderID: id,
		Master:   fields,
		Mirror:   fields,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create lender relationship: %w", err)
	}

	s.logger.Info("created lender relationship", "client_id", clientID, "lender_id", id, "institution", lender.Institution)
	return id, nil
}

// Update applies patch to the master and mirrors every changed field.
func (s *Synchronizer) Update(ctx context.Context, clientID, lenderID string, patch LenderPatch) error {
	fields, err := patch.fields()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updatedAt"] = storage.ServerTimestamp

	return s.apply(ctx, PairedWrite{
		ClientID:       clientID,
		LenderID:       lenderID,
		Master:         fields,
		Mirror:         fields,
		RequireMaster:  true,
		SeedFromMaster: true,
	})
}

// SyncStatus records a status change on the master and the mirror together.
// A missing mirror is seeded from fallback so it is never half-initialized.
func (s *Synchronizer) SyncStatus(ctx context.Context, clientID, lenderID, status string, fallback model.LenderRelationship) error {
	if strings.TrimSpace(status) == "" {
		return fmt.Errorf("%w: status is required", common.ErrInvalidInput)
	}

	var seedErr error
	if err := fallback.Validate(); err != nil {
		seedErr = fmt.Errorf("%w: mirror is missing and the fallback cannot seed it: %v", common.ErrInvalidInput, err)
	}

	fallback.UpdatedAt = nil
	fallback.LastSession = nil
	seed, err := storage.ToFields(fallback)
	if err != nil {
		return err
	}

	err = s.apply(ctx, PairedWrite{
		ClientID: clientID,
		LenderID: lenderID,
		Master: map[string]any{
			"status":    status,
			"updatedAt": storage.ServerTimestamp,
		},
		Mirror: map[string]any{
			"status":      status,
			"lastSession": storage.ServerTimestamp,
		},
		Seed:    seed,
		SeedErr: seedErr,
	})
	if err != nil {
		return fmt.Errorf("failed to sync lender status: %w", err)
	}
	return nil
}

// CascadingDelete removes the master, the mirror, and the mirror's sessions
// in one transaction.
func (s *Synchronizer) CascadingDelete(ctx context.Context, clientID, lenderID string) error {
	if err := s.apply(ctx, PairedWrite{ClientID: clientID, LenderID: lenderID, Delete: true}); err != nil {
		return fmt.Errorf("failed to delete lender relationship: %w", err)
	}
	s.logger.Info("deleted lender relationship", "client_id", clientID, "lender_id", lenderID)
	return nil
}

// RecordSession stores an application attempt and stamps the mirror's
// lastSession in the same transaction.
func (s *Synchronizer) RecordSession(ctx context.Context, clientID, lenderID string, session model.FundingSession) (string, error) {
	if strings.TrimSpace(session.Outcome) == "" {
		return "", fmt.Errorf("%w: session outcome is required", common.ErrInvalidInput)
	}

	fields, err := storage.ToFields(session)
	if err != nil {
		return "", err
	}
	fields["recordedAt"] = storage.ServerTimestamp

	var lastSession any = storage.ServerTimestamp
	if session.Date != nil {
		lastSession = session.Date.UTC()
	} else {
		fields["date"] = storage.ServerTimestamp
	}

	id := session.ID
	if id == "" {
		id = storage.NewID()
	}
	if err := common.ValidateID("session id", id); err != nil {
		return "", err
	}

	err = s.apply(ctx, PairedWrite{
		ClientID:       clientID,
		LenderID:       lenderID,
		Mirror:         map[string]any{"lastSession": lastSession},
		Sessions:       map[string]map[string]any{id: fields},
		RequireMaster:  true,
		SeedFromMaster: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to record funding session: %w", err)
	}
	return id, nil
}

// List returns a client's master relationships ordered by institution.
func (s *Synchronizer) List(ctx context.Context, clientID string) ([]model.LenderRelationship, error) {
	if err := validateIDs(clientID); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, MastersPath(clientID))
	if err != nil {
		return nil, err
	}
	return s.decodeLenders(docs), nil
}

// Listen streams a client's master relationships until the listener stops.
func (s *Synchronizer) Listen(ctx context.Context, clientID string, fn func([]model.LenderRelationship)) (service.Listener, error) {
	if err := validateIDs(clientID); err != nil {
		return nil, err
	}
	return s.store.Listen(ctx, MastersPath(clientID), func(docs []service.Document) {
		fn(s.decodeLenders(docs))
	})
}

// Master returns the master record of one relationship.
func (s *Synchronizer) Master(ctx context.Context, clientID, lenderID string) (*model.LenderRelationship, error) {
	if err := validateIDs(clientID, lenderID); err != nil {
		return nil, err
	}
	return s.getLender(ctx, MasterPath(clientID, lenderID))
}

// Mirror returns the operational mirror of one relationship.
func (s *Synchronizer) Mirror(ctx context.Context, clientID, lenderID string) (*model.LenderRelationship, error) {
	if err := validateIDs(clientID, lenderID); err != nil {
		return nil, err
	}
	return s.getLender(ctx, MirrorPath(clientID, lenderID))
}

func (s *Synchronizer) getLender(ctx context.Context, path string) (*model.LenderRelationship, error) {
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var l model.LenderRelationship
	if err := doc.DataTo(&l); err != nil {
		return nil, err
	}
	l.ID = doc.ID
	return &l, nil
}

// Sessions returns the sessions recorded under a mirror, oldest first.
func (s *Synchronizer) Sessions(ctx context.Context, clientID, lenderID string) ([]model.FundingSession, error) {
	if err := validateIDs(clientID, lenderID); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, SessionsPath(clientID, lenderID))
	if err != nil {
		return nil, err
	}
	out := make([]model.FundingSession, 0, len(docs))
	for _, doc := range docs {
		var fs model.FundingSession
		if err := doc.DataTo(&fs); err != nil {
			s.logger.Warn("skipping malformed funding session", "path", doc.Path, "error", err)
			continue
		}
		fs.ID = doc.ID
		out = append(out, fs)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return sessionTime(out[i]).Before(sessionTime(out[j]))
	})
	return out, nil
}

func sessionTime(fs model.FundingSession) time.Time {
	if fs.Date == nil {
		return time.Time{}
	}
	return *fs.Date
}

func (s *Synchronizer) decodeLenders(docs []service.Document) []model.LenderRelationship {
	out := make([]model.LenderRelationship, 0, len(docs))
	for _, doc := range docs {
		var l model.LenderRelationship
		if err := doc.DataTo(&l); err != nil {
			s.logger.Warn("skipping malformed lender relationship", "path", doc.Path, "error", err)
			continue
		}
		l.ID = doc.ID
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Institution) < strings.ToLower(out[j].Institution)
	})
	return out
}
