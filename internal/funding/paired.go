package funding

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// PairedWrite describes one change to a lender relationship that must land
// on the master and the mirror together. It is applied as a single
// transaction, so readers never observe one side without the other.
type PairedWrite struct {
	// Master fields are merged into the master record.
	Master map[string]any
	// Mirror fields are merged into the mirror.
	Mirror map[string]any
	// Seed initializes the mirror when it does not exist yet. Mirror fields
	// are applied on top.
	Seed map[string]any
	// SeedErr, when set, explains why Seed cannot initialize a mirror. It
	// fails the write only if the mirror turns out to be missing.
	SeedErr error
	// Sessions are written under the mirror's funding_sessions, keyed by id.
	Sessions map[string]map[string]any
	ClientID string
	LenderID string
	// RequireMaster fails the write with common.ErrNotFound when the master
	// record is absent.
	RequireMaster bool
	// SeedFromMaster seeds a missing mirror from the master record as it
	// stands after the master fields are applied.
	SeedFromMaster bool
	// Delete removes the master, the mirror, and the mirror's sessions.
	Delete bool
}

func (pw PairedWrite) validate() error {
	if err := validateIDs(pw.ClientID, pw.LenderID); err != nil {
		return err
	}
	if pw.Delete && (pw.Master != nil || pw.Mirror != nil || pw.Sessions != nil) {
		return fmt.Errorf("%w: a paired delete cannot carry writes", common.ErrInvalidInput)
	}
	return nil
}

// apply executes pw atomically.
func (s *Synchronizer) apply(ctx context.Context, pw PairedWrite) error {
	if err := pw.validate(); err != nil {
		return err
	}

	master := MasterPath(pw.ClientID, pw.LenderID)
	mirror := MirrorPath(pw.ClientID, pw.LenderID)

	return s.store.RunTransaction(ctx, func(ctx context.Context, tx service.Tx) error {
		if pw.Delete {
			return deletePair(ctx, tx, pw)
		}

		switch {
		case pw.RequireMaster && pw.Master != nil:
			if err := tx.Update(ctx, master, pw.Master); err != nil {
				return err
			}
		case pw.RequireMaster:
			if _, err := tx.Get(ctx, master); err != nil {
				return err
			}
		case pw.Master != nil:
			if err := tx.Merge(ctx, master, pw.Master); err != nil {
				return err
			}
		}

		mirrorFields, err := s.mirrorFields(ctx, tx, pw)
		if err != nil {
			return err
		}
		if mirrorFields != nil {
			if err := tx.Merge(ctx, mirror, mirrorFields); err != nil {
				return err
			}
		}

		for id, fields := range pw.Sessions {
			if err := tx.Set(ctx, storage.Join(SessionsPath(pw.ClientID, pw.LenderID), id), fields); err != nil {
				return err
			}
		}
		return nil
	})
}

// mirrorFields returns what to merge into the mirror, including the seed
// when the mirror is missing.
func (s *Synchronizer) mirrorFields(ctx context.Context, tx service.Tx, pw PairedWrite) (map[string]any, error) {
	if pw.Seed == nil && !pw.SeedFromMaster {
		return pw.Mirror, nil
	}

	_, err := tx.Get(ctx, MirrorPath(pw.ClientID, pw.LenderID))
	switch {
	case err == nil:
		return pw.Mirror, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	if pw.SeedErr != nil {
		return nil, pw.SeedErr
	}

	seed := map[string]any{}
	if pw.SeedFromMaster {
		doc, err := tx.Get(ctx, MasterPath(pw.ClientID, pw.LenderID))
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		if doc != nil {
			maps.Copy(seed, doc.Data)
		}
	}
	maps.Copy(seed, pw.Seed)
	maps.Copy(seed, pw.Mirror)

	s.logger.Debug("seeding missing mirror", "client_id", pw.ClientID, "lender_id", pw.LenderID)
	return seed, nil
}

// validateIDs rejects ids that would not address a single document.
func validateIDs(clientID string, lenderIDs ...string) error {
	if err := common.ValidateID("client id", clientID); err != nil {
		return err
	}
	for _, id := range lenderIDs {
		if err := common.ValidateID("lender id", id); err != nil {
			return err
		}
	}
	return nil
}

func deletePair(ctx context.Context, tx service.Tx, pw PairedWrite) error {
	sessions, err := tx.List(ctx, SessionsPath(pw.ClientID, pw.LenderID))
	if err != nil {
		return err
	}
	for _, doc := range sessions {
		if err := tx.Delete(ctx, doc.Path); err != nil {
			return err
		}
	}
	if err := tx.Delete(ctx, MasterPath(pw.ClientID, pw.LenderID)); err != nil {
		return err
	}
	return tx.Delete(ctx, MirrorPath(pw.ClientID, pw.LenderID))
}
