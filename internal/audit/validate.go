package audit

import (
	"fmt"
	"strings"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
)

func validateSelection(clientID string, accounts []model.MergedAccount) error {
	if err := common.ValidateID("client id", clientID); err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("%w: no accounts selected", common.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(accounts))
	for i, a := range accounts {
		switch {
		case strings.TrimSpace(a.RowID) == "":
			return fmt.Errorf("%w: account %d has no row id", common.ErrInvalidInput, i)
		case strings.Contains(a.RowID, "/"):
			return fmt.Errorf("%w: row id %q contains '/'", common.ErrInvalidInput, a.RowID)
		case seen[a.RowID]:
			return fmt.Errorf("%w: duplicate row id %q", common.ErrInvalidInput, a.RowID)
		}
		seen[a.RowID] = true
	}
	return nil
}

// validateResult checks that every returned finding maps to exactly one
// selected account.
func validateResult(result *model.AuditResult, accounts []model.MergedAccount) error {
	if result == nil {
		return fmt.Errorf("%w: empty audit result", common.ErrMalformedOutput)
	}

	selected := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		selected[a.RowID] = true
	}

	seen := make(map[string]bool, len(result.Accounts))
	for i, f := range result.Accounts {
		if !selected[f.RowID] {
			return fmt.Errorf("%w: account %d has unknown row id %q", common.ErrMalformedOutput, i, f.RowID)
		}
		if seen[f.RowID] {
			return fmt.Errorf("%w: row id %q returned twice", common.ErrMalformedOutput, f.RowID)
		}
		seen[f.RowID] = true
	}
	return nil
}
