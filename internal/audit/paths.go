package audit

import (
	"github.com/Veraticus/clientdesk/internal/registry"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// FindingsCollection is the per-client sub-collection of account findings.
const FindingsCollection = "account_audits"

// FindingsPath returns the findings collection of a client.
func FindingsPath(clientID string) string {
	return storage.Join(registry.ClientPath(clientID), FindingsCollection)
}

// FindingPath returns the finding document of one account, keyed by row id.
func FindingPath(clientID, rowID string) string {
	return storage.Join(FindingsPath(clientID), rowID)
}
