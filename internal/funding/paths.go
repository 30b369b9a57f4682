// Package funding keeps a client's lender relationships consistent between the
// master records in banking_relationships and the operational mirror in
// active_ops.
package funding

import "github.com/Veraticus/clientdesk/internal/storage"

// Collection names under a client document.
const (
	MasterCollection   = "banking_relationships"
	MirrorCollection   = "active_ops"
	SessionsCollection = "funding_sessions"
	SourcesCollection  = "funding_sources"
)

// MastersPath is the collection of master records for a client.
func MastersPath(clientID string) string {
	return storage.Join("clients", clientID, MasterCollection)
}

// MasterPath is the master record of one lender relationship.
func MasterPath(clientID, lenderID string) string {
	return storage.Join(MastersPath(clientID), lenderID)
}

// MirrorPath is the operational mirror of one lender relationship.
func MirrorPath(clientID, lenderID string) string {
	return storage.Join("clients", clientID, MirrorCollection, lenderID)
}

// SessionsPath is the collection of funding sessions under a mirror.
func SessionsPath(clientID, lenderID string) string {
	return storage.Join(MirrorPath(clientID, lenderID), SessionsCollection)
}

func profilePath(clientID string) string {
	return storage.Join("clients", clientID, "funding_profile", "latest")
}

func readinessPath(clientID string) string {
	return storage.Join("clients", clientID, "funding_config", "readiness")
}
