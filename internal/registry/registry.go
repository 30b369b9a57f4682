package registry

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

// ClientsCollection is the root collection of client records.
const ClientsCollection = "clients"

// ClientPath returns the document path of a client.
func ClientPath(id string) string {
	return storage.Join(ClientsCollection, id)
}

// Registry reads and mutates client records.
type Registry struct {
	store  service.DocumentStore
	logger *slog.Logger
}

// New creates a registry backed by store.
func New(store service.DocumentStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: common.LoggerOrDefault(logger),
	}
}

// NewClient holds the fields captured when a client is onboarded.
type NewClient struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// ClientPatch lists the editable client fields. Nil fields are left unchanged.
type ClientPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

func (p ClientPatch) empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Phone == nil
}

// Onboard creates a client in the Onboarding state with no scores.
func (r *Registry) Onboard(ctx context.Context, nc NewClient) (string, error) {
	first := strings.TrimSpace(nc.FirstName)
	last := strings.TrimSpace(nc.LastName)
	if first == "" && last == "" {
		return "", fmt.Errorf("%w: client name is required", common.ErrInvalidInput)
	}

	id, err := r.store.Add(ctx, ClientsCollection, map[string]any{
		"firstName": first,
		"lastName":  last,
		"name":      strings.TrimSpace(first + " " + last),
		"email":     strings.TrimSpace(nc.Email),
		"phone":     strings.TrimSpace(nc.Phone),
		"status":    string(model.StatusOnboarding),
		"scores": map[string]any{
			"experian":   nil,
			"equifax":    nil,
			"transUnion": nil,
		},
		"isPinned":    false,
		"lastMessage": "",
		"createdAt":   storage.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to onboard client: %w", err)
	}

	r.logger.Info("onboarded client", "client_id", id)
	return id, nil
}

// Get returns one normalized client.
func (r *Registry) Get(ctx context.Context, id string) (*model.Client, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	doc, err := r.store.Get(ctx, ClientPath(id))
	if err != nil {
		return nil, err
	}
	c := NormalizeClient(doc.ID, doc.Data)
	return &c, nil
}

// List returns every client, normalized and sorted.
func (r *Registry) List(ctx context.Context) ([]model.Client, error) {
	docs, err := r.store.List(ctx, ClientsCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return normalizeAll(docs), nil
}

func normalizeAll(docs []service.Document) []model.Client {
	clients := make([]model.Client, 0, len(docs))
	for _, doc := range docs {
		clients = append(clients, NormalizeClient(doc.ID, doc.Data))
	}
	SortClients(clients)
	return clients
}

// Update applies an admin edit. Name changes also rewrite the combined name.
func (r *Registry) Update(ctx context.Context, id string, patch ClientPatch) error {
	if err := requireID(id); err != nil {
		return err
	}
	if patch.empty() {
		return nil
	}

	return r.store.RunTransaction(ctx, func(ctx context.Context, tx service.Tx) error {
		doc, err := tx.Get(ctx, ClientPath(id))
		if err != nil {
			return err
		}
		current := NormalizeClient(doc.ID, doc.Data)

		fields := map[string]any{}
		if patch.Email != nil {
			fields["email"] = strings.TrimSpace(*patch.Email)
		}
		if patch.Phone != nil {
			fields["phone"] = strings.TrimSpace(*patch.Phone)
		}
		if patch.FirstName != nil || patch.LastName != nil {
			first, last := current.FirstName, current.LastName
			if patch.FirstName != nil {
				first = strings.TrimSpace(*patch.FirstName)
			}
			if patch.LastName != nil {
				last = strings.TrimSpace(*patch.LastName)
			}
			fields["firstName"] = first
			fields["lastName"] = last
			fields["name"] = strings.TrimSpace(first + " " + last)
		}
		return tx.Update(ctx, ClientPath(id), fields)
	})
}

// SetPinned pins or unpins a client.
func (r *Registry) SetPinned(ctx context.Context, id string, pinned bool) error {
	if err := requireID(id); err != nil {
		return err
	}
	return r.store.Update(ctx, ClientPath(id), map[string]any{"isPinned": pinned})
}

// SetStatus moves a client to another account status.
func (r *Registry) SetStatus(ctx context.Context, id string, status model.ClientStatus) error {
	if err := requireID(id); err != nil {
		return err
	}
	parsed, ok := model.ParseClientStatus(string(status))
	if !ok {
		return fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, status)
	}
	return r.store.Update(ctx, ClientPath(id), map[string]any{"status": string(parsed)})
}

// IngestScores records a fresh set of bureau scores. A nil score clears that
// bureau.
func (r *Registry) IngestScores(ctx context.Context, id string, scores model.Scores) error {
	if err := requireID(id); err != nil {
		return err
	}
	return r.store.Update(ctx, ClientPath(id), map[string]any{
		"scores": map[string]any{
			"experian":   scoreValue(scores.Experian),
			"equifax":    scoreValue(scores.Equifax),
			"transUnion": scoreValue(scores.TransUnion),
		},
		"scoresUpdatedAt": storage.ServerTimestamp,
	})
}

func scoreValue(s *int) any {
	if s == nil {
		return nil
	}
	return *s
}

// Delete removes a client record. Sub-collections (tasks, documents, letters,
// funding) are not removed and remain as orphans.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return r.store.Delete(ctx, ClientPath(id))
}

// DeleteMany removes several client records in one atomic batch. Like Delete,
// it does not cascade.
func (r *Registry) DeleteMany(ctx context.Context, ids []string) error {
	batch := r.store.Batch()
	for _, id := range ids {
		if err := requireID(id); err != nil {
			return err
		}
		batch.Delete(ClientPath(id))
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete %d clients: %w", len(ids), err)
	}
	r.logger.Info("deleted clients", "count", len(ids))
	return nil
}

func requireID(id string) error {
	return common.ValidateID("client id", id)
}
