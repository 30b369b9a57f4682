package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// PostMessage appends a message to a client's thread and refreshes the
// lastMessage preview in the same batch.
func (r *Registry) PostMessage(ctx context.Context, clientID, text, sender string) (string, error) {
	if err := requireID(clientID); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message text is required", common.ErrInvalidInput)
	}
	if sender == "" {
		sender = "admin"
	}

	id := storage.NewID()
	err := r.store.Batch().
		Set(storage.Join(ClientPath(clientID), "messages", id), map[string]any{
			"text":   text,
			"sender": sender,
			"sentAt": storage.ServerTimestamp,
		}).
		Update(ClientPath(clientID), map[string]any{
			"lastMessage": map[string]any{
				"text":   text,
				"sender": sender,
				"sentAt": storage.ServerTimestamp,
			},
		}).
		Commit(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	return id, nil
}

// Messages returns a client's thread, oldest first.
func (r *Registry) Messages(ctx context.Context, clientID string) ([]model.Message, error) {
	if err := requireID(clientID); err != nil {
		return nil, err
	}
	docs, err := r.store.List(ctx, storage.Join(ClientPath(clientID), "messages"))
	if err != nil {
		return nil, err
	}

	msgs := make([]model.Message, 0, len(docs))
	for _, doc := range docs {
		var m model.Message
		if err := doc.DataTo(&m); err != nil {
			r.logger.Warn("skipping malformed message", "path", doc.Path, "error", err)
			continue
		}
		m.ID = doc.ID
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].SentAt, msgs[j].SentAt
		if a == nil || b == nil {
			return b != nil
		}
		return a.Before(*b)
	})
	return msgs, nil
}
