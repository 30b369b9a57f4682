package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
)

const defaultIndexUID = "law_library"

// indexRecord is the searchable projection of a LawDoc.
type indexRecord struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Citation  string   `json:"citation"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"createdAt"`
}

// MeiliIndex implements Index on Meilisearch.
type MeiliIndex struct {
	client meili.ServiceManager
	logger *slog.Logger
	uid    string
}

var _ Index = (*MeiliIndex)(nil)

// NewMeiliIndex connects to Meilisearch and configures the library index.
// An unreachable server is not an error; the index is created lazily by
// the first write.
func NewMeiliIndex(url, apiKey, uid string, logger *slog.Logger) *MeiliIndex {
	if uid == "" {
		uid = defaultIndexUID
	}
	m := &MeiliIndex{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: common.LoggerOrDefault(logger),
		uid:    uid,
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("Meilisearch unavailable", "url", url, "error", err)
		return m
	}
	m.configure()
	return m
}

func (m *MeiliIndex) configure() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        m.uid,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("Create index failed (may already exist)", "index", m.uid, "error", err)
	}

	searchable := []string{"title", "citation", "tags", "content"}
	if _, err := m.client.Index(m.uid).UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("Failed to update searchable attributes", "index", m.uid, "error", err)
	}
}

// Healthy reports whether Meilisearch answers its health check.
func (m *MeiliIndex) Healthy() bool {
	_, err := m.client.Health()
	return err == nil
}

// Put adds or replaces a document in the index.
func (m *MeiliIndex) Put(_ context.Context, doc model.LawDoc) error {
	rec := indexRecord{
		ID:       doc.ID,
		Title:    doc.Title,
		Category: doc.Category,
		Citation: doc.Citation,
		Content:  doc.Content,
		Tags:     doc.Tags,
	}
	if doc.CreatedAt != nil {
		rec.CreatedAt = doc.CreatedAt.Unix()
	} else {
		rec.CreatedAt = time.Now().Unix()
	}

	if _, err := m.client.Index(m.uid).AddDocuments([]indexRecord{rec}, nil); err != nil {
		return fmt.Errorf("meilisearch add document: %w", err)
	}
	return nil
}

// Remove deletes a document from the index.
func (m *MeiliIndex) Remove(_ context.Context, id string) error {
	if _, err := m.client.Index(m.uid).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("meilisearch delete document: %w", err)
	}
	return nil
}

// Search returns the ids of matching documents.
func (m *MeiliIndex) Search(_ context.Context, text string, limit int) ([]string, error) {
	resp, err := m.client.Index(m.uid).Search(text, &meili.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, ok := hit["id"]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err == nil && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
