// Package library manages the shared legal resource library that feeds the
// second audit pass and the console search.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// Collection is the top-level collection of law documents.
const Collection = "law_library_docs"

// DocPath returns the document path of a law document.
func DocPath(id string) string {
	return storage.Join(Collection, id)
}

// Index is an optional full-text index over the library.
type Index interface {
	Put(ctx context.Context, doc model.LawDoc) error
	Remove(ctx context.Context, id string) error
	// Search returns matching document ids, best match first.
	Search(ctx context.Context, text string, limit int) ([]string, error)
}

// Service reads and writes the library. Index failures are logged and never
// fail a write; searches fall back to scanning the store.
type Service struct {
	store  service.DocumentStore
	index  Index
	logger *slog.Logger
}

// NewService creates a library service. index may be nil.
func NewService(store service.DocumentStore, index Index, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		index:  index,
		logger: common.LoggerOrDefault(logger),
	}
}

// Add stores a new document and returns its id.
func (s *Service) Add(ctx context.Context, doc model.LawDoc) (string, error) {
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		return "", fmt.Errorf("%w: title is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return "", fmt.Errorf("%w: content is required", common.ErrInvalidInput)
	}

	fields, err := storage.ToFields(doc)
	if err != nil {
		return "", err
	}
	fields["createdAt"] = storage.ServerTimestamp

	id, err := s.store.Add(ctx, Collection, fields)
	if err != nil {
		return "", fmt.Errorf("failed to add law document: %w", err)
	}
	doc.ID = id

	if s.index != nil {
		if err := s.index.Put(ctx, doc); err != nil {
			s.logger.Warn("Failed to index law document", "id", id, "error", err)
		}
	}
	return id, nil
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, id string) (*model.LawDoc, error) {
	if err := common.ValidateID("document id", id); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, DocPath(id))
	if err != nil {
		return nil, err
	}
	out, err := decode(*doc)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns every document ordered by title.
func (s *Service) List(ctx context.Context) ([]model.LawDoc, error) {
	docs, err := s.store.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return s.decodeAll(docs), nil
}

// Delete removes a document from the store and the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := common.ValidateID("document id", id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, DocPath(id)); err != nil {
		return fmt.Errorf("failed to delete law document: %w", err)
	}
	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			s.logger.Warn("Failed to remove law document from index", "id", id, "error", err)
		}
	}
	return nil
}

// Listen streams the library, ordered by title, until the listener stops.
func (s *Service) Listen(ctx context.Context, fn func([]model.LawDoc)) (service.Listener, error) {
	return s.store.Listen(ctx, Collection, func(docs []service.Document) {
		fn(s.decodeAll(docs))
	})
}

// References returns at most limit documents in title order.
func (s *Service) References(ctx context.Context, limit int) ([]model.LawDoc, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Search finds documents matching text. The index is used when configured
// and healthy; otherwise titles, citations, tags and content are scanned
// case-insensitively.
func (s *Service) Search(ctx context.Context, text string, limit int) ([]model.LawDoc, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: search text is required", common.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}

	if s.index != nil {
		docs, err := s.searchIndex(ctx, text, limit)
		if err == nil {
			return docs, nil
		}
		s.logger.Warn("Library index search failed, scanning store", "error", err)
	}
	return s.scan(ctx, text, limit)
}

func (s *Service) searchIndex(ctx context.Context, text string, limit int) ([]model.LawDoc, error) {
	ids, err := s.index.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	out := make([]model.LawDoc, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if err != nil {
			// Index entries can outlive their documents.
			s.logger.Debug("Skipping stale index hit", "id", id, "error", err)
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (s *Service) scan(ctx context.Context, text string, limit int) ([]model.LawDoc, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(text)
	out := make([]model.LawDoc, 0)
	for _, doc := range docs {
		if matches(doc, needle) {
			out = append(out, doc)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func matches(doc model.LawDoc, needle string) bool {
	haystacks := append([]string{doc.Title, doc.Citation, doc.Category, doc.Content}, doc.Tags...)
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func (s *Service) decodeAll(docs []service.Document) []model.LawDoc {
	out := make([]model.LawDoc, 0, len(docs))
	for _, d := range docs {
		doc, err := decode(d)
		if err != nil {
			s.logger.Warn("Skipping unreadable law document", "path", d.Path, "error", err)
			continue
		}
		out = append(out, doc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func decode(d service.Document) (model.LawDoc, error) {
	var doc model.LawDoc
	if err := d.DataTo(&doc); err != nil {
		return model.LawDoc{}, err
	}
	doc.ID = d.ID
	return doc, nil
}
