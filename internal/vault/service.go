// Package vault stores client documents: metadata in the document store and
// file bytes in a blob store.
package vault

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/registry"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

// Collection is the per-client sub-collection of document metadata.
const Collection = "documents"

// DefaultLinkExpiry is used by Link when no expiry is given.
const DefaultLinkExpiry = 15 * time.Minute

// DocumentsPath returns the documents collection of a client.
func DocumentsPath(clientID string) string {
	return storage.Join(registry.ClientPath(clientID), Collection)
}

// File is one upload.
type File struct {
	Body        io.Reader
	Name        string
	ContentType string
	Category    string
	Size        int64
}

// Service uploads, lists and removes vault documents.
type Service struct {
	store  service.DocumentStore
	blobs  BlobStore
	logger *slog.Logger
}

// NewService creates a vault service.
func NewService(store service.DocumentStore, blobs BlobStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: common.LoggerOrDefault(logger),
	}
}

// Upload stores the bytes, then the metadata. If the metadata write fails
// the blob is removed again.
func (s *Service) Upload(ctx context.Context, clientID string, f File) (*model.VaultDocument, error) {
	if err := common.ValidateID("client id", clientID); err != nil {
		return nil, err
	}
	name := path.Base(strings.TrimSpace(f.Name))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrInvalidInput)
	}
	if f.Body == nil {
		return nil, fmt.Errorf("%w: file body is required", common.ErrInvalidInput)
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := storage.NewID()
	key := path.Join("clients", clientID, id, name)

	if err := s.blobs.Put(ctx, key, f.Body, f.Size, contentType); err != nil {
		return nil, err
	}

	doc := model.VaultDocument{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		ObjectKey:   key,
		Category:    f.Category,
		Size:        f.Size,
	}
	fields, err := storage.ToFields(doc)
	if err != nil {
		return nil, err
	}
	fields["uploadedAt"] = storage.ServerTimestamp

	if err := s.store.Set(ctx, storage.Join(DocumentsPath(clientID), id), fields); err != nil {
		if rmErr := s.blobs.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			s.logger.Error("Failed to remove orphaned blob", "key", key, "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save document metadata: %w", err)
	}

	s.logger.Info("Uploaded vault document", "client_id", clientID, "id", id, "name", name, "size", f.Size)
	return &doc, nil
}

// UploadMany uploads independent files concurrently and waits for all of
// them. The first error is returned; uploads that finished stay stored.
func (s *Service) UploadMany(ctx context.Context, clientID string, files []File) ([]model.VaultDocument, error) {
	if err := common.ValidateID("client id", clientID); err != nil {
		return nil, err
	}
	out := make([]model.VaultDocument, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range files {
		g.Go(func() error {
			doc, err := s.Upload(gctx, clientID, files[i])
			if err != nil {
				return fmt.Errorf("upload %s: %w", files[i].Name, err)
			}
			out[i] = *doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns a client's documents, newest first.
func (s *Service) List(ctx context.Context, clientID string) ([]model.VaultDocument, error) {
	if err := common.ValidateID("client id", clientID); err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, DocumentsPath(clientID))
	if err != nil {
		return nil, err
	}

	out := make([]model.VaultDocument, 0, len(docs))
	for _, d := range docs {
		var v model.VaultDocument
		if err := d.DataTo(&v); err != nil {
			s.logger.Warn("Skipping unreadable vault document", "path", d.Path, "error", err)
			continue
		}
		v.ID = d.ID
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].UploadedAt, out[j].UploadedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	return out, nil
}

func (s *Service) get(ctx context.Context, clientID, docID string) (*model.VaultDocument, error) {
	if err := common.ValidateID("client id", clientID); err != nil {
		return nil, err
	}
	if err := common.ValidateID("document id", docID); err != nil {
		return nil, err
	}
	d, err := s.store.Get(ctx, storage.Join(DocumentsPath(clientID), docID))
	if err != nil {
		return nil, err
	}
	var v model.VaultDocument
	if err := d.DataTo(&v); err != nil {
		return nil, err
	}
	v.ID = d.ID
	return &v, nil
}

// Delete removes the blob, then the metadata.
func (s *Service) Delete(ctx context.Context, clientID, docID string) error {
	doc, err := s.get(ctx, clientID, docID)
	if err != nil {
		return err
	}
	if doc.ObjectKey != "" {
		if err := s.blobs.Remove(ctx, doc.ObjectKey); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, storage.Join(DocumentsPath(clientID), docID))
}

// Link returns a presigned download URL for a document.
func (s *Service) Link(ctx context.Context, clientID, docID string, expiry time.Duration) (string, error) {
	doc, err := s.get(ctx, clientID, docID)
	if err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}
	return s.blobs.URL(ctx, doc.ObjectKey, expiry)
}
