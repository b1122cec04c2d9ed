package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
)

var supportedMimeTypes = map[string]struct{}{
	"text/plain":      {},
	"text/markdown":   {},
	"application/pdf": {},
}

// DocumentService handles corpus uploads: persist the object, record the
// metadata, and hand the heavy lifting to the worker via the queue.
type DocumentService struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	log     *slog.Logger
}

func NewDocumentService(repo ports.DocumentRepository, storage ports.ObjectStorage, queue ports.MessageQueue, log *slog.Logger) *DocumentService {
	if log == nil {
		log = slog.Default()
	}
	return &DocumentService{repo: repo, storage: storage, queue: queue, log: log}
}

func (s *DocumentService) Upload(ctx context.Context, filename, title, sourceURL, mimeType string, body io.Reader) (*domain.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename is required"))
	}
	if _, ok := supportedMimeTypes[mimeType]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("unsupported mime type %q", mimeType))
	}
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		Title:     title,
		SourceURL: sourceURL,
		MimeType:  mimeType,
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.StoragePath = doc.ID + filepath.Ext(filename)

	if err := s.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("save document object: %w", err)
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}
	if err := s.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		// The record exists; reprocessing can be triggered later.
		s.log.Error("publish_ingest_event_failed", "document_id", doc.ID, "error", err)
		return nil, fmt.Errorf("publish ingest event: %w", err)
	}

	s.log.Info("document_uploaded", "document_id", doc.ID, "filename", filename, "mime_type", mimeType)
	return doc, nil
}

func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return s.repo.GetByID(ctx, id)
}
