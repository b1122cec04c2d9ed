package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
)

// ProcessService turns an uploaded document into indexed corpus chunks.
// It runs in the worker process, driven by queue events.
type ProcessService struct {
	repo       ports.DocumentRepository
	extractors map[string]ports.TextExtractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	index      ports.SearchIndex
	log        *slog.Logger
}

func NewProcessService(
	repo ports.DocumentRepository,
	extractors map[string]ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.SearchIndex,
	log *slog.Logger,
) *ProcessService {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessService{
		repo:       repo,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		log:        log,
	}
}

// ProcessByID extracts, chunks, embeds, and indexes one document. Any
// step failing marks the document failed with the cause recorded.
func (s *ProcessService) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return err
	}

	chunkCount, err := s.process(ctx, doc)
	if err != nil {
		if statusErr := s.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, err.Error()); statusErr != nil {
			s.log.Error("mark_document_failed", "document_id", doc.ID, "error", statusErr)
		}
		return err
	}

	if err := s.repo.SetChunkCount(ctx, doc.ID, chunkCount); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, doc.ID, domain.StatusReady, ""); err != nil {
		return err
	}
	s.log.Info("document_indexed", "document_id", doc.ID, "chunks", chunkCount)
	return nil
}

func (s *ProcessService) process(ctx context.Context, doc *domain.Document) (int, error) {
	extractor, ok := s.extractors[doc.MimeType]
	if !ok {
		return 0, fmt.Errorf("no extractor for mime type %q", doc.MimeType)
	}

	text, err := extractor.Extract(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("document contains no extractable text")
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("chunker produced no chunks")
	}

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := s.index.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	return len(chunks), nil
}
