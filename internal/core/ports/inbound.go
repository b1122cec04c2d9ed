package ports

import (
	"context"
	"io"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the query pipeline.
type QuestionAnswerer interface {
	Ask(ctx context.Context, query domain.RawQuery, context domain.ConversationContext) (domain.PipelineResult, error)
	InvalidateCached(ctx context.Context, fingerprint string) error
}

// DocumentIngestor is the inbound contract for corpus upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, title, sourceURL, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for corpus document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
