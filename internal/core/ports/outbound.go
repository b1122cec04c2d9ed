package ports

import (
	"context"
	"io"
	"time"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

// QueryClassifier is the language-understanding service boundary: one
// round trip that decides topicality/safety and, when on-topic, returns a
// standalone English restatement resolved against the conversation.
type QueryClassifier interface {
	ClassifyAndRewrite(ctx context.Context, query domain.RawQuery, context domain.ConversationContext) (domain.Verdict, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex is the vector store: it indexes corpus chunks and serves
// the two independent retrieval legs.
type SearchIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	SearchDense(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedDocument, error)
	SearchSparse(ctx context.Context, queryText string, limit int) ([]domain.RetrievedDocument, error)
}

// Reranker rescores a small fused candidate set against the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []domain.RetrievedDocument, topN int) ([]domain.RetrievedDocument, error)
}

// AnswerGenerator produces a draft answer with citations limited to the
// supplied documents. Attempt 1 carries the verifier's feedback.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, docs []domain.RetrievedDocument, attempt int, feedback string) (domain.CandidateAnswer, error)
}

// Translator renders an accepted English answer in the user's language.
// Citation markers in the text must survive the translation untouched.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// GroundednessChecker verifies that the answer's claims are supported by
// the supplied contexts.
type GroundednessChecker interface {
	CheckGrounded(ctx context.Context, question, answer string, contexts []string) (bool, string, error)
}

// ResultStore is the cache backing store: a pluggable key-value substrate
// (in-process or Redis) behind the fingerprint cache.
type ResultStore interface {
	Get(ctx context.Context, fingerprint string) (*domain.PipelineResult, error)
	Set(ctx context.Context, fingerprint string, result domain.PipelineResult, ttl time.Duration) error
	Delete(ctx context.Context, fingerprint string) error
}

// DocumentRepository persists and reads corpus document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, chunkCount int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes corpus ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}
