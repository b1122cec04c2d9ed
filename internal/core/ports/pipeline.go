package ports

import (
	"context"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

// DocumentRetriever is the hybrid retrieval stage: one rewritten query in,
// a ranked candidate set out. Empty results are valid, not errors.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string) (domain.RetrievalResult, error)
}

// AnswerVerifier judges one candidate answer against the retrieved set.
type AnswerVerifier interface {
	Verify(ctx context.Context, question string, answer domain.CandidateAnswer, retrieval domain.RetrievalResult) (domain.VerificationOutcome, error)
}

// ResultCache is the fingerprint cache contract the orchestrator depends
// on. ComputeOrJoin guarantees at most one in-flight computation per
// fingerprint; every concurrent caller observes its outcome.
type ResultCache interface {
	Lookup(ctx context.Context, fingerprint string) *domain.PipelineResult
	ComputeOrJoin(ctx context.Context, fingerprint string, compute func(context.Context) (domain.PipelineResult, error)) (domain.PipelineResult, bool, error)
	Invalidate(ctx context.Context, fingerprint string) error
}
