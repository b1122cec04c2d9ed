package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
)

// RetrieverConfig tunes candidate depth, fusion, and reranking.
type RetrieverConfig struct {
	HybridCandidates int
	TopK             int
	RerankTopN       int
	RerankEnabled    bool
	Fusion           FusionConfig
}

func (c RetrieverConfig) normalize() RetrieverConfig {
	if c.HybridCandidates <= 0 {
		c.HybridCandidates = 30
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.RerankTopN <= 0 {
		c.RerankTopN = 15
	}
	return c
}

// HybridRetriever runs the dense and sparse legs concurrently, fuses
// their output, and optionally reranks the fused head. A reranker outage
// degrades the result instead of failing the pipeline.
type HybridRetriever struct {
	embedder ports.Embedder
	index    ports.SearchIndex
	reranker ports.Reranker
	cfg      RetrieverConfig
	log      *slog.Logger
}

func NewHybridRetriever(
	embedder ports.Embedder,
	index ports.SearchIndex,
	reranker ports.Reranker,
	cfg RetrieverConfig,
	log *slog.Logger,
) *HybridRetriever {
	if log == nil {
		log = slog.Default()
	}
	return &HybridRetriever{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		cfg:      cfg.normalize(),
		log:      log,
	}
}

// Retrieve executes both legs against the rewritten query. An empty
// fused set returns an empty result, not an error.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string) (domain.RetrievalResult, error) {
	var dense, sparse []domain.RetrievedDocument

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vector, err := r.embedder.EmbedQuery(gctx, query)
		if err != nil {
			return err
		}
		docs, err := r.index.SearchDense(gctx, vector, r.cfg.HybridCandidates)
		if err != nil {
			return err
		}
		dense = docs
		return nil
	})
	g.Go(func() error {
		docs, err := r.index.SearchSparse(gctx, query, r.cfg.HybridCandidates)
		if err != nil {
			return err
		}
		sparse = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RetrievalResult{}, err
	}

	fused := fuse(dense, sparse, r.cfg.Fusion)
	if len(fused) == 0 {
		return domain.RetrievalResult{}, nil
	}

	ranked, degraded := r.rerank(ctx, query, fused)
	if len(ranked) > r.cfg.TopK {
		ranked = ranked[:r.cfg.TopK]
	}
	return domain.RetrievalResult{Documents: ranked, Degraded: degraded}, nil
}

func (r *HybridRetriever) rerank(ctx context.Context, query string, fused []domain.RetrievedDocument) ([]domain.RetrievedDocument, bool) {
	if !r.cfg.RerankEnabled || r.reranker == nil {
		return fused, false
	}
	head := fused
	if len(head) > r.cfg.RerankTopN {
		head = head[:r.cfg.RerankTopN]
	}
	ranked, err := r.reranker.Rerank(ctx, query, head, r.cfg.RerankTopN)
	if err != nil {
		r.log.Warn("rerank_failed_using_fused_order", "error", err)
		return fused, true
	}
	return ranked, false
}
