package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeIndex struct {
	dense     []domain.RetrievedDocument
	sparse    []domain.RetrievedDocument
	denseErr  error
	sparseErr error
}

func (f *fakeIndex) IndexChunks(context.Context, *domain.Document, []string, [][]float32) error {
	return nil
}

func (f *fakeIndex) SearchDense(context.Context, []float32, int) ([]domain.RetrievedDocument, error) {
	return f.dense, f.denseErr
}

func (f *fakeIndex) SearchSparse(context.Context, string, int) ([]domain.RetrievedDocument, error) {
	return f.sparse, f.sparseErr
}

type fakeReranker struct {
	ranked []domain.RetrievedDocument
	err    error
	calls  int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, docs []domain.RetrievedDocument, _ int) ([]domain.RetrievedDocument, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.ranked != nil {
		return f.ranked, nil
	}
	return docs, nil
}

func newRetriever(index *fakeIndex, reranker *fakeReranker, cfg RetrieverConfig) *HybridRetriever {
	return NewHybridRetriever(&fakeEmbedder{vector: []float32{0.1, 0.2}}, index, reranker, cfg, nil)
}

func TestRetrieveFusesBothLegsAndTruncates(t *testing.T) {
	index := &fakeIndex{
		dense:  docs("a", "b", "c"),
		sparse: docs("c", "d", "e"),
	}
	r := newRetriever(index, nil, RetrieverConfig{TopK: 3})

	result, err := r.Retrieve(context.Background(), "sea level rise")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Documents) != 3 {
		t.Fatalf("expected truncation to top 3, got %d", len(result.Documents))
	}
	if result.Documents[0].ID != "c" {
		t.Fatalf("document in both legs should lead, got %q", result.Documents[0].ID)
	}
	if result.Degraded {
		t.Fatal("no reranker configured must not mean degraded")
	}
}

func TestRetrieveEmptyCorpusReturnsEmptyNotError(t *testing.T) {
	r := newRetriever(&fakeIndex{}, nil, RetrieverConfig{})
	result, err := r.Retrieve(context.Background(), "sea level rise")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Documents) != 0 || result.Degraded {
		t.Fatalf("expected clean empty result, got %+v", result)
	}
}

func TestRetrieveRerankFailureFallsBackDegraded(t *testing.T) {
	index := &fakeIndex{dense: docs("a", "b"), sparse: docs("b", "c")}
	reranker := &fakeReranker{err: domain.WrapError(domain.ErrUpstreamUnavailable, "rerank", errors.New("down"))}
	r := newRetriever(index, reranker, RetrieverConfig{TopK: 3, RerankEnabled: true})

	result, err := r.Retrieve(context.Background(), "sea level rise")
	if err != nil {
		t.Fatalf("rerank outage must not fail retrieval: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded flag after rerank fallback")
	}
	if result.Documents[0].ID != "b" {
		t.Fatalf("fallback must keep fused order, got %q first", result.Documents[0].ID)
	}
}

func TestRetrieveRerankReordersHead(t *testing.T) {
	index := &fakeIndex{dense: docs("a", "b"), sparse: docs("b", "c")}
	reranker := &fakeReranker{ranked: docs("c", "a", "b")}
	r := newRetriever(index, reranker, RetrieverConfig{TopK: 2, RerankEnabled: true})

	result, err := r.Retrieve(context.Background(), "sea level rise")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if reranker.calls != 1 {
		t.Fatalf("expected one rerank call, got %d", reranker.calls)
	}
	if result.Documents[0].ID != "c" || len(result.Documents) != 2 {
		t.Fatalf("expected reranked order truncated to top 2, got %+v", result.Documents)
	}
}

func TestRetrieveRerankDisabledSkipsReranker(t *testing.T) {
	index := &fakeIndex{dense: docs("a"), sparse: docs("b")}
	reranker := &fakeReranker{}
	r := newRetriever(index, reranker, RetrieverConfig{RerankEnabled: false})

	if _, err := r.Retrieve(context.Background(), "sea level rise"); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if reranker.calls != 0 {
		t.Fatalf("disabled reranker must not be called, got %d calls", reranker.calls)
	}
}

func TestRetrieveLegErrorPropagates(t *testing.T) {
	index := &fakeIndex{
		dense:     docs("a"),
		sparseErr: domain.WrapError(domain.ErrUpstreamUnavailable, "search sparse", errors.New("qdrant down")),
	}
	r := newRetriever(index, nil, RetrieverConfig{})

	_, err := r.Retrieve(context.Background(), "sea level rise")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
