package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

func candidates() []domain.RetrievedDocument {
	return []domain.RetrievedDocument{
		{ID: "doc-1", Text: "seas rise as ice melts"},
		{ID: "doc-2", Text: "coral reefs bleach in warm water"},
		{ID: "doc-3", Text: "carbon taxes change incentives"},
	}
}

func TestRerankReordersByRelevance(t *testing.T) {
	var captured rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rerank" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[
			{"index":2,"relevance_score":0.95},
			{"index":0,"relevance_score":0.40}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "rerank-v3", nil)
	ranked, err := client.Rerank(context.Background(), "how do carbon taxes work", candidates(), 2)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(ranked) != 2 || ranked[0].ID != "doc-3" || ranked[1].ID != "doc-1" {
		t.Fatalf("unexpected order: %+v", ranked)
	}
	if ranked[0].RerankScore != 0.95 {
		t.Fatalf("expected relevance score on document, got %f", ranked[0].RerankScore)
	}
	if captured.TopN != 2 || len(captured.Documents) != 3 {
		t.Fatalf("unexpected request: %+v", captured)
	}
}

func TestRerankEmptyInputSkipsRequest(t *testing.T) {
	client := New("http://127.0.0.1:1", "rerank-v3", nil)
	ranked, err := client.Rerank(context.Background(), "q", nil, 5)
	if err != nil || ranked != nil {
		t.Fatalf("expected nil/nil for empty input, got %v / %v", ranked, err)
	}
}

func TestRerankOutOfRangeIndexIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":7,"relevance_score":0.9}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "rerank-v3", nil)
	_, err := client.Rerank(context.Background(), "q", candidates(), 3)
	if !errors.Is(err, domain.ErrUpstreamMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestRerankRepeatedIndexIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"index":0,"relevance_score":0.9},
			{"index":0,"relevance_score":0.8}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "rerank-v3", nil)
	ranked, err := client.Rerank(context.Background(), "q", candidates(), 3)
	if !errors.Is(err, domain.ErrUpstreamMalformed) {
		t.Fatalf("expected malformed error for repeated index, got %v", err)
	}
	if ranked != nil {
		t.Fatalf("expected no documents when a result index repeats, got %+v", ranked)
	}
}

func TestRerankServerErrorMapsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "rerank-v3", nil)
	_, err := client.Rerank(context.Background(), "q", candidates(), 3)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestRerankBadRequestIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "rerank-v3", nil)
	_, err := client.Rerank(context.Background(), "q", candidates(), 3)
	if !errors.Is(err, domain.ErrUpstreamMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}
