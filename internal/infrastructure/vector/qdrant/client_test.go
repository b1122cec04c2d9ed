package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

func TestIndexChunksEnsuresCollectionOnceAndWritesBothVectors(t *testing.T) {
	var ensureCalls int32
	var capturedUpsert map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/corpus":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/corpus/points":
			if err := json.NewDecoder(r.Body).Decode(&capturedUpsert); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	doc := &domain.Document{ID: "doc-1", Title: "Glacier retreat"}
	chunks := []string{"glaciers shrink", "ice melts"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexChunks(context.Background(), doc, chunks, vectors); err != nil {
		t.Fatalf("first IndexChunks() error = %v", err)
	}
	if err := client.IndexChunks(context.Background(), doc, chunks, vectors); err != nil {
		t.Fatalf("second IndexChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}

	points, _ := capturedUpsert["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	first, _ := points[0].(map[string]any)
	vector, _ := first["vector"].(map[string]any)
	if _, ok := vector[denseVectorName]; !ok {
		t.Fatal("point missing dense vector")
	}
	if _, ok := vector[sparseVectorName]; !ok {
		t.Fatal("point missing sparse vector")
	}
}

func TestIndexChunksTreatsConflictAsExistingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/corpus":
			http.Error(w, "already exists", http.StatusConflict)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/corpus/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	err := client.IndexChunks(context.Background(), &domain.Document{ID: "doc-1"}, []string{"a"}, [][]float32{{0.1}})
	if err != nil {
		t.Fatalf("conflict on ensure must not fail indexing: %v", err)
	}
}

func TestSearchDenseParsesResults(t *testing.T) {
	var capturedSearch map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/corpus/points/search" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&capturedSearch)
		_, _ = w.Write([]byte(`{"result":[
			{"id":"p-1","score":0.91,"payload":{"title":"Sea level","source_url":"https://example.org","text":"seas are rising"}},
			{"id":"p-2","score":0.45,"payload":{"title":"Corals","text":"reefs bleach"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	docs, err := client.SearchDense(context.Background(), []float32{0.1, 0.2}, 10)
	if err != nil {
		t.Fatalf("SearchDense() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "p-1" || docs[0].DenseScore != 0.91 || docs[0].Text != "seas are rising" {
		t.Fatalf("unexpected first document: %+v", docs[0])
	}

	vector, _ := capturedSearch["vector"].(map[string]any)
	if vector["name"] != denseVectorName {
		t.Fatalf("dense search must target the named dense vector, got %v", vector["name"])
	}
}

func TestSearchSparseUsesNamedSparseVector(t *testing.T) {
	var capturedSearch map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&capturedSearch)
		_, _ = w.Write([]byte(`{"result":[{"id":"p-1","score":3.2,"payload":{"text":"carbon sink"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	docs, err := client.SearchSparse(context.Background(), "carbon sinks", 10)
	if err != nil {
		t.Fatalf("SearchSparse() error = %v", err)
	}
	if len(docs) != 1 || docs[0].SparseScore != 3.2 {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	vector, _ := capturedSearch["vector"].(map[string]any)
	if vector["name"] != sparseVectorName {
		t.Fatalf("sparse search must target the named sparse vector, got %v", vector["name"])
	}
}

func TestSearchSparseEmptyQuerySkipsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty sparse query")
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	docs, err := client.SearchSparse(context.Background(), "!!! ???", 10)
	if err != nil {
		t.Fatalf("SearchSparse() error = %v", err)
	}
	if docs != nil {
		t.Fatalf("expected nil result, got %+v", docs)
	}
}

func TestServerErrorMapsToUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "corpus")
	_, err := client.SearchDense(context.Background(), []float32{0.1}, 5)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}
