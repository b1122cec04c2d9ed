package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, *domain.Document) (string, error) {
	return f.text, f.err
}

type fakeChunker struct{}

func (fakeChunker) Split(text string) []string {
	var chunks []string
	for _, part := range strings.Split(text, ".") {
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, strings.TrimSpace(part))
		}
	}
	return chunks
}

func seedDocument(repo *fakeDocumentRepo) *domain.Document {
	doc := &domain.Document{
		ID:       "doc-1",
		Filename: "report.txt",
		MimeType: "text/plain",
		Status:   domain.StatusUploaded,
	}
	repo.docs[doc.ID] = doc
	return doc
}

func newProcessService(repo *fakeDocumentRepo, extractor *fakeExtractor, index *fakeIndex) *ProcessService {
	return NewProcessService(
		repo,
		map[string]ports.TextExtractor{"text/plain": extractor},
		fakeChunker{},
		&fakeEmbedder{vector: []float32{0.1}},
		index,
		nil,
	)
}

func TestProcessByIDIndexesAndMarksReady(t *testing.T) {
	repo := newFakeDocumentRepo()
	seedDocument(repo)
	s := newProcessService(repo, &fakeExtractor{text: "First sentence. Second sentence."}, &fakeIndex{})

	if err := s.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.docs["doc-1"].Status != domain.StatusReady {
		t.Fatalf("expected ready, got %s", repo.docs["doc-1"].Status)
	}
	if repo.chunkCount != 2 {
		t.Fatalf("expected 2 chunks recorded, got %d", repo.chunkCount)
	}
}

func TestProcessByIDUnknownDocument(t *testing.T) {
	s := newProcessService(newFakeDocumentRepo(), &fakeExtractor{text: "x"}, &fakeIndex{})
	err := s.ProcessByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessByIDExtractionFailureMarksFailed(t *testing.T) {
	repo := newFakeDocumentRepo()
	seedDocument(repo)
	s := newProcessService(repo, &fakeExtractor{err: errors.New("corrupt file")}, &fakeIndex{})

	if err := s.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected extraction error")
	}
	doc := repo.docs["doc-1"]
	if doc.Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", doc.Status)
	}
	if doc.Error == "" {
		t.Fatal("failure cause must be recorded")
	}
}

func TestProcessByIDEmptyTextMarksFailed(t *testing.T) {
	repo := newFakeDocumentRepo()
	seedDocument(repo)
	s := newProcessService(repo, &fakeExtractor{text: "   \n"}, &fakeIndex{})

	if err := s.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected error for empty document")
	}
	if repo.docs["doc-1"].Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", repo.docs["doc-1"].Status)
	}
}

func TestProcessByIDNoExtractorForMimeType(t *testing.T) {
	repo := newFakeDocumentRepo()
	doc := seedDocument(repo)
	doc.MimeType = "application/pdf"
	s := newProcessService(repo, &fakeExtractor{text: "x"}, &fakeIndex{})

	if err := s.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected error for unhandled mime type")
	}
	if repo.docs["doc-1"].Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", repo.docs["doc-1"].Status)
	}
}
