package usecase

import (
	"testing"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

func docs(ids ...string) []domain.RetrievedDocument {
	out := make([]domain.RetrievedDocument, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.RetrievedDocument{ID: id, Text: "text " + id})
	}
	return out
}

func TestFuseRRFDocumentInBothListsRanksFirst(t *testing.T) {
	dense := docs("a", "b", "c")
	sparse := docs("b", "d")

	fused := fuse(dense, sparse, FusionConfig{Strategy: FusionRRF, RRFK: 60})
	if len(fused) != 4 {
		t.Fatalf("expected 4 unique documents, got %d", len(fused))
	}
	if fused[0].ID != "b" {
		t.Fatalf("document in both lists should rank first, got %q", fused[0].ID)
	}
}

func TestFuseIsDeterministicWithTieBreakByID(t *testing.T) {
	// a and b hold the same rank in their respective lists, so their RRF
	// scores tie exactly.
	dense := docs("b")
	sparse := docs("a")

	first := fuse(dense, sparse, FusionConfig{})
	second := fuse(sparse, dense, FusionConfig{})

	if first[0].ID != "a" || second[0].ID != "a" {
		t.Fatalf("ties must break by id: got %q and %q", first[0].ID, second[0].ID)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("fusion order depends on input order at position %d", i)
		}
	}
}

func TestFuseMergesScoresAndMetadata(t *testing.T) {
	dense := []domain.RetrievedDocument{{ID: "a", DenseScore: 0.9}}
	sparse := []domain.RetrievedDocument{{ID: "a", SparseScore: 4.2, Text: "full passage", Title: "Sea level rise"}}

	fused := fuse(dense, sparse, FusionConfig{})
	if len(fused) != 1 {
		t.Fatalf("duplicate must merge, got %d documents", len(fused))
	}
	got := fused[0]
	if got.DenseScore != 0.9 || got.SparseScore != 4.2 {
		t.Fatalf("both scores must survive the merge: %+v", got)
	}
	if got.Text != "full passage" || got.Title != "Sea level rise" {
		t.Fatalf("richer metadata must survive the merge: %+v", got)
	}
}

func TestFuseWeightedAlphaOneFollowsDenseOrder(t *testing.T) {
	dense := []domain.RetrievedDocument{
		{ID: "a", DenseScore: 0.9},
		{ID: "b", DenseScore: 0.5},
	}
	sparse := []domain.RetrievedDocument{
		{ID: "b", SparseScore: 9.0},
		{ID: "a", SparseScore: 1.0},
	}

	fused := fuse(dense, sparse, FusionConfig{Strategy: FusionWeighted, Alpha: 1.0})
	if fused[0].ID != "a" {
		t.Fatalf("alpha=1 must follow the dense ranking, got %q first", fused[0].ID)
	}

	fused = fuse(dense, sparse, FusionConfig{Strategy: FusionWeighted, Alpha: 0.0})
	if fused[0].ID != "b" {
		t.Fatalf("alpha=0 must follow the sparse ranking, got %q first", fused[0].ID)
	}
}

func TestFuseEmptyLegs(t *testing.T) {
	if got := fuse(nil, nil, FusionConfig{}); len(got) != 0 {
		t.Fatalf("expected empty fusion, got %d", len(got))
	}
	fused := fuse(docs("a"), nil, FusionConfig{})
	if len(fused) != 1 || fused[0].ID != "a" {
		t.Fatalf("single-leg fusion should pass through, got %+v", fused)
	}
}
