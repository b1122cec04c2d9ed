package usecase

import (
	"sort"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

// FusionStrategy selects how the dense and sparse result lists combine.
type FusionStrategy string

const (
	FusionRRF      FusionStrategy = "rrf"
	FusionWeighted FusionStrategy = "weighted"
)

// FusionConfig carries the tuning knobs for both strategies.
type FusionConfig struct {
	Strategy FusionStrategy
	RRFK     int
	Alpha    float64
}

func (c FusionConfig) normalize() FusionConfig {
	if c.Strategy != FusionWeighted {
		c.Strategy = FusionRRF
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		c.Alpha = 0.5
	}
	return c
}

// fuse merges the two retrieval legs into one ranked list. A document
// appearing in both lists merges: both scores kept, metadata taken from
// whichever copy has text. Ordering is fully deterministic; equal fused
// scores break ties by document id.
func fuse(dense, sparse []domain.RetrievedDocument, cfg FusionConfig) []domain.RetrievedDocument {
	cfg = cfg.normalize()

	merged := mergeLegs(dense, sparse)
	switch cfg.Strategy {
	case FusionWeighted:
		scoreWeighted(merged, dense, sparse, cfg.Alpha)
	default:
		scoreRRF(merged, dense, sparse, cfg.RRFK)
	}

	out := make([]domain.RetrievedDocument, 0, len(merged))
	for _, doc := range merged {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func mergeLegs(dense, sparse []domain.RetrievedDocument) map[string]*domain.RetrievedDocument {
	merged := make(map[string]*domain.RetrievedDocument, len(dense)+len(sparse))
	for _, doc := range dense {
		d := doc
		merged[doc.ID] = &d
	}
	for _, doc := range sparse {
		if existing, ok := merged[doc.ID]; ok {
			existing.SparseScore = doc.SparseScore
			if existing.Text == "" {
				existing.Text = doc.Text
			}
			if existing.Title == "" {
				existing.Title = doc.Title
			}
			if existing.SourceURL == "" {
				existing.SourceURL = doc.SourceURL
			}
			continue
		}
		d := doc
		merged[doc.ID] = &d
	}
	return merged
}

// scoreRRF assigns reciprocal-rank-fusion scores: sum over the lists the
// document appears in of 1/(k+rank), rank starting at 1.
func scoreRRF(merged map[string]*domain.RetrievedDocument, dense, sparse []domain.RetrievedDocument, k int) {
	for rank, doc := range dense {
		merged[doc.ID].FusedScore += 1.0 / float64(k+rank+1)
	}
	for rank, doc := range sparse {
		merged[doc.ID].FusedScore += 1.0 / float64(k+rank+1)
	}
}

// scoreWeighted min-max normalizes each leg's raw scores to [0,1] and
// combines them as alpha*dense + (1-alpha)*sparse. A document absent from
// a leg contributes zero for that leg.
func scoreWeighted(merged map[string]*domain.RetrievedDocument, dense, sparse []domain.RetrievedDocument, alpha float64) {
	denseNorm := minMaxNormalize(dense, func(d domain.RetrievedDocument) float64 { return d.DenseScore })
	sparseNorm := minMaxNormalize(sparse, func(d domain.RetrievedDocument) float64 { return d.SparseScore })

	for id, doc := range merged {
		doc.FusedScore = alpha*denseNorm[id] + (1-alpha)*sparseNorm[id]
	}
}

func minMaxNormalize(docs []domain.RetrievedDocument, score func(domain.RetrievedDocument) float64) map[string]float64 {
	out := make(map[string]float64, len(docs))
	if len(docs) == 0 {
		return out
	}
	lo, hi := score(docs[0]), score(docs[0])
	for _, doc := range docs[1:] {
		s := score(doc)
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	for _, doc := range docs {
		if hi == lo {
			// A single candidate, or identical scores, still counts fully.
			out[doc.ID] = 1
			continue
		}
		out[doc.ID] = (score(doc) - lo) / (hi - lo)
	}
	return out
}
