package domain

// RetrievedDocument is one corpus passage returned by hybrid retrieval.
// DenseScore and SparseScore come from the two search legs; FusedScore is
// assigned by fusion and RerankScore by the reranker. Identifiers are
// unique within one result set.
type RetrievedDocument struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SourceURL   string  `json:"source_url,omitempty"`
	Text        string  `json:"text"`
	DenseScore  float64 `json:"dense_score,omitempty"`
	SparseScore float64 `json:"sparse_score,omitempty"`
	FusedScore  float64 `json:"fused_score,omitempty"`
	RerankScore float64 `json:"rerank_score,omitempty"`
}

// RetrievalResult carries the final ranked candidates plus a flag set when
// the reranker was unavailable and the fused order was used as-is.
type RetrievalResult struct {
	Documents []RetrievedDocument `json:"documents"`
	Degraded  bool                `json:"degraded,omitempty"`
}

// DocumentIndex answers membership queries during citation validation.
func (r RetrievalResult) DocumentIndex() map[string]RetrievedDocument {
	out := make(map[string]RetrievedDocument, len(r.Documents))
	for _, doc := range r.Documents {
		out[doc.ID] = doc
	}
	return out
}
