package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/resilience"
)

// Client reranks fused candidates against the query through a
// Cohere-compatible /v1/rerank endpoint. Calls go through the shared
// resilience executor; the retriever treats any surviving error as a
// degraded-mode signal, not a pipeline failure.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (c *Client) Rerank(ctx context.Context, query string, docs []domain.RetrievedDocument, topN int) ([]domain.RetrievedDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}

	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		texts = append(texts, doc.Text)
	}
	payload := rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: texts,
		TopN:      topN,
	}

	var response rerankResponse
	call := func(ctx context.Context) error {
		return c.post(ctx, payload, &response)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "rerank.score", call, classifyRerankError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapRerankError(err)
	}

	out := make([]domain.RetrievedDocument, 0, len(response.Results))
	seen := make(map[int]struct{}, len(response.Results))
	for _, result := range response.Results {
		if result.Index < 0 || result.Index >= len(docs) {
			return nil, domain.WrapError(domain.ErrUpstreamMalformed, "rerank", fmt.Errorf("result index %d out of range", result.Index))
		}
		// A repeated index would duplicate a document in the final set.
		if _, dup := seen[result.Index]; dup {
			return nil, domain.WrapError(domain.ErrUpstreamMalformed, "rerank", fmt.Errorf("result index %d repeated", result.Index))
		}
		seen[result.Index] = struct{}{}
		doc := docs[result.Index]
		doc.RerankScore = result.RelevanceScore
		out = append(out, doc)
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrUpstreamMalformed, "rerank", fmt.Errorf("empty result set"))
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}

type statusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rerank status: %s", e.Status)
	}
	return fmt.Sprintf("rerank status: %s: %s", e.Status, e.Body)
}

func classifyRerankError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func wrapRerankError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrUpstreamTimeout, "rerank", err)
	}
	if domain.IsKind(err, domain.ErrUpstreamMalformed) || errors.Is(err, context.Canceled) {
		return err
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrUpstreamMalformed, "rerank", err)
	}
	return domain.WrapError(domain.ErrUpstreamUnavailable, "rerank", err)
}
