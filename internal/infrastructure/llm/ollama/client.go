package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Classifier implements ports.QueryClassifier with a single structured
// generation call: topicality, safety, and the standalone rewrite come
// back together.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

type classifyResponse struct {
	Classification string `json:"classification"`
	Reason         string `json:"reason"`
	RewrittenQuery string `json:"rewritten_query"`
}

func (c *Classifier) ClassifyAndRewrite(ctx context.Context, query domain.RawQuery, conversation domain.ConversationContext) (domain.Verdict, error) {
	respText, err := c.client.generateJSON(ctx, buildClassifyPrompt(query, conversation))
	if err != nil {
		return domain.Verdict{}, wrapUpstream("classify", err)
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.Verdict{}, domain.WrapError(domain.ErrUpstreamMalformed, "classify", fmt.Errorf("parse classification json: %w", err))
	}

	kind := domain.VerdictKind(strings.ToLower(strings.TrimSpace(parsed.Classification)))
	switch kind {
	case domain.VerdictHarmful, domain.VerdictOffTopic:
		return domain.Verdict{Kind: kind, Reason: parsed.Reason}, nil
	case domain.VerdictOnTopic:
		rewritten := strings.TrimSpace(parsed.RewrittenQuery)
		if rewritten == "" {
			return domain.Verdict{}, domain.WrapError(domain.ErrUpstreamMalformed, "classify", fmt.Errorf("on_topic verdict without rewritten query"))
		}
		return domain.Verdict{Kind: kind, RewrittenQuery: rewritten, Reason: parsed.Reason}, nil
	default:
		// Never default to on_topic: an unrecognized verdict must not
		// sneak a question past the safety gate.
		return domain.Verdict{}, domain.WrapError(domain.ErrUpstreamMalformed, "classify", fmt.Errorf("unknown classification %q", parsed.Classification))
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, wrapUpstream("embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrUpstreamMalformed, "embed", fmt.Errorf("%d embeddings for %d inputs", len(response.Embeddings), len(texts)))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrUpstreamMalformed, "embed", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

// Generator implements ports.AnswerGenerator. It is stateless between
// attempts; the regeneration feedback travels in the prompt.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

type generateResponse struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

func (g *Generator) Generate(ctx context.Context, question string, docs []domain.RetrievedDocument, attempt int, feedback string) (domain.CandidateAnswer, error) {
	respText, err := g.client.generateJSON(ctx, buildAnswerPrompt(question, docs, attempt, feedback))
	if err != nil {
		return domain.CandidateAnswer{}, wrapUpstream("generate", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.CandidateAnswer{}, domain.WrapError(domain.ErrUpstreamMalformed, "generate", fmt.Errorf("parse answer json: %w", err))
	}
	if parsed.Citations == nil {
		parsed.Citations = []string{}
	}
	return domain.CandidateAnswer{
		Text:      strings.TrimSpace(parsed.Answer),
		Citations: parsed.Citations,
		Attempt:   attempt,
	}, nil
}

// Translator implements ports.Translator. Drafts are generated and
// verified in English; this renders the accepted one in the user's
// language with citation markers intact.
type Translator struct {
	client *Client
}

func NewTranslator(client *Client) *Translator {
	return &Translator{client: client}
}

type translateResponse struct {
	Translation string `json:"translation"`
}

func (t *Translator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	respText, err := t.client.generateJSON(ctx, buildTranslatePrompt(text, targetLanguage))
	if err != nil {
		return "", wrapUpstream("translate", err)
	}

	var parsed translateResponse
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return "", domain.WrapError(domain.ErrUpstreamMalformed, "translate", fmt.Errorf("parse translation json: %w", err))
	}
	translation := strings.TrimSpace(parsed.Translation)
	if translation == "" {
		return "", domain.WrapError(domain.ErrUpstreamMalformed, "translate", fmt.Errorf("empty translation"))
	}
	return translation, nil
}

// Verifier implements ports.GroundednessChecker with one JSON verdict
// call per candidate answer.
type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

type groundedResponse struct {
	Grounded *bool  `json:"grounded"`
	Reason   string `json:"reason"`
}

func (v *Verifier) CheckGrounded(ctx context.Context, question, answer string, contexts []string) (bool, string, error) {
	respText, err := v.client.generateJSON(ctx, buildGroundednessPrompt(question, answer, contexts))
	if err != nil {
		return false, "", wrapUpstream("verify", err)
	}

	var parsed groundedResponse
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return false, "", domain.WrapError(domain.ErrUpstreamMalformed, "verify", fmt.Errorf("parse groundedness json: %w", err))
	}
	if parsed.Grounded == nil {
		return false, "", domain.WrapError(domain.ErrUpstreamMalformed, "verify", fmt.Errorf("verdict missing grounded field"))
	}
	return *parsed.Grounded, strings.TrimSpace(parsed.Reason), nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
