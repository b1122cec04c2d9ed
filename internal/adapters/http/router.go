package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
	"github.com/greenorbit/climate-assistant/internal/observability/metrics"
)

// RouterConfig tunes the public-facing traffic controls.
type RouterConfig struct {
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	InFlightTimeout time.Duration
}

type Router struct {
	asker   ports.QuestionAnswerer
	ingest  ports.DocumentIngestor
	reader  ports.DocumentReader
	metrics *metrics.APIMetrics
	cfg     RouterConfig
}

func NewRouter(
	asker ports.QuestionAnswerer,
	ingest ports.DocumentIngestor,
	reader ports.DocumentReader,
	apiMetrics *metrics.APIMetrics,
	cfg RouterConfig,
) *Router {
	return &Router{
		asker:   asker,
		ingest:  ingest,
		reader:  reader,
		metrics: apiMetrics,
		cfg:     cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/cache/", rt.invalidateCache)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	if rt.cfg.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.InFlightTimeout)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question     string `json:"question"`
	Language     string `json:"language"`
	Conversation []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"conversation"`
}

type sourceRef struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

type askResponse struct {
	Status      string      `json:"status"`
	Answer      string      `json:"answer,omitempty"`
	Citations   []string    `json:"citations,omitempty"`
	Sources     []sourceRef `json:"sources,omitempty"`
	Message     string      `json:"message,omitempty"`
	Degraded    bool        `json:"degraded,omitempty"`
	Fingerprint string      `json:"fingerprint"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	query := domain.RawQuery{Text: req.Question, Language: req.Language}
	conversation := domain.ConversationContext{}
	for _, turn := range req.Conversation {
		conversation.Turns = append(conversation.Turns, domain.ConversationTurn{
			Question: turn.Question,
			Answer:   turn.Answer,
		})
	}

	result, err := rt.asker.Ask(r.Context(), query, conversation)
	if err != nil {
		writeError(w, err)
		return
	}

	fingerprint := domain.Fingerprint(query, conversation)
	writeJSON(w, statusForResult(result), renderResult(result, fingerprint))
}

func renderResult(result domain.PipelineResult, fingerprint string) askResponse {
	resp := askResponse{
		Status:      string(result.Status),
		Degraded:    result.Degraded,
		Fingerprint: fingerprint,
	}
	switch result.Status {
	case domain.ResultAnswered:
		if result.Answer != nil {
			resp.Answer = result.Answer.Text
			resp.Citations = result.Answer.Citations
		}
		for _, doc := range result.Sources {
			resp.Sources = append(resp.Sources, sourceRef{ID: doc.ID, Title: doc.Title, SourceURL: doc.SourceURL})
		}
	case domain.ResultDeclined:
		resp.Message = declineMessage(result.DeclineReason)
	default:
		// Never leak upstream detail to the caller.
		resp.Message = "The service is temporarily unable to answer. Please try again."
	}
	return resp
}

func declineMessage(reason domain.DeclineReason) string {
	switch reason {
	case domain.DeclineOffTopic:
		return "I can only help with questions about climate, environment, and sustainability."
	case domain.DeclineHarmful:
		return "I can't help with that request."
	case domain.DeclineNoDocuments:
		return "I couldn't find anything relevant in the knowledge base for that question."
	case domain.DeclineVerification:
		return "I couldn't produce a reliable answer for that question. Try rephrasing it."
	default:
		return "I can't answer that question."
	}
}

func statusForResult(result domain.PipelineResult) int {
	if result.Status != domain.ResultFailed {
		return http.StatusOK
	}
	switch result.FailureKind {
	case domain.FailureUpstreamUnavailable, domain.FailureUpstreamTimeout:
		return http.StatusServiceUnavailable
	case domain.FailureMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		r.FormValue("title"),
		r.FormValue("source_url"),
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	fingerprint := strings.TrimPrefix(r.URL.Path, "/v1/cache/")
	if fingerprint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fingerprint is required"})
		return
	}

	if err := rt.asker.InvalidateCached(r.Context(), fingerprint); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
