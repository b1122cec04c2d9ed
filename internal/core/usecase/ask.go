package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
)

// AskTimeouts are per-stage budgets. A stage overrunning its budget maps
// to an upstream-timeout failure, never a hang.
type AskTimeouts struct {
	Classify  time.Duration
	Retrieve  time.Duration
	Generate  time.Duration
	Verify    time.Duration
	Translate time.Duration
}

func (t AskTimeouts) normalize() AskTimeouts {
	if t.Classify <= 0 {
		t.Classify = 20 * time.Second
	}
	if t.Retrieve <= 0 {
		t.Retrieve = 15 * time.Second
	}
	if t.Generate <= 0 {
		t.Generate = 60 * time.Second
	}
	if t.Verify <= 0 {
		t.Verify = 30 * time.Second
	}
	if t.Translate <= 0 {
		t.Translate = 30 * time.Second
	}
	return t
}

// AskService orchestrates the full query pipeline behind the fingerprint
// cache: classify, retrieve, then a generate/verify loop capped at one
// regeneration. Every outcome is a PipelineResult; upstream errors map to
// failure kinds inside the flight so all concurrent waiters share them.
type AskService struct {
	classifier ports.QueryClassifier
	retriever  ports.DocumentRetriever
	generator  ports.AnswerGenerator
	verifier   ports.AnswerVerifier
	translator ports.Translator
	cache      ports.ResultCache
	timeouts   AskTimeouts
	metrics    PipelineMetrics
	log        *slog.Logger
}

func NewAskService(
	classifier ports.QueryClassifier,
	retriever ports.DocumentRetriever,
	generator ports.AnswerGenerator,
	verifier ports.AnswerVerifier,
	translator ports.Translator,
	cache ports.ResultCache,
	timeouts AskTimeouts,
	metrics PipelineMetrics,
	log *slog.Logger,
) *AskService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AskService{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		verifier:   verifier,
		translator: translator,
		cache:      cache,
		timeouts:   timeouts.normalize(),
		metrics:    metrics,
		log:        log,
	}
}

// Ask answers one question. Identical concurrent requests collapse onto a
// single pipeline execution via the fingerprint cache.
func (s *AskService) Ask(ctx context.Context, query domain.RawQuery, conversation domain.ConversationContext) (domain.PipelineResult, error) {
	query = query.Normalize()
	if err := query.Validate(); err != nil {
		return domain.PipelineResult{}, err
	}

	fingerprint := domain.Fingerprint(query, conversation)
	if cached := s.cache.Lookup(ctx, fingerprint); cached != nil {
		s.metrics.RecordResult(string(cached.Status), string(cached.DeclineReason), cached.Degraded)
		return *cached, nil
	}

	result, joined, err := s.cache.ComputeOrJoin(ctx, fingerprint, func(flightCtx context.Context) (domain.PipelineResult, error) {
		return s.run(flightCtx, query, conversation), nil
	})
	if err != nil {
		return domain.PipelineResult{}, err
	}
	if joined {
		s.log.Debug("joined_in_flight_request", "fingerprint", fingerprint)
	}
	s.metrics.RecordResult(string(result.Status), string(result.DeclineReason), result.Degraded)
	return result, nil
}

func (s *AskService) InvalidateCached(ctx context.Context, fingerprint string) error {
	return s.cache.Invalidate(ctx, fingerprint)
}

// run executes the pipeline stages. It never returns an error: upstream
// failures become Failed results so the flight completes and waiters are
// released with the same outcome, which Cacheable() keeps out of the store.
func (s *AskService) run(ctx context.Context, query domain.RawQuery, conversation domain.ConversationContext) domain.PipelineResult {
	verdict, err := s.classify(ctx, query, conversation)
	if err != nil {
		return s.fail("classify", err)
	}
	s.metrics.RecordVerdict(string(verdict.Kind))

	switch verdict.Kind {
	case domain.VerdictHarmful:
		return domain.Declined(domain.DeclineHarmful, verdict.Reason)
	case domain.VerdictOffTopic:
		return domain.Declined(domain.DeclineOffTopic, verdict.Reason)
	}

	retrieval, err := s.retrieve(ctx, verdict.RewrittenQuery)
	if err != nil {
		return s.fail("retrieve", err)
	}
	if len(retrieval.Documents) == 0 {
		return domain.Declined(domain.DeclineNoDocuments, "no relevant documents in the corpus")
	}

	return s.generateAndVerify(ctx, verdict.RewrittenQuery, query.Language, retrieval)
}

func (s *AskService) generateAndVerify(ctx context.Context, question, language string, retrieval domain.RetrievalResult) domain.PipelineResult {
	feedback := ""
	for attempt := 0; attempt <= domain.MaxGenerationAttempt; attempt++ {
		answer, err := s.generate(ctx, question, retrieval.Documents, attempt, feedback)
		if err != nil {
			return s.fail("generate", err)
		}
		answer.Attempt = attempt

		outcome, err := s.verify(ctx, question, answer, retrieval)
		if err != nil {
			return s.fail("verify", err)
		}

		switch outcome.Status {
		case domain.VerificationAccepted:
			return s.deliver(ctx, answer, language, retrieval)
		case domain.VerificationRegenerate:
			feedback = outcome.Reason
		default:
			return domain.Declined(domain.DeclineVerification, outcome.Reason)
		}
	}
	// Unreachable while the verifier rejects at the attempt cap; kept so a
	// policy change cannot loop forever.
	return domain.Declined(domain.DeclineVerification, feedback)
}

// deliver renders the accepted English draft in the user's language.
// Translation runs after verification so the groundedness check always
// compares English text against English contexts. A translation failure
// degrades to the English draft instead of discarding a verified answer.
func (s *AskService) deliver(ctx context.Context, answer domain.CandidateAnswer, language string, retrieval domain.RetrievalResult) domain.PipelineResult {
	if s.translator == nil || !needsTranslation(language) {
		return domain.Answered(answer, retrieval.Documents, retrieval.Degraded)
	}

	translated, err := s.translate(ctx, answer.Text, language)
	if err != nil {
		s.log.Warn("answer_translation_failed", "language", language, "error", err)
		return domain.Answered(answer, retrieval.Documents, true)
	}
	answer.Text = translated
	return domain.Answered(answer, retrieval.Documents, retrieval.Degraded)
}

// needsTranslation reports whether the declared source language differs
// from the English the pipeline generates in. Unknown stays English.
func needsTranslation(language string) bool {
	switch language {
	case "", "unknown", "en", "english":
		return false
	}
	return true
}

func (s *AskService) classify(ctx context.Context, query domain.RawQuery, conversation domain.ConversationContext) (domain.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Classify)
	defer cancel()
	started := time.Now()
	verdict, err := s.classifier.ClassifyAndRewrite(ctx, query, conversation)
	s.metrics.RecordStageDuration("classify", time.Since(started).Seconds())
	return verdict, stageError("classify", err)
}

func (s *AskService) retrieve(ctx context.Context, query string) (domain.RetrievalResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Retrieve)
	defer cancel()
	started := time.Now()
	result, err := s.retriever.Retrieve(ctx, query)
	s.metrics.RecordStageDuration("retrieve", time.Since(started).Seconds())
	return result, stageError("retrieve", err)
}

func (s *AskService) generate(ctx context.Context, question string, docs []domain.RetrievedDocument, attempt int, feedback string) (domain.CandidateAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Generate)
	defer cancel()
	started := time.Now()
	answer, err := s.generator.Generate(ctx, question, docs, attempt, feedback)
	s.metrics.RecordStageDuration("generate", time.Since(started).Seconds())
	return answer, stageError("generate", err)
}

func (s *AskService) verify(ctx context.Context, question string, answer domain.CandidateAnswer, retrieval domain.RetrievalResult) (domain.VerificationOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Verify)
	defer cancel()
	started := time.Now()
	outcome, err := s.verifier.Verify(ctx, question, answer, retrieval)
	s.metrics.RecordStageDuration("verify", time.Since(started).Seconds())
	return outcome, stageError("verify", err)
}

func (s *AskService) translate(ctx context.Context, text, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Translate)
	defer cancel()
	started := time.Now()
	translated, err := s.translator.Translate(ctx, text, language)
	s.metrics.RecordStageDuration("translate", time.Since(started).Seconds())
	return translated, stageError("translate", err)
}

func (s *AskService) fail(stage string, err error) domain.PipelineResult {
	kind := failureFor(err)
	s.log.Error("pipeline_stage_failed", "stage", stage, "failure_kind", string(kind), "error", err)
	return domain.Failed(kind)
}

func stageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrUpstreamTimeout) {
		return domain.WrapError(domain.ErrUpstreamTimeout, op, err)
	}
	return err
}

func failureFor(err error) domain.FailureKind {
	switch {
	case domain.IsKind(err, domain.ErrUpstreamTimeout):
		return domain.FailureUpstreamTimeout
	case domain.IsKind(err, domain.ErrUpstreamUnavailable):
		return domain.FailureUpstreamUnavailable
	case domain.IsKind(err, domain.ErrUpstreamMalformed):
		return domain.FailureMalformedResponse
	default:
		return domain.FailureInternal
	}
}
