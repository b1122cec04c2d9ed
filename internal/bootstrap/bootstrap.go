package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/greenorbit/climate-assistant/internal/config"
	"github.com/greenorbit/climate-assistant/internal/core/ports"
	"github.com/greenorbit/climate-assistant/internal/core/usecase"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/cache"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/cache/memory"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/cache/redis"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/chunking"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/extractor/pdf"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/llm/ollama"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/queue/nats"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/repository/postgres"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/rerank"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/resilience"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/storage/localfs"
	"github.com/greenorbit/climate-assistant/internal/infrastructure/vector/qdrant"
	"github.com/greenorbit/climate-assistant/internal/observability/logging"
	"github.com/greenorbit/climate-assistant/internal/observability/metrics"
)

// App wires infrastructure and use cases for both processes. The api
// binary serves Ask/Documents over HTTP; the worker binary consumes
// ingestion events and drives Process.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue ports.MessageQueue

	Ask       ports.QuestionAnswerer
	Documents *usecase.DocumentService
	Process   ports.DocumentProcessor

	APIMetrics    *metrics.APIMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	log := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(log)

	apiMetrics := metrics.NewAPIMetrics(service)
	workerMetrics := metrics.NewWorkerMetrics(service)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	resultStore, closeStore, err := newResultStore(ctx, cfg)
	if err != nil {
		queue.Close()
		return nil, err
	}
	resultCache := cache.New(resultStore, cfg.CacheTTL, apiMetrics)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	classifier := ollama.NewClassifier(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	grounding := ollama.NewVerifier(ollamaClient)
	translator := ollama.NewTranslator(ollamaClient)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	reranker := rerank.New(cfg.RerankURL, cfg.RerankModel, executor)

	retriever := usecase.NewHybridRetriever(embedder, index, reranker, usecase.RetrieverConfig{
		HybridCandidates: cfg.HybridCandidates,
		TopK:             cfg.RetrievalTopK,
		RerankTopN:       cfg.RerankTopN,
		RerankEnabled:    cfg.RerankEnabled,
		Fusion: usecase.FusionConfig{
			Strategy: usecase.FusionStrategy(cfg.FusionStrategy),
			RRFK:     cfg.FusionRRFK,
			Alpha:    cfg.FusionAlpha,
		},
	}, log)
	verifier := usecase.NewVerifier(grounding)

	ask := usecase.NewAskService(
		classifier,
		retriever,
		generator,
		verifier,
		translator,
		resultCache,
		usecase.AskTimeouts{
			Classify:  cfg.ClassifyTimeout,
			Retrieve:  cfg.RetrieveTimeout,
			Generate:  cfg.GenerateTimeout,
			Verify:    cfg.VerifyTimeout,
			Translate: cfg.TranslateTimeout,
		},
		apiMetrics,
		log,
	)

	documents := usecase.NewDocumentService(repo, storage, queue, log)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractors := map[string]ports.TextExtractor{
		"text/plain":      plaintext.NewExtractor(storage),
		"text/markdown":   plaintext.NewExtractor(storage),
		"application/pdf": pdf.NewExtractor(storage),
	}
	process := usecase.NewProcessService(repo, extractors, chunker, embedder, index, log)

	return &App{
		Config: cfg,
		Log:    log,

		Queue: queue,

		Ask:       ask,
		Documents: documents,
		Process:   process,

		APIMetrics:    apiMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			closeStore()
			_ = db.Close()
		},
	}, nil
}

func newResultStore(ctx context.Context, cfg config.Config) (ports.ResultStore, func(), error) {
	switch cfg.CacheBackend {
	case "", "memory":
		store := memory.New()
		store.StartSweeper(ctx, cfg.CacheSweepInterval)
		return store, func() {}, nil
	case "redis":
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := store.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
