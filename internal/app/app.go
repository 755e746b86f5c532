// Package app assembles the re-ranking service from configuration. The server and the
// command line tool share it so both rank with the same stack.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/knoguchi/comparank/internal/analysis"
	"github.com/knoguchi/comparank/internal/axiom"
	"github.com/knoguchi/comparank/internal/config"
	"github.com/knoguchi/comparank/internal/embedder"
	"github.com/knoguchi/comparank/internal/index"
	"github.com/knoguchi/comparank/internal/ingestion"
	"github.com/knoguchi/comparank/internal/llm"
	"github.com/knoguchi/comparank/internal/memory"
	"github.com/knoguchi/comparank/internal/repository"
	"github.com/knoguchi/comparank/internal/repository/postgres"
	"github.com/knoguchi/comparank/internal/rerankctx"
	"github.com/knoguchi/comparank/internal/reranker"
	"github.com/knoguchi/comparank/internal/search"
	"github.com/knoguchi/comparank/internal/server"
	"github.com/knoguchi/comparank/internal/service"
	"github.com/knoguchi/comparank/internal/tagging"
	"github.com/knoguchi/comparank/internal/vectorstore"
)

const tagHTTPTimeout = 60 * time.Second

// App holds the assembled components. Stores that are not configured are nil.
type App struct {
	DB       *postgres.DB
	Passages repository.PassageRepository
	Scores   repository.ScoreRepository
	Vectors  *vectorstore.QdrantStore

	Analyzer *analysis.Analyzer
	Index    *index.Index
	Embedder *embedder.OllamaEmbedder
	Loader   *ingestion.Loader
	Runs     *memory.Store
	Pipeline *service.Pipeline

	loaderConfig ingestion.LoaderConfig
	logger       *slog.Logger
}

// New connects to the configured stores, loads the passage index and builds the pipeline.
// An empty DATABASE_URL keeps passages and scores in memory only.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		if a.DB, err = postgres.New(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err = a.DB.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		a.Passages = postgres.NewPassageRepo(a.DB)
		a.Scores = postgres.NewScoreRepo(a.DB)
		logger.Info("connected to PostgreSQL")
	} else {
		logger.Warn("DATABASE_URL is empty, passages and scores are not persisted")
	}

	a.Embedder = embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})

	hybrid := cfg.SearchBackend == config.SearchHybrid
	if cfg.SearchBackend != config.SearchLexical {
		if a.Vectors, err = vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection); err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		if err = a.Vectors.EnsureCollection(ctx, a.Embedder.Dimension(), hybrid); err != nil {
			return nil, fmt.Errorf("failed to ensure collection: %w", err)
		}
		logger.Info("connected to Qdrant", "collection", cfg.QdrantCollection, "hybrid", hybrid)
	}

	a.Analyzer = analysis.NewAnalyzer()
	a.Index = index.New(a.Analyzer)

	loaderCfg := ingestion.LoaderConfig{
		Passages: a.Passages,
		Index:    a.Index,
		Splitter: ingestion.NewSplitter(ingestion.SplitterConfig{MaxWords: cfg.SplitMaxWords}),
		Logger:   logger,
	}
	if a.Vectors != nil {
		loaderCfg.Embedder = a.Embedder
		loaderCfg.Vectors = a.Vectors
		if hybrid {
			loaderCfg.Analyzer = a.Analyzer
		}
	}
	a.loaderConfig = loaderCfg
	a.Loader = ingestion.NewLoader(loaderCfg)
	if _, err = a.Loader.RebuildIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	a.Pipeline, err = a.buildPipeline(cfg, hybrid)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) buildPipeline(cfg *config.Config, hybrid bool) (*service.Pipeline, error) {
	pipelineCfg, err := cfg.Pipeline(a.logger)
	if err != nil {
		return nil, err
	}
	factory, err := reranker.NewFactory(pipelineCfg)
	if err != nil {
		return nil, fmt.Errorf("invalid re-ranking pipeline: %w", err)
	}
	rc, err := rerankctx.New(a.Index, cfg.TermCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create reranking context: %w", err)
	}
	tagger, err := NewTagger(cfg, a.Scores, a.logger)
	if err != nil {
		return nil, err
	}

	var searcher search.Searcher
	if a.Vectors != nil {
		dense := search.DenseConfig{Embedder: a.Embedder, Store: a.Vectors, Passages: a.Passages}
		if hybrid {
			dense.Analyzer = a.Analyzer
		}
		searcher = search.NewDense(dense)
	} else {
		m, err := index.ParseRetrievalModel(cfg.RetrievalModel)
		if err != nil {
			return nil, err
		}
		searcher = search.NewLexical(a.Index, m)
	}

	a.Runs = memory.NewStore(cfg.MaxRuns, cfg.RunTTL)
	return service.New(service.Config{
		Factory:     factory,
		Context:     rc,
		Searcher:    searcher,
		Tagger:      tagger,
		Similarity:  axiom.NewEmbeddingSimilarity(a.Embedder),
		Runs:        a.Runs,
		NumHits:     cfg.NumHits,
		RunTag:      cfg.RunTag,
		Concurrency: cfg.TagConcurrency,
		Logger:      a.logger,
	})
}

// NewTagger builds the tagger for the configured backends. It returns nil when every
// backend is disabled. Sentence scores are cached in memory and, when scores is set, in
// the score repository.
func NewTagger(cfg *config.Config, scores repository.ScoreRepository, logger *slog.Logger) (*tagging.Tagger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: tagHTTPTimeout}
	limiter := func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(cfg.TagRateLimit), cfg.TagBurst)
	}
	tcfg := tagging.Config{Concurrency: cfg.TagConcurrency, Logger: logger}

	if cfg.ArgumentBackend == config.BackendTarger {
		targer, err := tagging.NewTargerClient(tagging.TargerConfig{
			BaseURL:    cfg.TargerURL,
			Models:     cfg.TargerModels,
			HTTPClient: httpClient,
			Limiter:    limiter(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create TARGER client: %w", err)
		}
		tcfg.Arguments = targer
	}

	var llmClient llm.LLM
	if cfg.QualityBackend == config.BackendLLM || cfg.StanceBackend == config.BackendLLM {
		llmClient = llm.NewOllamaClient(llm.WithBaseURL(cfg.OllamaURL), llm.WithModel(cfg.OllamaLLMModel))
	}

	newScorer := func(backend string, kind repository.ScoreKind) (tagging.SentenceScorer, error) {
		var scorer tagging.SentenceScorer
		switch backend {
		case config.BackendDebater:
			debater := tagging.DebaterConfig{APIKey: cfg.DebaterAPIKey, HTTPClient: httpClient, Limiter: limiter()}
			var err error
			if kind == repository.ScoreQuality {
				debater.URL = cfg.DebaterQualityURL
				scorer, err = tagging.NewDebaterQualityScorer(debater)
			} else {
				debater.URL = cfg.DebaterProConURL
				scorer, err = tagging.NewDebaterStanceScorer(debater)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to create %s scorer: %w", kind, err)
			}
		case config.BackendLLM:
			task := tagging.LLMQuality
			if kind == repository.ScoreStance {
				task = tagging.LLMStance
			}
			scorer = tagging.NewLLMScorer(llmClient, task, tagging.WithModel(cfg.OllamaLLMModel))
		default:
			return nil, nil
		}
		cached, err := tagging.NewCachedScorer(tagging.CachedScorerConfig{
			Kind:      kind,
			Scorer:    scorer,
			Store:     scores,
			CacheSize: cfg.ScoreCacheSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return cached, nil
	}

	quality, err := newScorer(cfg.QualityBackend, repository.ScoreQuality)
	if err != nil {
		return nil, err
	}
	if quality != nil {
		tcfg.Quality = quality
	}

	stance, err := newScorer(cfg.StanceBackend, repository.ScoreStance)
	if err != nil {
		return nil, err
	}
	if stance != nil {
		strategy, err := tagging.ParseClaimStrategy(cfg.StanceClaims)
		if err != nil {
			return nil, err
		}
		tcfg.Stance = tagging.NewStanceTagger(stance, strategy, cfg.StanceThreshold)
	}

	if tcfg.Arguments == nil && tcfg.Quality == nil && tcfg.Stance == nil {
		return nil, nil
	}
	logger.Info("tagging enabled",
		"arguments", cfg.ArgumentBackend,
		"quality", cfg.QualityBackend,
		"stance", cfg.StanceBackend,
	)
	return tagging.New(tcfg), nil
}

// NewLoader returns a loader writing to the app's stores that adds fields to every passage.
func (a *App) NewLoader(fields map[string]string) *ingestion.Loader {
	cfg := a.loaderConfig
	cfg.DefaultFields = fields
	return ingestion.NewLoader(cfg)
}

// Checks returns the readiness checks of the connected stores.
func (a *App) Checks() map[string]server.ReadinessCheck {
	checks := make(map[string]server.ReadinessCheck)
	if a.DB != nil {
		checks["postgres"] = a.DB.Ping
	}
	if a.Vectors != nil {
		checks["qdrant"] = a.Vectors.HealthCheck
	}
	return checks
}

// Close releases the connections held by the app.
func (a *App) Close() {
	if a.Runs != nil {
		a.Runs.Close()
	}
	if a.Vectors != nil {
		if err := a.Vectors.Close(); err != nil {
			a.logger.Warn("error closing Qdrant connection", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
