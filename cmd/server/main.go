// The server binary exposes the matching API: resume upload, ranking, and
// single-pair scoring. Indexing itself happens in the indexer binary, which
// consumes the upload queue this server publishes to.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/api/router"
	"resume-match-go/internal/config"
	"resume-match-go/internal/embedding"
	"resume-match-go/internal/extract"
	"resume-match-go/internal/insight"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/pipeline"
	"resume-match-go/internal/scoring"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Logger)
	hlog.SetLogger(hertzadapter.From(logger.Logger))

	ctx := context.Background()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage backends")
	}
	defer store.Close()

	embedder, err := embedding.NewHTTPEmbedder(cfg.Embedding,
		embedding.WithRateLimit(cfg.Embedding.RateLimitQPM, 0))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedding client")
	}

	scorer := scoring.NewScorer(scoring.Weights{
		Semantic:   cfg.Scoring.SemanticWeight,
		Keyword:    cfg.Scoring.KeywordWeight,
		Title:      cfg.Scoring.TitleWeight,
		Experience: cfg.Scoring.ExperienceWeight,
	})
	ranker := pipeline.NewRanker(
		extract.NewExtractor(),
		embedder,
		store.Qdrant,
		scorer,
		store.Redis,
		cfg.Retrieval.ScoreWorkers,
	)

	var insightGen *insight.Generator
	if cfg.Insight.Enabled {
		llm, err := insight.NewOpenAIChatModel(cfg.Insight)
		if err != nil {
			logger.Warn().Err(err).Msg("insight model unavailable, narratives disabled")
		} else {
			insightGen = insight.NewGenerator(llm)
			logger.Info().Str("model", cfg.Insight.Model).Msg("insight narratives enabled")
		}
	}

	uploadHandler := handler.NewUploadHandler(cfg, store)
	matchHandler := handler.NewMatchHandler(ranker, store, insightGen)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, cfg, uploadHandler, matchHandler)

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("HTTP server starting")
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
