package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"bookkeeping-go/internal/accounts"
	"bookkeeping-go/internal/ai"
	"bookkeeping-go/internal/auth"
	"bookkeeping-go/internal/config"
	"bookkeeping-go/internal/database"
	httpserver "bookkeeping-go/internal/http"
	"bookkeeping-go/internal/ingest"
	"bookkeeping-go/internal/insights"
	"bookkeeping-go/internal/logger"
	"bookkeeping-go/internal/matching"
	"bookkeeping-go/internal/metrics"
	"bookkeeping-go/internal/store"
	"bookkeeping-go/internal/vectorstore"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if cfg.LogFormat == "console" {
		log = logger.NewConsole(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	st := store.New(db)

	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("create upload dir")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector("bookkeeping")
	if err := collector.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("register metrics")
	}

	completer, embedder, closeAI := setupAI(ctx, cfg, collector, log)
	defer closeAI()

	var vectors vectorstore.Store
	var searcher matching.VectorSearcher
	if embedder != nil {
		pg := vectorstore.NewPGStore(db, embedder, log)
		vectors, searcher = pg, pg
	}

	matcher, err := matching.New(st, matching.Options{
		Completer:         completer,
		Embedder:          embedder,
		Vectors:           searcher,
		TextThreshold:     cfg.TextThreshold,
		SemanticThreshold: cfg.SemanticThreshold,
		Metrics:           collector,
		Logger:            log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build matcher")
	}

	processor := ingest.NewProcessor(st, ingest.Options{
		UploadDir:    cfg.UploadDir,
		RejectFuture: cfg.RejectFutureDates,
		Metrics:      collector,
		Logger:       log,
	})

	r := httpserver.NewServer(httpserver.Deps{
		Config:    cfg,
		Repo:      st,
		Processor: processor,
		Matcher:   matcher,
		Importer:  accounts.NewImporter(st, vectors, log),
		Insights:  insights.NewService(st, completer, collector, log),
		Vectors:   vectors,
		Tokens:    auth.NewIssuer(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour),
		Gatherer:  registry,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// setupAI builds the optional AI capability. Both returned interfaces are nil
// when no provider is configured.
func setupAI(ctx context.Context, cfg *config.Config, m metrics.Collector, log zerolog.Logger) (ai.Completer, ai.Embedder, func()) {
	noop := func() {}

	provider, err := ai.NewProvider(ctx, cfg)
	if errors.Is(err, ai.ErrNotConfigured) {
		log.Warn().Msg("no AI provider configured, suggestions use basic matching only")
		return nil, nil, noop
	}
	if err != nil {
		log.Fatal().Err(err).Msg("build ai provider")
	}

	resilient := ai.NewResilient(provider, ai.ResilientConfig{
		Timeout:     cfg.RequestTimeout(),
		MaxFailures: uint32(cfg.BreakerFailures),
		Cooldown:    time.Duration(cfg.BreakerCooldownSec) * time.Second,
	}, m, log)
	log.Info().Str("provider", provider.Name()).Msg("ai provider ready")

	if cfg.RedisAddr == "" {
		return resilient, resilient, noop
	}
	cache, err := ai.NewRedisCache(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, embeddings are not cached")
		return resilient, resilient, noop
	}
	namespace := cfg.OpenAIEmbedModel
	if provider.Name() == "gemini" {
		namespace = cfg.GeminiEmbedModel
	}
	embedder := ai.NewCachedEmbedder(resilient, cache, namespace, cfg.EmbedCacheTTL(), m, log)
	return resilient, embedder, cache.Close
}
