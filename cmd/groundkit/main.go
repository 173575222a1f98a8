package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/groundkit/groundkit/internal/chunker"
	"github.com/groundkit/groundkit/internal/config"
	dbRedis "github.com/groundkit/groundkit/internal/db/redis"
	"github.com/groundkit/groundkit/internal/domain"
	"github.com/groundkit/groundkit/internal/extract"
	logpkg "github.com/groundkit/groundkit/internal/logger"
	"github.com/groundkit/groundkit/internal/metrics"
	chunkrepo "github.com/groundkit/groundkit/internal/repository/chunk"
	"github.com/groundkit/groundkit/internal/repository/embcache"
	"github.com/groundkit/groundkit/internal/repository/querycache"
	"github.com/groundkit/groundkit/internal/repository/querylog"
	retrievalrepo "github.com/groundkit/groundkit/internal/repository/retrieval"
	"github.com/groundkit/groundkit/internal/repository/retrievalcache"
	sourcerepo "github.com/groundkit/groundkit/internal/repository/source"
	"github.com/groundkit/groundkit/internal/transport/httpapi"
	openaiTransport "github.com/groundkit/groundkit/internal/transport/openai"
	answeruc "github.com/groundkit/groundkit/internal/usecase/answer"
	embeddinguc "github.com/groundkit/groundkit/internal/usecase/embedding"
	healthuc "github.com/groundkit/groundkit/internal/usecase/health"
	ingestuc "github.com/groundkit/groundkit/internal/usecase/ingest"
	lifecycleuc "github.com/groundkit/groundkit/internal/usecase/lifecycle"
	retrieveuc "github.com/groundkit/groundkit/internal/usecase/retrieve"
	"github.com/groundkit/groundkit/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting groundkit API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.Register()

	// Repositories
	sources := sourcerepo.New(store)
	chunks := chunkrepo.New(store)
	retrieval := retrievalrepo.New(store)
	if err := retrieval.EnsureIndex(ctx, cfg.Embedding.Dimensions, retrievalrepo.HNSWConfig{
		M:           cfg.Storage.HNSWM,
		EFConstruct: cfg.Storage.HNSWEFConstruct,
	}); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}

	// Embedding pipeline: provider -> cache-first batch embedder.
	provider := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	vecCache := embcache.New(store, cfg.EmbeddingCacheTTL())
	embedder := embeddinguc.NewBatchEmbedder(provider, vecCache, embeddinguc.Options{
		Dimensions:  cfg.Embedding.Dimensions,
		SubBatch:    cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		CallTimeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		RatePerSec:  cfg.Embedding.RatePerSec,
	}, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  cfg.Generation.APIKey,
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		Logger:  logger,
	})

	// Ingestion pipeline
	tracker := lifecycleuc.New(sources, logger)
	chunkSvc := chunker.New(
		chunker.WithSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
		chunker.WithWindowLimit(cfg.Chunking.WindowLimit),
	)
	fetcher := extract.NewFetcher(
		time.Duration(cfg.Ingest.FetchTimeoutSec)*time.Second,
		cfg.Ingest.MaxContentBytes,
	)
	ingestSvc := ingestuc.New(
		sources, chunks, tracker,
		extract.New(), fetcher, chunkSvc, embedder,
		ingestuc.Options{
			EmbedBatchSize:       cfg.Embedding.BatchSize,
			FailureRateThreshold: cfg.Ingest.FailureRateThreshold,
		},
		logger,
	)
	runner := ingestuc.NewRunner(ingestSvc, cfg.Ingest.Workers,
		time.Duration(cfg.Ingest.RefreshSweepMin)*time.Minute, logger)
	runner.Start()
	defer runner.Stop()

	// Query pipeline
	retCache := retrievalcache.New(store, cfg.RetrievalCacheTTL())
	retrieveSvc := retrieveuc.New(retrieval, embedder, retCache, tierSettings(&cfg), retrieveuc.Weights{
		Vector:  cfg.Retrieval.VectorWeight,
		Lexical: cfg.Retrieval.LexicalWeight,
	}, logger)
	ansCache := querycache.New(store, cfg.ResponseCacheTTL())
	qlog := querylog.New(store, time.Duration(cfg.Cache.QueryLogTTLDays)*24*time.Hour)
	answerSvc := answeruc.New(retrieveSvc, generator, ansCache, qlog, answeruc.Options{
		GenTimeout: time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		MaxRetries: cfg.Generation.MaxRetries,
		MaxTokens:  tierTokenBudgets(&cfg),
	}, logger)

	healthSvc := healthuc.New(store, provider, generator)

	server := httpapi.NewServer(ingestSvc, sources, answerSvc, runner, healthSvc, qlog, cfg.Ingest.UploadDir, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)
	r.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	runner.Stop()

	logger.Info("Server stopped gracefully")
}

func tierSettings(cfg *config.Config) map[domain.Tier]retrieveuc.TierSettings {
	toSettings := func(t config.TierConfig) retrieveuc.TierSettings {
		return retrieveuc.TierSettings{
			Candidates:    t.Candidates,
			MinSimilarity: t.MinSimilarity,
			FinalResults:  t.FinalResults,
		}
	}
	return map[domain.Tier]retrieveuc.TierSettings{
		domain.TierBasic:         toSettings(cfg.Tiers.Basic),
		domain.TierEnhanced:      toSettings(cfg.Tiers.Enhanced),
		domain.TierAdvanced:      toSettings(cfg.Tiers.Advanced),
		domain.TierComprehensive: toSettings(cfg.Tiers.Comprehensive),
	}
}

func tierTokenBudgets(cfg *config.Config) map[domain.Tier]int {
	return map[domain.Tier]int{
		domain.TierBasic:         cfg.Tiers.Basic.MaxTokens,
		domain.TierEnhanced:      cfg.Tiers.Enhanced.MaxTokens,
		domain.TierAdvanced:      cfg.Tiers.Advanced.MaxTokens,
		domain.TierComprehensive: cfg.Tiers.Comprehensive.MaxTokens,
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
