// Command server is the memory engine's composition root: it constructs
// every capability (DB pool, cache, embedding/LLM providers) exactly
// once and injects them into the engine constructors, then serves the
// HTTP tool surface. Grounded on the teacher's cmd/api/main.go shutdown
// shape (signal-triggered graceful http.Server.Shutdown).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	localcache "memory-engine/internal/cache"
	"memory-engine/internal/embedding"
	entityhubengine "memory-engine/internal/engine/entityhub"
	consolidationengine "memory-engine/internal/engine/consolidation"
	"memory-engine/internal/engine/processor"
	recallengine "memory-engine/internal/engine/recall"
	graphengine "memory-engine/internal/graph"
	infracache "memory-engine/internal/infrastructure/cache"
	"memory-engine/internal/infrastructure/observability"
	"memory-engine/internal/interfaces/http/rest"
	"memory-engine/internal/llm"
	"memory-engine/internal/repository/postgres"
	"memory-engine/internal/service"
	"memory-engine/pkg/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	pool, err := postgres.OpenPool(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MinConns:    int32(cfg.DBPoolMinSize),
		MaxConns:    int32(cfg.DBPoolMaxSize),
	})
	if err != nil {
		logger.Fatal("failed to open database pool", zap.Error(err))
	}
	defer pool.Close()

	memories := postgres.NewMemoryRepository(pool)
	edges := postgres.NewEdgeRepository(pool)
	entities := postgres.NewEntityHubRepository(pool)
	history := postgres.NewConsolidationHistoryRepository(pool)

	localMemCache := infracache.NewMemoryCache(10_000, 64<<20, logger)
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		redisClient = redis.NewClient(opts)
	} else {
		logger.Warn("failed to parse REDIS_URL, continuing without Redis tier", zap.Error(err))
	}
	store := localcache.NewTwoTierStore(localMemCache, redisClient, logger)

	llmProvider := buildLLMProvider(cfg, logger)
	embedder := embedding.NewCachedProvider(
		embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions, logger),
		store,
	)

	entityEngine := entityhubengine.New(entities, llmProvider, logger)
	proc := processor.New(memories, edges, entityEngine, llmProvider, embedder, logger)
	graph := graphengine.New(edges, memories, logger)
	recall := recallengine.New(memories, edges, entities, embedder, logger)
	consolidation := consolidationengine.New(edges, entityEngine, proc, llmProvider, embedder, history, logger)

	svc := service.New(proc, recall, consolidation, graph, entityEngine, memories, edges, entities, logger)

	collector := observability.NewCollector("memory_engine")
	router := rest.NewRouter(svc, logger, collector)

	addr := ":" + getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

func buildLLMProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	var inner llm.Provider
	switch cfg.LLMProvider {
	case "openai":
		inner = llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAILLMModel, logger)
	default:
		inner = llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)
	}
	return llm.NewResilientProvider(inner, cfg.LLMProvider, logger)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level.SetLevel(zap.InfoLevel)
	}
	return cfg.Build()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
