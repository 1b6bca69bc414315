package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/llm-relay/cmd"
	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/dispatch"
	"github.com/nulzo/llm-relay/internal/health"
	"github.com/nulzo/llm-relay/internal/ledger"
	"github.com/nulzo/llm-relay/internal/platform/logger"
	"github.com/nulzo/llm-relay/internal/platform/otel"
	"github.com/nulzo/llm-relay/internal/registry"
	"github.com/nulzo/llm-relay/internal/selector"
	"github.com/nulzo/llm-relay/internal/server"
	"github.com/nulzo/llm-relay/internal/store/cache"
	cachememory "github.com/nulzo/llm-relay/internal/store/cache/memory"
	cacheredis "github.com/nulzo/llm-relay/internal/store/cache/redis"
	"github.com/nulzo/llm-relay/internal/store/sqlite"

	// Import adapters to trigger init() registration.
	_ "github.com/nulzo/llm-relay/internal/llm/anthropic"
	_ "github.com/nulzo/llm-relay/internal/llm/groq"
	_ "github.com/nulzo/llm-relay/internal/llm/ollama"
	_ "github.com/nulzo/llm-relay/internal/llm/openai"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	go cmd.CheckForUpdates()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer("llm-relay", log, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer repo.Close()

	var cacheSvc cache.CacheService
	if cfg.Redis.Enabled {
		redisCache, err := cacheredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisCache.Close()
		cacheSvc = redisCache
		log.Info("Using redis cache", zap.String("addr", cfg.Redis.Addr))
	} else {
		cacheSvc = cachememory.New()
	}

	reg, err := registry.New(cfg.Providers, log)
	if err != nil {
		log.Fatal("Failed to build provider registry", zap.Error(err))
	}

	monitor := health.NewMonitor(reg, cfg.Health, log)
	monitor.Start(ctx)

	ingestor := ledger.NewIngestor(log, repo)
	ingestor.Start(ctx)
	defer ingestor.Stop()

	usage := ledger.NewService(repo, cacheSvc, log)

	sel := selector.New(reg, monitor)
	engine := dispatch.NewEngine(sel, reg, monitor, ingestor, cfg.Dispatch, log)

	srv := server.New(cfg, log, engine, reg, monitor, usage)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting llm-relay",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Env),
			zap.Int("providers", len(cfg.Providers)),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
