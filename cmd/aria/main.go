package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arialabs/aria/internal/api"
	"github.com/arialabs/aria/internal/budget"
	"github.com/arialabs/aria/internal/config"
	"github.com/arialabs/aria/internal/embedding"
	"github.com/arialabs/aria/internal/memory"
	"github.com/arialabs/aria/internal/orchestrator"
	"github.com/arialabs/aria/internal/provider"
	"github.com/arialabs/aria/internal/rag"
	"github.com/arialabs/aria/internal/store"
	"github.com/arialabs/aria/internal/tools"
	"github.com/arialabs/aria/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Aria...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/aria.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Provider router and capability bindings
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger), pc.Model)
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger), pc.Model)
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	for _, b := range cfg.Bindings {
		router.Bind(b.Capability, b.ProviderID, b.Model)
	}

	// Session and audit persistence. Without Postgres the server still runs,
	// holding sessions in memory only.
	var sessions store.SessionStore = store.NewMemorySessionStore()
	var pgStore *store.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := store.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, sessions held in memory", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			sessions = ps
		}
	}

	// Vector-backed memory and document retrieval
	var embedder embedding.Provider
	switch cfg.Embedding.Provider {
	case "local":
		embedder = embedding.NewLocalProvider(embedding.Config(cfg.Embedding))
	default:
		embedder = embedding.NewAPIProvider(embedding.Config(cfg.Embedding))
	}

	var memStore *memory.Store
	var ragStore *rag.Store
	vectors, vErr := vectorstore.NewClient(vectorstore.Config{
		Host: cfg.Database.Qdrant.Host,
		Port: cfg.Database.Qdrant.Port,
	})
	if vErr != nil {
		logger.Warn("Qdrant unavailable, running without memory and documents", zap.Error(vErr))
	} else {
		memStore = memory.NewStore(embedder, vectors, logger)
		if err := memStore.Init(context.Background()); err != nil {
			logger.Warn("memory collection init failed", zap.Error(err))
			memStore = nil
		}
		ragStore = rag.NewStore(embedder, vectors, logger)
		if err := ragStore.Init(context.Background()); err != nil {
			logger.Warn("document collection init failed", zap.Error(err))
			ragStore = nil
		}
	}

	// Daily request budget
	var guard *budget.Guard
	g, gErr := budget.NewGuard(cfg.Database.Redis.URL, cfg.Budget.MaxDailyRequests, logger)
	if gErr != nil {
		logger.Warn("Redis unavailable, running without request budget", zap.Error(gErr))
	} else {
		guard = g
	}

	toolClient := tools.NewClient(tools.Config{
		OpenWeatherKey: cfg.Tools.OpenWeatherKey,
		MapsKey:        cfg.Tools.MapsKey,
	}, logger)

	orch := orchestrator.New(router, orchestrator.Options{
		StepTimeout: time.Duration(cfg.Orchestrator.StepTimeoutSec) * time.Second,
		MaxReplans:  cfg.Orchestrator.MaxReplans,
	}, logger)

	handler := &api.Handler{
		AppName:  cfg.Server.AppName,
		Runner:   orch,
		Sessions: sessions,
		Tools:    toolClient,
		Logger:   logger,
	}
	if memStore != nil {
		handler.Memory = memStore
	}
	if ragStore != nil {
		handler.Documents = ragStore
	}
	if guard != nil {
		handler.Quota = guard
	}
	if pgStore != nil {
		handler.Feedback = pgStore
		handler.Turns = pgStore
	}

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Aria listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Aria...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	if guard != nil {
		guard.Close()
	}
	if vectors != nil {
		vectors.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
}
