// Package main is the entry point for the ThinkDeeper reflection server.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: pure business logic without external dependencies
// - Application: use case orchestration (Commands/Queries)
// - Infrastructure: store implementations, external APIs
// - Interface: HTTP endpoints
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	// Application layer
	"github.com/MiniPiccino/ThinkDeeperProd/internal/application/command"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/application/query"

	// Infrastructure layer
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/catalog"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/external/openai"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/persistence/fallback"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/persistence/file"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/persistence/postgres"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/MiniPiccino/ThinkDeeperProd/internal/interface/http"

	"github.com/MiniPiccino/ThinkDeeperProd/config"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/plan"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Fatal("failed to load config", logger.Err(err))
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.App.LogLevel),
		Output: os.Stdout,
	})

	log.Info("starting server",
		logger.String("app", cfg.App.Name),
		logger.String("environment", string(cfg.App.Environment)),
	)

	if err := os.MkdirAll(cfg.Content.DataDir, 0o755); err != nil {
		log.Fatal("failed to create data directory", logger.Err(err))
	}

	ctx := context.Background()

	// ─────────────────────────────────────────────────────────────────────────
	// Local stores
	// ─────────────────────────────────────────────────────────────────────────
	submissionLog, err := file.NewSubmissionLog(cfg.Content.SubmissionLogPath(), log)
	if err != nil {
		log.Fatal("failed to open submission log", logger.Err(err))
	}
	progressSnapshot, err := file.NewProgressSnapshot(cfg.Content.ProgressSnapshotPath(), log)
	if err != nil {
		log.Fatal("failed to open progress snapshot", logger.Err(err))
	}
	planStore, err := file.NewPlanStore(cfg.Content.PlanStorePath(), log)
	if err != nil {
		log.Fatal("failed to open plan store", logger.Err(err))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Remote mirror (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var remoteSubmissions fallback.RemoteSubmissionStore
	var remoteProgress fallback.RemoteProgressStore
	if cfg.Database.URL != "" {
		conn, err := postgres.NewConnection(ctx, cfg.Database.URL)
		if err != nil {
			log.Warn("remote database unavailable, starting local-only", logger.Err(err))
		} else {
			defer conn.Close()
			if err := postgres.Migrate(ctx, conn); err != nil {
				log.Warn("remote migration failed, starting local-only", logger.Err(err))
			} else {
				remoteSubmissions = postgres.NewSubmissionRepository(conn)
				remoteProgress = postgres.NewProgressRepository(conn)
				log.Info("remote database connected")
			}
		}
	}

	submissions := fallback.NewSubmissionLedger(remoteSubmissions, submissionLog, cfg.Database.QueryTimeout, log)
	progressLedger := fallback.NewProgressLedger(remoteProgress, progressSnapshot, cfg.Database.QueryTimeout, log)

	// ─────────────────────────────────────────────────────────────────────────
	// Plan cache (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var plans plan.Store = planStore
	if cfg.Redis.URL != "" {
		cache, err := redis.NewCache(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("redis unavailable, plan cache disabled", logger.Err(err))
		} else {
			defer cache.Close()
			plans = redis.NewPlanCache(planStore, cache, log)
			log.Info("redis plan cache connected")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Content catalog and evaluator
	// ─────────────────────────────────────────────────────────────────────────
	contentCatalog := catalog.New(cfg.Content.BankPath, log)

	evaluator := openai.NewClient(openai.ClientConfig{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
		Logger:  log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	submitHandler := command.NewSubmitAnswerHandler(contentCatalog, submissions, progressLedger, evaluator, log)
	dailyHandler := query.NewGetDailyContentHandler(contentCatalog, submissions, progressLedger, cfg.Content.TimerSeconds, log)
	overviewHandler := query.NewGetReflectionOverviewHandler(contentCatalog, submissions, plans, log)

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port

	server := httpserver.NewServer(serverConfig, httpserver.Dependencies{
		SubmitAnswerHandler:          submitHandler,
		GetDailyContentHandler:       dailyHandler,
		GetReflectionOverviewHandler: overviewHandler,
		Logger:                       log,
	})

	errCh := server.StartAsync()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("server stopped unexpectedly", logger.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", logger.Err(err))
	}

	log.Info("server stopped")
}
