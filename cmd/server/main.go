package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gaming-platform/internal/auth"
	"github.com/gaming-platform/internal/config"
	"github.com/gaming-platform/internal/handler"
	"github.com/gaming-platform/internal/kafka"
	"github.com/gaming-platform/internal/postgres"
	"github.com/gaming-platform/internal/redis"
	"github.com/gaming-platform/internal/service"
	"github.com/gaming-platform/internal/websocket"
	"github.com/gaming-platform/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if cfg.Auth.TokenKey == "" {
		logger.Error("auth.token_key must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	boards, err := redis.NewLeaderboard(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer boards.Close()

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	hasher := auth.NewArgon2Hasher()
	issuer := auth.NewTokenIssuer(cfg.Auth.TokenKey, cfg.Auth.TokenTTL)

	leaderboardService := service.NewLeaderboardService(boards, repo, &cfg.Leaderboard, logger)
	leaderboardService.SetHub(wsHub)

	userService := service.NewUserService(repo, repo, repo, repo, hasher, logger)
	userService.SetLeaderboard(leaderboardService)

	gameService := service.NewGameService(repo, logger)

	// Bring the boards up to date with the scores table before serving
	logger.Info("rebuilding leaderboards from database")
	if err := leaderboardService.Rebuild(ctx); err != nil {
		logger.Warn("failed to rebuild leaderboards on startup", "error", err)
	}

	rebuildWorker := worker.NewRebuildWorker(leaderboardService, &cfg.Sync, logger)
	if cfg.Sync.Enabled {
		if err := rebuildWorker.Start(ctx); err != nil {
			logger.Error("failed to start rebuild worker", "error", err)
			os.Exit(1)
		}
	}

	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, userService, logger)
		if err != nil {
			logger.Warn("failed to create kafka consumer, continuing without kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start kafka consumer, continuing without kafka", "error", err)
			kafkaConsumer = nil
		}
	}

	httpHandler := handler.NewHandler(userService, gameService, leaderboardService, issuer, wsHub, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop kafka consumer", "error", err)
		}
	}

	if err := rebuildWorker.Stop(); err != nil {
		logger.Error("failed to stop rebuild worker", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
