package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coscribe/config"
	"coscribe/config/database"
	"coscribe/internal/document/repository"
	"coscribe/pkg/logger"
	"coscribe/router"
	"coscribe/socket"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	logger.Init()
	defer logger.Log.Sync()

	if envErr != nil {
		// Not an error in deployed environments; env vars come from the OS.
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Sugar.Fatalf("Failed to run migrations: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logger.Sugar.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		logger.Sugar.Info("Redis connected, rate limiting enabled")
	} else {
		logger.Sugar.Info("REDIS_ADDR not set, rate limiting disabled")
	}

	// The relay re-checks document access on every room join using the same
	// predicate as the HTTP layer.
	repo := repository.NewDocumentRepository(db)
	hub := socket.NewHub(repo)
	go hub.Run()

	handler := router.Setup(db, hub, router.Options{
		JWTSecret:     cfg.JWTSecret,
		WebhookSecret: cfg.WebhookSecret,
		InviteBaseURL: cfg.InviteBaseURL,
		Redis:         redisClient,
		RateLimitMax:  cfg.RateLimitMax,
		RateLimitWin:  cfg.RateLimitWin,
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	go func() {
		logger.Sugar.Infof("Backend listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Sugar.Info("Shutting down")
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Sugar.Errorf("Server shutdown: %v", err)
	}
}
