package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/attunehealth/attune/internal/api/router"
	appconfig "github.com/attunehealth/attune/internal/config"
	"github.com/attunehealth/attune/internal/conversation"
	"github.com/attunehealth/attune/internal/http/handlers"
	"github.com/attunehealth/attune/internal/observability/metrics"
	"github.com/attunehealth/attune/internal/sentiment"
	"github.com/attunehealth/attune/internal/session"
	"github.com/attunehealth/attune/internal/vision"
	"github.com/attunehealth/attune/internal/webchat"
	"github.com/attunehealth/attune/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting attune API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pgStore := session.NewPostgresStore(pool)
	var store conversation.Store = pgStore
	if cfg.RedisAddr != "" {
		redisOptions := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOptions)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not available, snapshot caching disabled", "error", err)
		} else {
			store = session.NewCachedStore(pgStore, redisClient, logger)
		}
	}

	lexicon, err := sentiment.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		logger.Error("failed to load lexicon", "error", err)
		os.Exit(1)
	}
	templates, err := conversation.LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	generator := buildGenerator(ctx, cfg, logger)

	m := metrics.NewConversationMetrics(prometheus.DefaultRegisterer)

	classifier := sentiment.NewClassifier(lexicon, logger)
	fuser := conversation.NewFuser(cfg.MismatchThreshold, cfg.TrendWindow)
	responder := conversation.NewResponder(generator, templates, cfg.GeneratorTimeout, cfg.MismatchThreshold, cfg.HistoryWindow, m, logger)
	service := conversation.NewService(classifier, fuser, responder, store, m, logger)

	var detector vision.Detector
	if cfg.VisionModelURL != "" {
		remote, err := vision.NewRemoteDetector(cfg.VisionModelURL, cfg.VisionModelTimeout)
		if err != nil {
			logger.Error("invalid vision model URL", "error", err)
			os.Exit(1)
		}
		detector = vision.NewFallbackDetector(remote, logger)
	} else {
		logger.Warn("no vision model configured, using degraded estimator")
		detector = vision.NewFallbackDetector(nil, logger)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        handlers.NewChatHandler(service, logger),
		EmotionHandler:     handlers.NewEmotionHandler(service, detector, logger),
		SessionHandler:     handlers.NewSessionHandler(store, pgStore, logger),
		WebchatHandler:     webchat.NewHandler(service, store, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildGenerator selects the reply generator backend. With provider "none"
// the engine runs entirely on local templates.
func buildGenerator(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) conversation.Generator {
	switch cfg.GeneratorProvider {
	case "openai":
		gen, err := conversation.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			logger.Error("failed to init openai generator", "error", err)
			os.Exit(1)
		}
		logger.Info("reply generator configured", "provider", "openai", "model", cfg.OpenAIModel)
		return gen
	case "gemini":
		gen, err := conversation.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to init gemini generator", "error", err)
			os.Exit(1)
		}
		logger.Info("reply generator configured", "provider", "gemini", "model", cfg.GeminiModel)
		return gen
	case "none", "":
		logger.Info("reply generator disabled, using templates only")
		return nil
	default:
		logger.Error("unknown generator provider", "provider", cfg.GeneratorProvider)
		os.Exit(1)
		return nil
	}
}
