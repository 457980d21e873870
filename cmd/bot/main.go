package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"

	"github.com/q950417/smart-diet-bot-clean/internal/advice"
	"github.com/q950417/smart-diet-bot-clean/internal/bot"
	"github.com/q950417/smart-diet-bot-clean/internal/cache"
	"github.com/q950417/smart-diet-bot-clean/internal/config"
	"github.com/q950417/smart-diet-bot-clean/internal/metrics"
	"github.com/q950417/smart-diet-bot-clean/internal/nutrition"
	"github.com/q950417/smart-diet-bot-clean/internal/spoonacular"
	"github.com/q950417/smart-diet-bot-clean/internal/vision"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	m := metrics.New(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	store := nutrition.OpenStore(cfg.CacheDBPath, logger)
	defer store.Close()

	var redisCache *cache.Redis
	if cfg.RedisAddr != "" {
		redisCache = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
		}, logger)
		defer redisCache.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, continuing without it", "error", err)
			redisCache = nil
		}
		cancel()
	}

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)

	estimator := spoonacular.New(spoonacular.Config{
		BaseURL: cfg.SpoonacularBaseURL,
		APIKey:  cfg.SpoonacularAPIKey,
		Timeout: cfg.SpoonacularTimeout,
	}, logger, m)
	labeler := vision.New(openaiClient, cfg.VisionModel, logger, m)
	advisor := advice.New(openaiClient, cfg.ChatModel, logger, m)

	resolver := nutrition.NewResolver(store, estimator, labeler, redisCache, m, logger)

	lineAPI, err := messaging_api.NewMessagingApiAPI(cfg.LineChannelToken)
	if err != nil {
		logger.Error("create line messaging client failed", "error", err)
		os.Exit(1)
	}
	lineBlob, err := messaging_api.NewMessagingApiBlobAPI(cfg.LineChannelToken)
	if err != nil {
		logger.Error("create line blob client failed", "error", err)
		os.Exit(1)
	}

	handler := bot.NewHandler(bot.Config{
		ChannelSecret: cfg.LineChannelSecret,
		EventTimeout:  cfg.EventTimeout,
	}, lineAPI, lineBlob, resolver, advisor, redisCache, m, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /callback", handler.Callback)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.HTTPListenAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
