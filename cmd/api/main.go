package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sparshcare/wellness-platform/internal/api/handlers"
	"github.com/sparshcare/wellness-platform/internal/api/router"
	"github.com/sparshcare/wellness-platform/internal/appointments"
	"github.com/sparshcare/wellness-platform/internal/booking"
	"github.com/sparshcare/wellness-platform/internal/chat"
	"github.com/sparshcare/wellness-platform/internal/config"
	"github.com/sparshcare/wellness-platform/internal/notify"
	"github.com/sparshcare/wellness-platform/internal/observability/metrics"
	"github.com/sparshcare/wellness-platform/internal/tasks"
	"github.com/sparshcare/wellness-platform/internal/transcript"
	"github.com/sparshcare/wellness-platform/internal/triage"
	"github.com/sparshcare/wellness-platform/pkg/logging"
	"github.com/sparshcare/wellness-platform/pkg/securetext"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting wellness api", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err)
		os.Exit(1)
	}

	if cfg.TranscriptSecret == "" {
		logger.Error("TRANSCRIPT_SECRET is required")
		os.Exit(1)
	}
	codec, err := securetext.NewCodec(cfg.TranscriptSecret)
	if err != nil {
		logger.Error("failed to initialize transcript codec", "error", err)
		os.Exit(1)
	}

	// Persistence and messaging.
	slotRepo := appointments.NewRepository(pool)
	taskRepo := tasks.NewRepository(pool)
	transcripts := transcript.NewStore(redisClient, codec, cfg.TranscriptTTL, logger.Component("transcript"))
	hub := notify.NewHub(logger.Component("hub"))
	notifier := notify.NewService(transcripts, hub, logger.Component("notify"))

	// Triage pipeline.
	triageMetrics := metrics.NewTriageMetrics(nil)
	classifier := triage.NewClassifier(
		cfg.EmotionModelURL,
		cfg.EmotionModelToken,
		&http.Client{Timeout: cfg.EmotionModelTimeout},
		logger.Component("classifier"),
	)

	var reasoner triage.DecisionProvider
	var replyClient *openai.Client
	if cfg.ReasonerAPIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.ReasonerAPIKey)
		if cfg.ReasonerBaseURL != "" {
			clientCfg.BaseURL = cfg.ReasonerBaseURL
		}
		replyClient = openai.NewClientWithConfig(clientCfg)
		reasoner = triage.NewReasoner(replyClient, cfg.ReasonerModel, cfg.ReasonerTimeout, logger.Component("reasoner"))
	} else {
		logger.Warn("no reasoner api key configured; every cycle will use the degraded fallback")
	}

	bookingAgent := booking.NewAgent(slotRepo, logger.Component("booking"))
	pipeline := triage.NewPipeline(
		classifier,
		reasoner,
		triage.NewDegradedFallback(slotRepo, logger.Component("fallback")),
		triage.NewExecutor(taskRepo, slotRepo, bookingAgent, logger.Component("executor")),
		notifier,
		triageMetrics,
		logger.Component("pipeline"),
	)

	var publisher *triage.Publisher
	var worker *triage.Worker
	if cfg.UseMemoryQueue {
		memQueue := triage.NewMemoryQueue(256)
		publisher = triage.NewPublisher(memQueue, logger.Component("publisher"))
		worker = triage.NewWorker(pipeline, memQueue, logger.Component("worker"),
			triage.WithWorkerCount(cfg.WorkerCount))
	} else {
		redisQueue := triage.NewRedisQueue(redisClient, "")
		publisher = triage.NewPublisher(redisQueue, logger.Component("publisher"))
	}
	if worker != nil {
		worker.Start(ctx)
	}

	// Reply engine and HTTP surface.
	var engineClient chat.ChatCompleter
	if replyClient != nil {
		engineClient = replyClient
	}
	engine := chat.NewReplyEngine(
		engineClient,
		cfg.ReasonerModel,
		cfg.ReasonerTimeout,
		transcripts,
		publisher,
		notifier,
		logger.Component("chat"),
	)

	handler := router.New(router.Deps{
		Chat:  handlers.NewChatHandler(engine, transcripts, hub, logger.Component("http")),
		Slots: handlers.NewSlotsHandler(slotRepo, logger.Component("http")),
		Tasks: handlers.NewTasksHandler(taskRepo, logger.Component("http")),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
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
		logger.Error("http shutdown failed", "error", err)
	}
	if worker != nil {
		worker.Wait()
	}
	logger.Info("stopped")
}
