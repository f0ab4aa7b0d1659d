package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sparshcare/wellness-platform/internal/appointments"
	"github.com/sparshcare/wellness-platform/internal/booking"
	"github.com/sparshcare/wellness-platform/internal/config"
	"github.com/sparshcare/wellness-platform/internal/notify"
	"github.com/sparshcare/wellness-platform/internal/observability/metrics"
	"github.com/sparshcare/wellness-platform/internal/tasks"
	"github.com/sparshcare/wellness-platform/internal/transcript"
	"github.com/sparshcare/wellness-platform/internal/triage"
	"github.com/sparshcare/wellness-platform/pkg/logging"
	"github.com/sparshcare/wellness-platform/pkg/securetext"
)

// The standalone worker consumes triage cycles from the Redis queue. It runs
// next to the API when USE_MEMORY_QUEUE is off. Multiple replicas can drain
// one queue: they share a Redis session lock so cycles for one (student,
// session) stay serialized across processes.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).Component("triage-worker")
	logger.Info("starting triage worker", "env", cfg.Env, "workers", cfg.WorkerCount)

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

	slotRepo := appointments.NewRepository(pool)
	taskRepo := tasks.NewRepository(pool)
	transcripts := transcript.NewStore(redisClient, codec, cfg.TranscriptTTL, logger.Component("transcript"))
	hub := notify.NewHub(logger.Component("hub"))
	notifier := notify.NewService(transcripts, hub, logger.Component("notify"))

	classifier := triage.NewClassifier(
		cfg.EmotionModelURL,
		cfg.EmotionModelToken,
		&http.Client{Timeout: cfg.EmotionModelTimeout},
		logger.Component("classifier"),
	)

	var reasoner triage.DecisionProvider
	if cfg.ReasonerAPIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.ReasonerAPIKey)
		if cfg.ReasonerBaseURL != "" {
			clientCfg.BaseURL = cfg.ReasonerBaseURL
		}
		reasoner = triage.NewReasoner(
			openai.NewClientWithConfig(clientCfg),
			cfg.ReasonerModel,
			cfg.ReasonerTimeout,
			logger.Component("reasoner"),
		)
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
		metrics.NewTriageMetrics(nil),
		logger.Component("pipeline"),
	)

	queue := triage.NewRedisQueue(redisClient, "")
	worker := triage.NewWorker(pipeline, queue, logger,
		triage.WithWorkerCount(cfg.WorkerCount),
		triage.WithReceiveWaitSeconds(5),
		triage.WithSessionLocker(triage.NewRedisSessionLock(redisClient)),
	)
	worker.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")
	worker.Wait()
	logger.Info("stopped")
}
