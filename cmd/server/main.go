// cmd/server/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"

	"github.com/brightline/outreach-backend/internal/ai"
	"github.com/brightline/outreach-backend/internal/cache"
	"github.com/brightline/outreach-backend/internal/config"
	"github.com/brightline/outreach-backend/internal/controller"
	"github.com/brightline/outreach-backend/internal/db"
	"github.com/brightline/outreach-backend/internal/queue"
	"github.com/brightline/outreach-backend/internal/report"
	"github.com/brightline/outreach-backend/internal/repository"
	"github.com/brightline/outreach-backend/internal/service"
	slackclient "github.com/brightline/outreach-backend/internal/slack"
	"github.com/brightline/outreach-backend/internal/template"
	"github.com/brightline/outreach-backend/pkg/logger"
	"github.com/brightline/outreach-backend/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}

	logr := logger.New(cfg.LogLevel, cfg.Environment)
	logr.Info("starting server", slog.String("app", cfg.AppName))

	if err := report.Init(cfg.SentryDSN, cfg.Environment, cfg.AppName); err != nil {
		logr.Warn("sentry init failed", slog.Any("error", err))
	}
	defer report.Flush()

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logr.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()
	if err := db.Migrate(conn); err != nil {
		logr.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}

	var pauseCache *cache.PauseCache
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		pauseCache = cache.NewPauseCache(rdb)
		defer rdb.Close()
	}

	slackClient := slackclient.NewClient(cfg.SlackBotToken)
	generator, err := ai.NewClient(cfg.OpenAIAPIKey,
		ai.WithBaseURL(cfg.OpenAIBaseURL),
		ai.WithModel(cfg.OpenAIModel),
		ai.WithHTTPClient(&http.Client{Timeout: cfg.ProviderTimeout}),
	)
	if err != nil {
		logr.Error("ai client init failed", slog.Any("error", err))
		os.Exit(1)
	}

	registry := template.Defaults()
	pipeline := &service.Pipeline{
		Templates:    registry,
		Generator:    generator,
		Slack:        slackClient,
		Messages:     messageRepo,
		Campaigns:    campaignRepo,
		Logger:       logr,
		HistoryLimit: cfg.HistoryLimit,
	}
	if pauseCache != nil {
		pipeline.Pause = pauseCache
	}

	// With a broker configured the server only publishes; the worker binary
	// consumes. Without one, an in-process queue runs the pipeline directly.
	var dispatchQueue queue.Queue
	if cfg.RabbitURL != "" {
		amqpQueue, err := queue.NewAMQP(queue.AMQPConfig{
			URL:             cfg.RabbitURL,
			QueueName:       cfg.QueueName,
			DeadLetterQueue: cfg.DeadLetterQueue,
			Prefetch:        cfg.PrefetchCount,
			Workers:         cfg.WorkerCount,
			MaxAttempts:     cfg.RetryMaxAttempts,
			InitialBackoff:  cfg.RetryInitialBackoff,
			MaxBackoff:      cfg.RetryMaxBackoff,
		}, logr)
		if err != nil {
			logr.Error("queue init failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer amqpQueue.Close()
		dispatchQueue = amqpQueue
	} else {
		logr.Warn("RABBITMQ_URL not set, using in-process queue")
		memQueue := queue.NewMemory(queue.MemoryConfig{
			Name:           cfg.QueueName,
			Workers:        cfg.WorkerCount,
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
		}, pipeline.Process, pipeline.RecordFailure, logr)
		memQueue.Start(ctx)
		dispatchQueue = memQueue
	}

	dispatcher := service.NewDispatcher(campaignRepo, dispatchQueue, logr)
	campaignService := &service.CampaignService{
		Campaigns:  campaignRepo,
		Messages:   messageRepo,
		Slack:      slackClient,
		Dispatcher: dispatcher,
		Logger:     logr,
	}
	if pauseCache != nil {
		campaignService.Pause = pauseCache
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService, Logger: logr}
	queueController := &controller.QueueController{Queue: dispatchQueue, Logger: logr}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Put("/campaigns/{id}/status", campaignController.UpdateStatus)
	r.Post("/campaigns/{id}/send", campaignController.SendCampaign)
	r.Get("/campaigns/{id}/analytics", campaignController.Analytics)
	r.Post("/campaigns/{id}/convert", campaignController.MarkConverted)

	// Queue routes
	r.Post("/queue/message", queueController.PostMessage)
	r.Get("/queue/status", queueController.Status)
	r.Delete("/queue/clear", queueController.Clear)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	go func() {
		logr.Info("server listening", slog.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("shutdown error", slog.Any("error", err))
	}
}
