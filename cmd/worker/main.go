// cmd/worker/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/brightline/outreach-backend/internal/ai"
	"github.com/brightline/outreach-backend/internal/cache"
	"github.com/brightline/outreach-backend/internal/config"
	"github.com/brightline/outreach-backend/internal/db"
	"github.com/brightline/outreach-backend/internal/model"
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
	if cfg.RabbitURL == "" {
		slog.Error("RABBITMQ_URL is required for the worker")
		os.Exit(1)
	}

	logr := logger.New(cfg.LogLevel, cfg.Environment)
	logr.Info("starting worker", slog.String("app", cfg.AppName))

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

	pipeline := &service.Pipeline{
		Templates:    template.Defaults(),
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

	dispatchQueue, err := queue.NewAMQP(queue.AMQPConfig{
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
	defer dispatchQueue.Close()

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics endpoint for scraping the worker.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("metrics server error", slog.Any("error", err))
		}
	}()

	// Periodic dispatch sweep: re-runs active campaigns (safe because only
	// pending recipients are selected) and completes finished ones.
	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCampaigns(ctx, campaignRepo, dispatcher, campaignService, logr)
			}
		}
	}()

	logr.Info("worker consuming", slog.String("queue", cfg.QueueName))
	if err := dispatchQueue.Consume(ctx, pipeline.Process, pipeline.RecordFailure); err != nil {
		logr.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func sweepCampaigns(ctx context.Context, repo *repository.CampaignRepository, dispatcher *service.Dispatcher, svc *service.CampaignService, logr *slog.Logger) {
	active, _, err := repo.ListCampaigns(0, 100, model.CampaignActive)
	if err != nil {
		logr.Error("failed to list active campaigns", slog.Any("error", err))
		return
	}
	for _, c := range active {
		if _, err := dispatcher.Dispatch(ctx, c.ID); err != nil {
			logr.Error("dispatch sweep failed", slog.Int("campaign_id", c.ID), slog.Any("error", err))
			continue
		}
		if _, err := svc.FinishIfComplete(ctx, c.ID); err != nil {
			logr.Error("completion check failed", slog.Int("campaign_id", c.ID), slog.Any("error", err))
		}
	}
}
