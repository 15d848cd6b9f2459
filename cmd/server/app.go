package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/api"
	"github.com/irfndi/newsindex-ai-go/internal/api/handlers"
	"github.com/irfndi/newsindex-ai-go/internal/cache"
	"github.com/irfndi/newsindex-ai-go/internal/config"
	"github.com/irfndi/newsindex-ai-go/internal/database"
	"github.com/irfndi/newsindex-ai-go/internal/logging"
	"github.com/irfndi/newsindex-ai-go/internal/middleware"
	"github.com/irfndi/newsindex-ai-go/internal/services"
	"github.com/irfndi/newsindex-ai-go/internal/telemetry"
	"github.com/irfndi/newsindex-ai-go/pkg/llm"
)

const shutdownTimeout = 30 * time.Second

// application owns every long-lived component and closes them in reverse
// order of construction.
type application struct {
	cfg       *config.Config
	logger    *logrus.Logger
	server    *http.Server
	pipeline  *services.DailyPipeline
	scheduler *services.Scheduler
	closers   []func(ctx context.Context)
}

func newApplication(ctx context.Context, cfg *config.Config, logger *logrus.Logger, client llm.Client) (_ *application, err error) {
	app := &application{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Initialize telemetry first
	provider, err := telemetry.InitTelemetry(ctx, telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		SampleRate:     cfg.Telemetry.SampleRate,
		ExportLogs:     cfg.Telemetry.ExportLogs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if otelLogger := provider.Logger(cfg.Telemetry.ServiceName); otelLogger != nil {
		logger.AddHook(logging.NewOTLPHook(otelLogger, logger.GetLevel()))
	}
	app.onClose(func(ctx context.Context) {
		if err := provider.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	})

	healthChecks := map[string]handlers.HealthChecker{"database": nil, "redis": nil}

	// System of record
	var backend services.RecordBackend = services.NewMemoryRecordBackend()
	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		app.onClose(func(context.Context) { db.Close() })

		repo := database.NewRecordRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		backend = repo
		healthChecks["database"] = db
	} else {
		logger.Warn("Database disabled, records are kept in memory only")
	}

	// Cache and batch lease
	var lease services.BatchLease
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisConnection(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		app.onClose(func(context.Context) { rdb.Close() })

		recordCache := cache.NewRedisRecordCache(backend, rdb.Client, cfg.Cache.TTL, logger)
		app.onClose(func(context.Context) { recordCache.LogStats() })
		backend = recordCache
		lease = services.NewRedisBatchLease(rdb.Client, cfg.Pipeline.LeaseTTL, logger)
		healthChecks["redis"] = rdb
	} else {
		lease = services.NewMemoryBatchLease(cfg.Pipeline.LeaseTTL, logger)
	}

	errorRecoveryManager := services.NewErrorRecoveryManager(logger)
	store := services.NewRecordStore(backend, errorRecoveryManager, logger)

	scoring := services.NewScoringPipeline(
		services.NewLLMSentimentScorer(client, logger),
		errorRecoveryManager,
		scoringConfig(cfg.Scoring),
		logger,
	)

	notifier, err := services.NewNotificationService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	app.pipeline = services.NewDailyPipeline(store, scoring, lease, notifier, services.PipelineConfig{
		TopKeywords: cfg.Pipeline.TopKeywords,
		Location:    cfg.Pipeline.Location(),
	}, logger)

	if cfg.Pipeline.SchedulerEnabled {
		app.scheduler = services.NewScheduler(cfg.Pipeline.Location(), logger)
		if err := app.scheduler.RegisterPipelineJobs(app.pipeline, cfg.Pipeline.AnalysisSchedule, cfg.Pipeline.LearningSchedule); err != nil {
			return nil, err
		}
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Dependencies{
		Pipeline:     app.pipeline,
		Records:      store,
		Admin:        middleware.NewAdminMiddleware(cfg.Server.AdminAPIKey, logger),
		HealthChecks: healthChecks,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      telemetry.ServiceVersion,
		Logger:       logger,
	})

	// Create HTTP server with security timeouts
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	logger.WithFields(logrus.Fields{
		"llm_provider": cfg.LLM.Provider,
		"llm_model":    client.Model(),
		"database":     cfg.Database.Enabled,
		"redis":        cfg.Redis.Enabled,
		"scheduler":    cfg.Pipeline.SchedulerEnabled,
	}).Info("Application initialized")
	return app, nil
}

func scoringConfig(cfg config.ScoringConfig) services.ScoringConfig {
	out := services.DefaultScoringConfig()
	out.RequestsPerMinute = cfg.RequestsPerMinute
	out.Burst = cfg.Burst
	out.Concurrency = cfg.Concurrency
	out.MaxRetries = cfg.MaxRetries
	out.InitialBackoff = cfg.InitialBackoff
	out.MaxBackoff = cfg.MaxBackoff
	out.BackoffFactor = cfg.BackoffFactor
	if cfg.BreakerThreshold > 0 {
		out.Breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerCooldown > 0 {
		out.Breaker.Timeout = cfg.BreakerCooldown
	}
	return out
}

func (a *application) onClose(fn func(ctx context.Context)) {
	a.closers = append(a.closers, fn)
}

func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

// serve runs the HTTP server and scheduler until ctx is cancelled or the
// listener fails, then shuts everything down.
func (a *application) serve(ctx context.Context) error {
	defer a.close()

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.LogStartup(a.logger, a.cfg.Telemetry.ServiceName, telemetry.ServiceVersion, a.cfg.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	reason := "signal received"
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
			reason = "server error"
		}
	}
	logging.LogShutdown(a.logger, a.cfg.Telemetry.ServiceName, reason)

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Server forced to shutdown")
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Scheduler did not stop cleanly")
		}
	}

	a.logger.Info("Server exited gracefully")
	return runErr
}
