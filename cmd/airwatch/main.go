// Package main is the entrypoint for the AirWatch service.
//
// One process runs the HTTP API and the periodic evaluation cycle side by
// side. This file only wires dependencies; behavior lives in internal/.
//
// Startup order:
//  1. Load configuration (SSM pointers resolved outside APP_ENV=local).
//  2. Validate the AQI breakpoint table.
//  3. Open PostgreSQL and, when configured, Redis.
//  4. Build the push provider, load the token registry, build the dispatcher.
//  5. Start the evaluator in the background.
//  6. Serve HTTP until SIGINT/SIGTERM, then drain the server and the evaluator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"airwatch/internal/airquality"
	"airwatch/internal/alerting"
	"airwatch/internal/api/handlers"
	"airwatch/internal/aqi"
	"airwatch/internal/cache"
	"airwatch/internal/config"
	"airwatch/internal/core"
	"airwatch/internal/db"
	"airwatch/internal/external"
	"airwatch/internal/ingest"
	"airwatch/internal/queue"
	"airwatch/internal/scheduler"
	"airwatch/internal/telemetry"
	"airwatch/internal/types"
)

// shutdownTimeout bounds the HTTP drain after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL")))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.LogLevel).With("service", cfg.Service)
	logger.Info("starting airwatch",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	if err := aqi.DefaultTable.Validate(); err != nil {
		return fmt.Errorf("aqi breakpoint table: %w", err)
	}

	ctx := context.Background()

	// --- Storage ---

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:             cfg.Database.URL.Unmask(),
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	readings := db.NewReadingRepository(pool)
	tokens := db.NewPushTokenRepository(pool)
	probes := []core.HealthProbe{db.NewHealthProbe(pool)}

	var readingCache *cache.ReadingCache
	if cfg.Cache.Enabled() {
		client, err := cache.NewRedisClient(ctx, cache.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password.Unmask(),
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		readingCache = cache.NewReadingCache(client, cfg.Cache.LatestTTL, logger.With("component", "cache"))
		probes = append(probes, readingCache)
	}
	latest := cache.NewReadThrough(readingCache, readings, logger.With("component", "cache"))

	// --- Metrics ---

	var recorder telemetry.Recorder
	var metricsHandler http.Handler
	needsAWS := cfg.Observability.MetricsBackend == config.MetricsCloudWatch || cfg.AWS.AlertEventsURL != ""
	var awsClients awsClientSet
	if needsAWS {
		awsCfg, err := cfg.AWS.LoadAWS(ctx)
		if err != nil {
			return err
		}
		awsClients = awsClientSet{
			cloudwatch: cloudwatch.NewFromConfig(awsCfg),
			sqs:        sqs.NewFromConfig(awsCfg),
		}
	}
	switch cfg.Observability.MetricsBackend {
	case config.MetricsCloudWatch:
		recorder = telemetry.NewCloudWatchRecorder(awsClients.cloudwatch,
			cfg.Observability.MetricNamespace, cfg.Service, logger.With("component", "metrics"))
	default:
		prom := telemetry.NewPrometheusRecorder("airwatch")
		recorder = prom
		metricsHandler = prom.Handler()
	}

	// --- Alerting ---

	sender, err := external.NewPushProvider(ctx, cfg, logger.With("component", "push"))
	if err != nil {
		return fmt.Errorf("building push provider: %w", err)
	}

	registry := alerting.NewRegistry(tokens, logger.With("component", "registry"))
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("loading push tokens: %w", err)
	}

	var publisher alerting.EventPublisher
	if cfg.AWS.AlertEventsURL != "" {
		publisher = queue.NewAlertPublisher(awsClients.sqs, cfg.AWS.AlertEventsURL, logger.With("component", "alert_events"))
	}

	dispatcher := alerting.NewDispatcher(alerting.Config{
		Sender:      sender,
		Registry:    registry,
		Cooldown:    cfg.Alert.Cooldown,
		SendTimeout: cfg.Alert.SendTimeout,
		Publisher:   publisher,
		Metrics:     recorder,
		Logger:      logger.With("component", "dispatcher"),
	})

	// --- Evaluation ---

	clock := types.RealClock{}
	evaluator := scheduler.NewEvaluator(scheduler.Config{
		Readings:        readings,
		Latest:          latest,
		Dispatcher:      dispatcher,
		Interval:        cfg.Evaluation.Interval,
		RetrainInterval: cfg.Evaluation.RetrainInterval,
		NodeTimeout:     cfg.Evaluation.NodeTimeout,
		Workers:         cfg.Evaluation.Workers,
		ActiveWindow:    cfg.Evaluation.ActiveWindow,
		ReadingMaxAge:   cfg.Evaluation.ReadingMaxAge,
		HistoryWindow:   cfg.Evaluation.HistoryWindow,
		ShutdownGrace:   cfg.Evaluation.ShutdownGrace,
		Clock:           clock,
		Metrics:         recorder,
		Logger:          logger.With("component", "evaluator"),
	})

	evalCtx, stopEvaluator := context.WithCancel(ctx)
	defer stopEvaluator()
	evalDone := make(chan error, 1)
	go func() { evalDone <- evaluator.Run(evalCtx) }()

	// --- Read and write paths ---

	aqService := airquality.NewService(airquality.Config{
		Readings:      readings,
		Latest:        latest,
		Snapshots:     evaluator.State(),
		Alerts:        dispatcher,
		StatusMaxAge:  cfg.Status.ReadingMaxAge,
		HistoryWindow: cfg.Evaluation.HistoryWindow,
		Location:      cfg.Location,
		Clock:         clock,
		Logger:        logger.With("component", "airquality"),
	})

	// --- HTTP ---

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = probes
	srv.Metrics = recorder
	srv.MetricsHandler = metricsHandler

	ingestService := ingest.NewService(ingest.Config{
		Store:     readings,
		Cache:     cacheOrNil(readingCache),
		Validator: srv.Validator,
		Clock:     clock,
		PM25Max:   cfg.Sensor.PM25Max,
		PM10Max:   cfg.Sensor.PM10Max,
		Metrics:   recorder,
		Logger:    logger.With("component", "ingest"),
	})

	aqHandler := handlers.NewAirQualityHandler(aqService, logger)
	tokenHandler := handlers.NewTokenHandler(registry, srv.Validator, logger)
	readingHandler := handlers.NewReadingHandler(ingestService, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		aqHandler.RegisterRoutes(r)
		tokenHandler.RegisterRoutes(r, srv.RequireAPIKey)
		readingHandler.RegisterRoutes(r, srv.RequireAPIKey)
	})
	srv.MountRoutes()

	serveErr := runHTTPServer(srv, cfg, logger)

	logger.Info("stopping evaluator")
	stopEvaluator()
	if err := <-evalDone; err != nil {
		logger.Error("evaluator stopped with error", "error", err)
	}

	logger.Info("shutdown complete")
	return serveErr
}

type awsClientSet struct {
	cloudwatch *cloudwatch.Client
	sqs        *sqs.Client
}

// cacheOrNil avoids handing ingest a typed-nil interface when Redis is off.
func cacheOrNil(c *cache.ReadingCache) ingest.LatestCache {
	if c == nil {
		return nil
	}
	return c
}

// runHTTPServer serves until a shutdown signal or a listener error, then
// drains in-flight requests for up to shutdownTimeout.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := srv.HTTPServer(":" + cfg.Server.Port)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newLogger creates a JSON structured logger at the given level. Unknown
// levels fall back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
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
