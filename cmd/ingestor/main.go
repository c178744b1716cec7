// Package main is the entrypoint for the reading ingestor.
//
// The ingestor drains SQS_INGEST_QUEUE_URL into PostgreSQL (and Redis when
// configured). Inside Lambda it runs as an SQS event source with partial
// batch responses; elsewhere it long-polls the queue until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"airwatch/internal/cache"
	"airwatch/internal/config"
	"airwatch/internal/core"
	"airwatch/internal/db"
	"airwatch/internal/ingest"
	"airwatch/internal/queue"
	"airwatch/internal/telemetry"
	"airwatch/internal/types"
)

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
	if cfg.AWS.IngestQueueURL == "" && !isLambdaEnvironment() {
		return errors.New("SQS_INGEST_QUEUE_URL is required outside Lambda")
	}

	logger := newLogger(cfg.LogLevel).With("service", cfg.Service+"-ingestor")
	logger.Info("ingestor initializing",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"lambda", isLambdaEnvironment(),
	)

	ctx := context.Background()

	awsCfg, err := cfg.AWS.LoadAWS(ctx)
	if err != nil {
		return err
	}

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

	var latest ingest.LatestCache
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
		latest = cache.NewReadingCache(client, cfg.Cache.LatestTTL, logger.With("component", "cache"))
	}

	var recorder telemetry.Recorder = telemetry.Nop{}
	if cfg.Observability.MetricsBackend == config.MetricsCloudWatch {
		recorder = telemetry.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace, cfg.Service, logger.With("component", "metrics"))
	}

	service := ingest.NewService(ingest.Config{
		Store:     db.NewReadingRepository(pool),
		Cache:     latest,
		Validator: core.NewValidator(logger),
		Clock:     types.RealClock{},
		PM25Max:   cfg.Sensor.PM25Max,
		PM10Max:   cfg.Sensor.PM10Max,
		Metrics:   recorder,
		Logger:    logger.With("component", "ingest"),
	})

	if isLambdaEnvironment() {
		logger.Info("ingestor ready, starting Lambda handler")
		lambda.Start(queue.NewBatchHandler(service, logger).Handle)
		return nil
	}

	consumer := queue.NewConsumer(sqs.NewFromConfig(awsCfg), service, queue.ConsumerConfig{
		QueueURL: cfg.AWS.IngestQueueURL,
		Logger:   logger.With("component", "consumer"),
	})

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(runCtx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	logger.Info("ingestor stopped")
	return nil
}

// isLambdaEnvironment reports whether the process runs inside the Lambda
// runtime.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
