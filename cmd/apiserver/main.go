// apiserver is the control plane: run submission and status over HTTP,
// dataset artifact access, health probes, and metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/ProtonGraph/internal/config"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/database/postgres/repositories"
	redisdb "github.com/turtacn/ProtonGraph/internal/infrastructure/database/redis"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/ProtonGraph/internal/interfaces/http"
	"github.com/turtacn/ProtonGraph/internal/interfaces/http/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting apiserver", logging.Int("port", cfg.Server.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "protongraph",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create metrics collector", logging.Error(err))
	}
	metrics := prometheus.NewAppMetrics(collector)

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", logging.Error(err))
	}
	defer pool.Close()
	runRepo := repositories.NewRunRepo(pool.Pool(), logger)

	redisClient, err := redisdb.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", logging.Error(err))
	}
	defer redisClient.Close()
	runCache := redisdb.NewCache(redisClient, 5*time.Minute)

	minioClient, err := minio.NewClient(ctx, cfg.MinIO, logger)
	if err != nil {
		logger.Fatal("failed to connect to minio", logging.Error(err))
	}
	defer minioClient.Close()
	datasetStore := minio.NewDatasetStore(minioClient, logger)

	producer, err := kafka.NewProducer(cfg.Kafka, "apiserver", logger)
	if err != nil {
		logger.Fatal("failed to create kafka producer", logging.Error(err))
	}
	defer producer.Close()

	router := httpserver.NewRouter(httpserver.RouterConfig{
		RunHandler:     handlers.NewRunHandler(runRepo, producer, runCache, logger),
		DatasetHandler: handlers.NewDatasetHandler(datasetStore, logger),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.HealthChecker{
			"postgres": pool.HealthCheck,
			"redis":    redisClient.HealthCheck,
			"minio":    minioClient.HealthCheck,
		}, logger),
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
		Mode:             cfg.Server.Mode,
	})
	server := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("http server failed", logging.Error(err))
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown failed", logging.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}
