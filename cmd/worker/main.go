// worker consumes preparation jobs from Kafka and executes pipeline runs:
// it reads molecule records, drives the five-stage pipeline, publishes the
// dataset artifact, and emits run lifecycle events.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/turtacn/ProtonGraph/internal/config"
	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/domain/run"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/database/postgres/repositories"
	redisdb "github.com/turtacn/ProtonGraph/internal/infrastructure/database/redis"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/sdfile"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/storage/minio"
	"github.com/turtacn/ProtonGraph/internal/pipeline"
	"github.com/turtacn/ProtonGraph/pkg/errors"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
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
	logger = logger.Named("worker")
	logger.Info("starting worker", logging.String("group", cfg.Kafka.GroupID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "protongraph",
		Subsystem:            "worker",
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
	recordRepo := repositories.NewRecordRepo(pool.Pool(), logger)

	redisClient, err := redisdb.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", logging.Error(err))
	}
	defer redisClient.Close()

	minioClient, err := minio.NewClient(ctx, cfg.MinIO, logger)
	if err != nil {
		logger.Fatal("failed to connect to minio", logging.Error(err))
	}
	defer minioClient.Close()

	var lineage dataset.LineageRecorder
	if cfg.Neo4j.Enabled {
		driver, err := neo4j.NewDriver(cfg.Neo4j, logger)
		if err != nil {
			logger.Fatal("failed to connect to neo4j", logging.Error(err))
		}
		defer driver.Close()
		lineage = neo4j.NewLineageRepo(driver, logger)
	}

	producer, err := kafka.NewProducer(cfg.Kafka, "worker", logger)
	if err != nil {
		logger.Fatal("failed to create kafka producer", logging.Error(err))
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.TopicPrepareJobs, producer, logger)
	if err != nil {
		logger.Fatal("failed to create kafka consumer", logging.Error(err))
	}

	w := &worker{
		cfg:       cfg,
		runs:      runRepo,
		records:   recordRepo,
		exclusion: redisdb.NewExclusionSet(redisClient, logger),
		store:     minio.NewDatasetStore(minioClient, logger),
		lineage:   lineage,
		producer:  producer,
		metrics:   metrics,
		logger:    logger,
	}

	if err := consumer.Start(ctx, w.handle); err != nil {
		logger.Fatal("failed to start consumer", logging.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", logging.String("signal", sig.String()))

	cancel()
	if err := consumer.Stop(); err != nil {
		logger.Error("consumer shutdown failed", logging.Error(err))
	}
}

type worker struct {
	cfg       *config.Config
	runs      run.Repository
	records   *repositories.RecordRepo
	exclusion record.ExclusionSource
	store     dataset.Store
	lineage   dataset.LineageRecorder
	producer  *kafka.Producer
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// handle executes one preparation job. Errors returned here trigger consumer
// retries, so only transient failures (repository lookups, updates before the
// pipeline starts) propagate; a run that fails mid-pipeline is recorded on the
// run itself and the message is considered handled.
func (w *worker) handle(ctx context.Context, env *kafka.EventEnvelope) error {
	var job kafka.PrepareJobPayload
	if err := env.DecodePayload(&job); err != nil {
		return err
	}
	log := w.logger.With(logging.String("run_id", job.RunID), logging.String("dataset", job.DatasetName))

	r, err := w.runs.GetByID(ctx, common.ID(job.RunID))
	if err != nil {
		return err
	}
	if r.Terminal() {
		log.Warn("skipping redelivered job for terminal run", logging.String("status", string(r.Status)))
		return nil
	}

	r.Start()
	if err := w.runs.Update(ctx, r); err != nil {
		return err
	}
	if r.StartedAt != nil {
		if err := w.producer.PublishRunStarted(ctx, kafka.RunStartedPayload{
			RunID:       job.RunID,
			DatasetName: job.DatasetName,
			StartedAt:   *r.StartedAt,
		}); err != nil {
			log.Warn("failed to publish run started event", logging.Error(err))
		}
	}

	ds, report, runErr := w.execute(ctx, &job, log)
	if runErr != nil {
		r.Fail(runErr, report)
		if err := w.runs.Update(ctx, r); err != nil {
			log.Error("failed to record run failure", logging.Error(err))
		}
		if err := w.producer.PublishRunFailed(ctx, kafka.RunFailedPayload{
			RunID:       job.RunID,
			DatasetName: job.DatasetName,
			ErrorCode:   string(errors.GetCode(runErr)),
			Error:       runErr.Error(),
			FailedAt:    *r.FinishedAt,
		}); err != nil {
			log.Warn("failed to publish run failed event", logging.Error(err))
		}
		log.Error("run failed", logging.Error(runErr))
		return nil
	}

	r.Complete(report)
	if err := w.runs.Update(ctx, r); err != nil {
		log.Error("failed to record run completion", logging.Error(err))
	}
	if err := w.producer.PublishRunCompleted(ctx, kafka.RunCompletedPayload{
		RunID:       job.RunID,
		DatasetName: job.DatasetName,
		Samples:     int64(report.Samples),
		Rejected:    int64(report.Rejected()),
		FinishedAt:  *r.FinishedAt,
	}); err != nil {
		log.Warn("failed to publish run completed event", logging.Error(err))
	}
	log.Info("run completed",
		logging.String("dataset", ds.Name),
		logging.Int("samples", report.Samples),
		logging.Int("unique_structures", report.UniqueStructures))
	return nil
}

// execute builds a runner for the job and drives it over the job's source.
func (w *worker) execute(ctx context.Context, job *kafka.PrepareJobPayload, log logging.Logger) (*dataset.Dataset, *pipeline.Report, error) {
	workers := job.Workers
	if workers < 1 {
		workers = w.cfg.Pipeline.Workers
	}

	var exclusion record.ExclusionSource
	if w.cfg.Pipeline.DedupEnabled {
		exclusion = w.exclusion
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		DatasetName:       job.DatasetName,
		VocabularyVersion: job.VocabularyVersion,
		Workers:           workers,
		MinSites:          w.cfg.Pipeline.MinSitesPerMolecule,
	}, exclusion, w.store, w.lineage, w.metrics, log)
	if err != nil {
		return nil, nil, err
	}

	source, closer, err := w.openSource(job.Source)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		defer closer.Close()
	}

	return runner.Run(ctx, job.RunID, source)
}

// openSource resolves a job source reference. A path ending in ".sdf" is read
// as a structure-data file from local disk; anything else selects the record
// table in postgres.
func (w *worker) openSource(ref string) (record.RecordSource, io.Closer, error) {
	if strings.HasSuffix(ref, ".sdf") {
		f, err := os.Open(ref)
		if err != nil {
			return nil, nil, err
		}
		return sdfile.NewReader(f, w.logger), f, nil
	}
	return w.records.Source(256), nil, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}
