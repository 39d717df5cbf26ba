package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// RunnerConfig parameterizes one pipeline run.
type RunnerConfig struct {
	// DatasetName names the output artifact.
	DatasetName string
	// VocabularyVersion selects the attribute vocabulary.
	VocabularyVersion string
	// Workers is the normalize/encode worker count; values below 1 mean 1.
	Workers int
	// MinSites is the splitter's whole-record gate.
	MinSites int
}

// Runner drives a full pipeline run: read, split, deduplicate, then
// normalize and encode on a worker pool, and finally assemble.  Reading and
// deduplication are sequential so that the first occurrence of a structure
// in input order always wins; the per-site work after that point is order
// independent and runs in parallel, with the assembler restoring input
// order at the end.
type Runner struct {
	cfg RunnerConfig

	splitter   *Splitter
	dedup      *Deduplicator
	normalizer *Normalizer
	encoder    *Encoder
	assembler  *Assembler

	lineage dataset.LineageRecorder
	metrics *prometheus.AppMetrics
	logger  logging.Logger

	// reportMu guards the rejection buckets, which both the reader and
	// the result collector update.
	reportMu sync.Mutex
}

// NewRunner assembles a runner from its stages.  lineage and metrics may be
// nil.
func NewRunner(
	cfg RunnerConfig,
	exclusion record.ExclusionSource,
	store dataset.Store,
	lineage dataset.LineageRecorder,
	metrics *prometheus.AppMetrics,
	logger logging.Logger,
) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	encoder, err := NewEncoder(cfg.VocabularyVersion, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:        cfg,
		splitter:   NewSplitter(cfg.MinSites, logger),
		dedup:      NewDeduplicator(exclusion, logger),
		normalizer: NewNormalizer(logger),
		encoder:    encoder,
		assembler:  NewAssembler(store, logger),
		lineage:    lineage,
		metrics:    metrics,
		logger:     logger.Named("runner"),
	}, nil
}

type workItem struct {
	rec *record.SingleSiteRecord
}

type workResult struct {
	inputIndex int
	siteID     int
	sourceID   string
	sample     *dataset.ReactionSample
	err        error
}

// Run executes the pipeline against the source and returns the assembled
// dataset with a run report.  Non-fatal rejections are counted in the
// report; source failures, exclusion lookups and integrity violations abort
// the run.
func (r *Runner) Run(ctx context.Context, runID string, source record.RecordSource) (*dataset.Dataset, *Report, error) {
	started := time.Now()
	report := &Report{}

	jobs := make(chan workItem, r.cfg.Workers)
	results := make(chan workResult, r.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(jobs, results)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collector drains results while the reader feeds jobs, so a full
	// results channel can never deadlock the reader.
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for res := range results {
			if res.err != nil {
				r.observeRejection(ctx, runID, report, res.sourceID, res.siteID, res.err)
				continue
			}
			r.assembler.Add(res.inputIndex, res.siteID, res.sample)
			report.Samples++
			if r.lineage != nil {
				if err := r.lineage.RecordSample(ctx, runID, res.sample); err != nil {
					r.logger.Warn("lineage write failed",
						logging.String("run_id", runID),
						logging.Error(err))
				}
			}
		}
	}()

	readErr := r.read(ctx, runID, source, report, jobs)
	close(jobs)
	<-collectDone

	if readErr != nil {
		return nil, report, readErr
	}

	report.UniqueStructures = r.dedup.UniqueStructures()

	d, err := r.assembler.Finish(ctx, r.cfg.DatasetName, r.cfg.VocabularyVersion)
	if err != nil {
		return nil, report, err
	}

	if r.metrics != nil {
		r.metrics.RunDuration.WithLabelValues(r.cfg.DatasetName).Observe(time.Since(started).Seconds())
		r.metrics.SamplesProducedTotal.WithLabelValues(r.cfg.DatasetName).Add(float64(report.Samples))
		r.metrics.UniqueStructures.WithLabelValues(r.cfg.DatasetName).Set(float64(report.UniqueStructures))
		r.metrics.DatasetSamples.WithLabelValues(r.cfg.DatasetName).Set(float64(len(d.Samples)))
	}
	r.logger.Info("pipeline run finished",
		logging.String("run_id", runID),
		logging.Int("records", report.RecordsRead),
		logging.Int("sites", report.SitesSeen),
		logging.Int("samples", report.Samples),
		logging.Int("rejected", report.Rejected()),
		logging.Duration("elapsed", time.Since(started)))
	return d, report, nil
}

// read drives the sequential front of the pipeline: source, splitter and
// deduplicator.
func (r *Runner) read(ctx context.Context, runID string, source record.RecordSource, report *Report, jobs chan<- workItem) error {
	for inputIndex := 0; ; inputIndex++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeRunAborted, "run cancelled")
		}
		rec, err := source.Next(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSDFileParseError, "reading record source")
		}
		if rec == nil {
			return nil
		}
		report.RecordsRead++
		report.SitesSeen += len(rec.Sites)
		if r.metrics != nil {
			r.metrics.RecordsReadTotal.WithLabelValues("source").Inc()
			r.metrics.SitesProcessedTotal.WithLabelValues("source").Add(float64(len(rec.Sites)))
		}

		singles, rejections := r.splitter.Split(rec, inputIndex)
		for _, rej := range rejections {
			r.observeRejection(ctx, runID, report, rej.SourceID, rej.SiteID, rej.Err)
		}

		for _, s := range singles {
			verdict, err := r.dedup.Admit(ctx, s)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeExclusionUnavailable, "exclusion lookup failed")
			}
			switch verdict {
			case Duplicated:
				report.Deduplicated++
				r.recordRejectionSide(ctx, runID, s.SourceID, s.Site.SiteID, "duplicate", "structure already admitted under another record")
			case Excluded:
				report.Excluded++
				r.recordRejectionSide(ctx, runID, s.SourceID, s.Site.SiteID, "excluded", "structure belongs to the exclusion set")
			case Admitted:
				jobs <- workItem{rec: s}
			}
		}
	}
}

func (r *Runner) worker(jobs <-chan workItem, results chan<- workResult) {
	for item := range jobs {
		res := workResult{
			inputIndex: item.rec.InputIndex,
			siteID:     item.rec.Site.SiteID,
			sourceID:   item.rec.SourceID,
		}

		start := time.Now()
		pair, err := r.normalizer.Normalize(item.rec)
		if r.metrics != nil {
			r.metrics.StageDuration.WithLabelValues("normalizer").Observe(time.Since(start).Seconds())
		}
		if err != nil {
			res.err = err
			results <- res
			continue
		}

		start = time.Now()
		sample, err := r.encoder.Encode(pair)
		if r.metrics != nil {
			r.metrics.StageDuration.WithLabelValues("encoder").Observe(time.Since(start).Seconds())
		}
		if err != nil {
			res.err = err
			results <- res
			continue
		}
		res.sample = sample
		results <- res
	}
}

func (r *Runner) observeRejection(ctx context.Context, runID string, report *Report, sourceID string, siteID int, err error) {
	r.reportMu.Lock()
	report.ObserveRejection(err)
	r.reportMu.Unlock()
	if r.metrics != nil {
		prometheus.RecordRejection(r.metrics, "pipeline", string(errors.GetCode(err)))
	}
	r.recordRejectionSide(ctx, runID, sourceID, siteID, string(errors.GetCode(err)), err.Error())
}

func (r *Runner) recordRejectionSide(ctx context.Context, runID, sourceID string, siteID int, code, reason string) {
	if r.lineage == nil {
		return
	}
	if err := r.lineage.RecordRejection(ctx, runID, sourceID, siteID, code, reason); err != nil {
		r.logger.Warn("lineage rejection write failed",
			logging.String("run_id", runID),
			logging.Error(err))
	}
}
