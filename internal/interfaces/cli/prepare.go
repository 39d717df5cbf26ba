package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	redisdb "github.com/turtacn/ProtonGraph/internal/infrastructure/database/redis"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/sdfile"
	"github.com/turtacn/ProtonGraph/internal/pipeline"
	"github.com/turtacn/ProtonGraph/pkg/errors"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
)

// prepareOptions holds the flags of the prepare command.
type prepareOptions struct {
	Input       string
	DatasetName string
	Vocabulary  string
	Output      string
	Exclude     string
	Workers     int
	MinSites    int
	NoDedup     bool
}

// NewPrepareCmd builds the prepare command: run the full preparation
// pipeline over a local SD file and write the dataset artifact to disk.
func NewPrepareCmd() *cobra.Command {
	opts := &prepareOptions{}

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Prepare a graph-pair dataset from an annotated SD file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrepare(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Input, "input", "i", "", "annotated SD file to read (required)")
	f.StringVarP(&opts.DatasetName, "dataset", "d", "", "dataset name (required)")
	f.StringVar(&opts.Vocabulary, "vocabulary", "v1", "attribute vocabulary version")
	f.StringVarP(&opts.Output, "output", "o", "", "output JSON path (default: <dataset>.json)")
	f.StringVar(&opts.Exclude, "exclude", "", "SD file or key list whose structures are held out of the dataset")
	f.IntVar(&opts.Workers, "workers", 4, "normalize/encode worker count")
	f.IntVar(&opts.MinSites, "min-sites", 0, "drop molecules with fewer annotated sites")
	f.BoolVar(&opts.NoDedup, "no-exclusion", false, "skip the Redis exclusion set even when configured")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func runPrepare(cmd *cobra.Command, opts *prepareOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := cliCtx.Logger

	in, err := os.Open(opts.Input)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "cannot open input file")
	}
	reader := sdfile.NewReader(in, logger.Named("sdfile"))
	defer reader.Close()

	var exclusionSource record.ExclusionSource
	switch {
	case opts.NoDedup:
	case opts.Exclude != "":
		keys, err := collectKeys(ctx, opts.Exclude, logger)
		if err != nil {
			return err
		}
		exclusionSource = newMemoryExclusion(keys)
	case cliCtx.Config.Redis.Addr != "":
		client, err := redisdb.NewClient(ctx, cliCtx.Config.Redis, logger.Named("redis"))
		if err != nil {
			return err
		}
		defer client.Close()
		exclusionSource = redisdb.NewExclusionSet(client, logger.Named("exclusion"))
	}

	output := opts.Output
	if output == "" {
		output = opts.DatasetName + ".json"
	}
	store := &localStore{path: output}

	runnerCfg := pipeline.RunnerConfig{
		DatasetName:       opts.DatasetName,
		VocabularyVersion: opts.Vocabulary,
		Workers:           opts.Workers,
		MinSites:          opts.MinSites,
	}
	runner, err := pipeline.NewRunner(runnerCfg, exclusionSource, store, nil, nil, logger.Named("pipeline"))
	if err != nil {
		return err
	}

	runID := string(common.NewID())
	_, report, err := runner.Run(ctx, runID, reader)
	if err != nil {
		return err
	}

	return printReport(cmd, opts.DatasetName, output, report)
}

func printReport(cmd *cobra.Command, name, output string, report *pipeline.Report) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dataset %s written to %s\n", name, output)
	fmt.Fprintf(out, "  records read:          %d\n", report.RecordsRead)
	fmt.Fprintf(out, "  sites seen:            %d\n", report.SitesSeen)
	fmt.Fprintf(out, "  samples produced:      %d\n", report.Samples)
	fmt.Fprintf(out, "  unique structures:     %d\n", report.UniqueStructures)
	fmt.Fprintf(out, "  skipped sites:         %d\n", report.SkippedSites)
	fmt.Fprintf(out, "  deduplicated:          %d\n", report.Deduplicated)
	fmt.Fprintf(out, "  excluded:              %d\n", report.Excluded)
	fmt.Fprintf(out, "  correspondence errors: %d\n", report.CorrespondenceErrors)
	fmt.Fprintf(out, "  encoding errors:       %d\n", report.EncodingErrors)
	return nil
}

// memoryExclusion holds an exclusion set loaded from a local file for runs
// that cannot reach Redis.
type memoryExclusion struct {
	keys map[string]struct{}
}

func newMemoryExclusion(keys []string) *memoryExclusion {
	m := &memoryExclusion{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		m.keys[k] = struct{}{}
	}
	return m
}

func (m *memoryExclusion) Contains(_ context.Context, canonicalKey string) (bool, error) {
	_, ok := m.keys[canonicalKey]
	return ok, nil
}

// localStore writes the dataset artifact to a local JSON file. The write is
// atomic: a temp file in the same directory is renamed over the target.
type localStore struct {
	path string
}

func (s *localStore) Put(_ context.Context, d *dataset.Dataset) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode dataset")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".dataset-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write dataset")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to flush dataset")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to publish dataset file")
	}
	return nil
}

func (s *localStore) Get(context.Context, string) (*dataset.Dataset, error) {
	return nil, errors.New(errors.ErrCodeInternal, "local store is write-only")
}

func (s *localStore) Exists(context.Context, string) (bool, error) {
	_, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *localStore) Delete(context.Context, string) error {
	return os.Remove(s.path)
}
