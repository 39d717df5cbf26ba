package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	redisdb "github.com/turtacn/ProtonGraph/internal/infrastructure/database/redis"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/sdfile"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// NewSeedCmd builds the seed-exclusion command: load the canonical keys of
// a benchmark collection into the Redis exclusion set so preparation runs
// keep those structures out of produced datasets.
func NewSeedCmd() *cobra.Command {
	var input string
	var clear bool

	cmd := &cobra.Command{
		Use:   "seed-exclusion",
		Short: "Load benchmark structure keys into the exclusion set",
		Long:  "Reads a benchmark collection and stores each structure's canonical key in\nthe Redis exclusion set. The input is either an SD file (keys are derived\nfrom the structures) or a plain text file with one canonical key per line.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, input, clear)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "SD file or key list to load (required)")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the exclusion set before seeding")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runSeed(cmd *cobra.Command, input string, clear bool) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := cliCtx.Logger

	keys, err := collectKeys(ctx, input, logger)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return errors.New(errors.ErrCodeBadRequest, "no canonical keys found in input")
	}

	client, err := redisdb.NewClient(ctx, cliCtx.Config.Redis, logger.Named("redis"))
	if err != nil {
		return err
	}
	defer client.Close()

	exclusion := redisdb.NewExclusionSet(client, logger.Named("exclusion"))
	if clear {
		if err := exclusion.Clear(ctx); err != nil {
			return err
		}
	}

	added, err := exclusion.Seed(ctx, keys)
	if err != nil {
		return err
	}

	size, err := exclusion.Size(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d keys (%d new), exclusion set now holds %d\n",
		len(keys), added, size)
	return nil
}

// collectKeys derives canonical keys from an SD file, or reads them one per
// line from any other file.
func collectKeys(ctx context.Context, input string, logger logging.Logger) ([]string, error) {
	f, err := os.Open(input)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot open input file")
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(input), ".sdf") {
		return keysFromSDFile(ctx, f, logger)
	}
	return keysFromLines(f)
}

func keysFromSDFile(ctx context.Context, f *os.File, logger logging.Logger) ([]string, error) {
	reader := sdfile.NewReader(f, logger.Named("sdfile"))
	seen := make(map[string]bool)
	var keys []string
	for {
		rec, err := reader.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return keys, nil
		}
		key := rec.CanonicalKey()
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
}

func keysFromLines(f *os.File) ([]string, error) {
	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read key list")
	}
	return keys, nil
}
