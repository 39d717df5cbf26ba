package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// indexedSample pairs a sample with the ordering key needed to restore input
// order after parallel processing.
type indexedSample struct {
	inputIndex int
	siteID     int
	sample     *dataset.ReactionSample
}

// Assembler collects encoded samples and produces the final dataset
// artifact.  Assembly is all-or-nothing: a failed integrity check or a
// failed store write leaves no partial artifact behind.
type Assembler struct {
	store  dataset.Store
	logger logging.Logger

	samples []indexedSample
}

// NewAssembler returns an assembler writing to the given store.  A nil store
// is allowed; Finish then validates and returns the dataset without
// persisting it.
func NewAssembler(store dataset.Store, logger logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Assembler{store: store, logger: logger.Named("assembler")}
}

// Add registers an encoded sample.  Samples may arrive in any order; Finish
// sorts by input position.
func (a *Assembler) Add(inputIndex, siteID int, s *dataset.ReactionSample) {
	a.samples = append(a.samples, indexedSample{inputIndex: inputIndex, siteID: siteID, sample: s})
}

// Finish orders the collected samples, validates cross-sample invariants,
// and persists the artifact.  An integrity violation is fatal for the run.
func (a *Assembler) Finish(ctx context.Context, name, vocabVersion string) (*dataset.Dataset, error) {
	sort.Slice(a.samples, func(i, j int) bool {
		if a.samples[i].inputIndex != a.samples[j].inputIndex {
			return a.samples[i].inputIndex < a.samples[j].inputIndex
		}
		return a.samples[i].siteID < a.samples[j].siteID
	})

	d := &dataset.Dataset{
		Name:              name,
		VocabularyVersion: vocabVersion,
		CreatedAt:         time.Now().UTC(),
	}
	for _, s := range a.samples {
		d.Samples = append(d.Samples, s.sample)
	}

	if err := d.Validate(); err != nil {
		a.logger.Error("dataset failed integrity validation",
			logging.String("dataset", name),
			logging.Error(err))
		return nil, err
	}

	if a.store != nil {
		if err := a.store.Put(ctx, d); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageError, "persisting dataset artifact")
		}
	}
	a.logger.Info("dataset assembled",
		logging.String("dataset", name),
		logging.Int("samples", len(d.Samples)),
		logging.String("vocabulary", vocabVersion))
	return d, nil
}
