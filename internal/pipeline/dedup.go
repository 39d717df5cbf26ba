package pipeline

import (
	"context"

	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
)

// Verdict classifies a deduplicator decision.
type Verdict int

const (
	// Admitted means the record's structure is new to this run and not excluded.
	Admitted Verdict = iota
	// Duplicated means another record with the same canonical key was
	// admitted earlier in this run.
	Duplicated
	// Excluded means the structure belongs to the external exclusion set
	// (typically a held-out benchmark).
	Excluded
)

// Deduplicator drops records whose parent structure already appeared in this
// run under a different source, or belongs to an external exclusion set.
// Multiple sites of the same record share a canonical key and all pass.
//
// Admit must be called from a single goroutine, in input order; the verdict
// for a key depends on which source claimed it first.
type Deduplicator struct {
	exclusion record.ExclusionSource
	logger    logging.Logger

	// seen maps canonical key -> source ID that first claimed it.
	seen map[string]string
	// excluded caches exclusion verdicts per key within the run.
	excluded map[string]bool
}

// NewDeduplicator returns a deduplicator backed by the given exclusion
// source.  A nil source disables exclusion checking.
func NewDeduplicator(exclusion record.ExclusionSource, logger logging.Logger) *Deduplicator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Deduplicator{
		exclusion: exclusion,
		logger:    logger.Named("dedup"),
		seen:      make(map[string]string),
		excluded:  make(map[string]bool),
	}
}

// Admit decides whether the single-site record may continue down the
// pipeline.  The error return is reserved for exclusion-source failures,
// which abort the run rather than silently admitting leaked structures.
func (d *Deduplicator) Admit(ctx context.Context, r *record.SingleSiteRecord) (Verdict, error) {
	key := r.CanonicalKey

	if cached, ok := d.excluded[key]; ok {
		if cached {
			return Excluded, nil
		}
	} else if d.exclusion != nil {
		hit, err := d.exclusion.Contains(ctx, key)
		if err != nil {
			return Excluded, err
		}
		d.excluded[key] = hit
		if hit {
			d.logger.Info("structure excluded",
				logging.String("source_id", r.SourceID),
				logging.String("canonical_key", key))
			return Excluded, nil
		}
	}

	if owner, ok := d.seen[key]; ok {
		if owner == r.SourceID {
			return Admitted, nil
		}
		d.logger.Debug("duplicate structure dropped",
			logging.String("source_id", r.SourceID),
			logging.String("first_source_id", owner),
			logging.String("canonical_key", key))
		return Duplicated, nil
	}
	d.seen[key] = r.SourceID
	return Admitted, nil
}

// UniqueStructures returns how many distinct canonical keys were admitted.
func (d *Deduplicator) UniqueStructures() int { return len(d.seen) }
