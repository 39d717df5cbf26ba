package record

import "context"

// RecordSource yields molecule records for a pipeline run.  Implementations
// include the SD-file reader and the Postgres-backed record repository.
type RecordSource interface {
	// Next returns the next record, or (nil, nil) when the source is
	// exhausted.  Implementations must be safe to call from a single
	// goroutine; the runner fans out after this point.
	Next(ctx context.Context) (*MoleculeRecord, error)

	Close() error
}

// ExclusionSource answers whether a canonical structure key belongs to the
// exclusion set (typically the held-out experimental benchmark).
type ExclusionSource interface {
	Contains(ctx context.Context, canonicalKey string) (bool, error)
}

// Predictor annotates a parent structure with ionizable sites.  Used when
// input records arrive without site annotations.
type Predictor interface {
	Predict(ctx context.Context, s *MoleculeRecord) ([]SitePrediction, error)
}

// RecordRepository persists molecule records between ingestion and pipeline
// runs.
type RecordRepository interface {
	Save(ctx context.Context, r *MoleculeRecord) error
	GetBySourceID(ctx context.Context, sourceID string) (*MoleculeRecord, error)
	List(ctx context.Context, offset, limit int) ([]*MoleculeRecord, error)
	Count(ctx context.Context) (int64, error)
}
