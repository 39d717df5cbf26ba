package dataset

import "context"

// Store persists assembled dataset artifacts.  Put must be atomic: a failed
// write leaves no partial artifact visible under the dataset's name.
type Store interface {
	Put(ctx context.Context, d *Dataset) error
	Get(ctx context.Context, name string) (*Dataset, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}

// LineageRecorder captures the provenance graph of a run: which input
// records produced which samples, and which were rejected and why.
type LineageRecorder interface {
	RecordSample(ctx context.Context, runID string, s *ReactionSample) error
	RecordRejection(ctx context.Context, runID, sourceID string, siteID int, code, reason string) error
}
