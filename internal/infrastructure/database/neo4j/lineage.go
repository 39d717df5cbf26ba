package neo4j

import (
	"context"
	"strconv"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
)

// LineageRepo writes the provenance graph. The model has three node labels:
//
//	(:Run {id})
//	(:Record {source_id})
//	(:Sample {key})  where key is "<source_id>#<site_id>"
//
// A produced sample links (Run)-[:PRODUCED]->(Sample)<-[:YIELDED]-(Record);
// a rejection links (Run)-[:REJECTED {site_id, code, reason}]->(Record).
type LineageRepo struct {
	driver *Driver
	logger logging.Logger
}

// NewLineageRepo builds a lineage recorder on the shared driver.
func NewLineageRepo(driver *Driver, logger logging.Logger) *LineageRepo {
	return &LineageRepo{driver: driver, logger: logger}
}

var _ dataset.LineageRecorder = (*LineageRepo)(nil)

const recordSampleCypher = `
MERGE (run:Run {id: $run_id})
MERGE (rec:Record {source_id: $source_id})
MERGE (s:Sample {key: $sample_key})
SET s.site_id = $site_id,
    s.canonical_key = $canonical_key,
    s.pka = $pka,
    s.pka_type = $pka_type
MERGE (run)-[:PRODUCED]->(s)
MERGE (rec)-[:YIELDED]->(s)
`

// RecordSample stores the provenance of one produced sample.
func (r *LineageRepo) RecordSample(ctx context.Context, runID string, s *dataset.ReactionSample) error {
	params := map[string]any{
		"run_id":        runID,
		"source_id":     s.SourceID,
		"sample_key":    s.SourceID + "#" + strconv.Itoa(s.SiteID),
		"site_id":       s.SiteID,
		"canonical_key": s.CanonicalKey,
		"pka":           s.PKa,
		"pka_type":      s.PKaType,
	}
	_, err := r.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		return tx.Run(ctx, recordSampleCypher, params)
	})
	return err
}

const recordRejectionCypher = `
MERGE (run:Run {id: $run_id})
MERGE (rec:Record {source_id: $source_id})
CREATE (run)-[:REJECTED {site_id: $site_id, code: $code, reason: $reason}]->(rec)
`

// RecordRejection stores why a site of a record produced no sample. siteID
// is -1 when the whole record was rejected.
func (r *LineageRepo) RecordRejection(ctx context.Context, runID, sourceID string, siteID int, code, reason string) error {
	params := map[string]any{
		"run_id":    runID,
		"source_id": sourceID,
		"site_id":   siteID,
		"code":      code,
		"reason":    reason,
	}
	_, err := r.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		return tx.Run(ctx, recordRejectionCypher, params)
	})
	return err
}
