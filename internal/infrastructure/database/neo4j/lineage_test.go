package neo4j

import (
	"context"
	"testing"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtonGraph/internal/domain/dataset"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

type capturedQuery struct {
	cypher string
	params map[string]any
}

type fakeTransaction struct {
	queries *[]capturedQuery
	runErr  error
}

func (t *fakeTransaction) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	if t.runErr != nil {
		return nil, t.runErr
	}
	*t.queries = append(*t.queries, capturedQuery{cypher: cypher, params: params})
	return nil, nil
}

type fakeSession struct {
	queries *[]capturedQuery
	runErr  error
	closed  bool
}

func (s *fakeSession) ExecuteRead(_ context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(&fakeTransaction{queries: s.queries, runErr: s.runErr})
}

func (s *fakeSession) ExecuteWrite(_ context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(&fakeTransaction{queries: s.queries, runErr: s.runErr})
}

func (s *fakeSession) Close(context.Context) error {
	s.closed = true
	return nil
}

type fakeDriver struct {
	queries []capturedQuery
	runErr  error
}

func (d *fakeDriver) VerifyConnectivity(context.Context) error { return nil }

func (d *fakeDriver) NewSession(_ context.Context, _ neo4jdrv.SessionConfig) internalSession {
	return &fakeSession{queries: &d.queries, runErr: d.runErr}
}

func (d *fakeDriver) Close(context.Context) error { return nil }

func testLineageRepo(fd *fakeDriver) *LineageRepo {
	drv := &Driver{driver: fd, logger: logging.NewNopLogger()}
	return NewLineageRepo(drv, logging.NewNopLogger())
}

func TestRecordSample(t *testing.T) {
	fd := &fakeDriver{}
	repo := testLineageRepo(fd)

	err := repo.RecordSample(context.Background(), "run-1", &dataset.ReactionSample{
		SourceID:     "mol-7",
		SiteID:       2,
		CanonicalKey: "abc123",
		PKa:          4.76,
		PKaType:      string(record.PKaAcidic),
	})
	require.NoError(t, err)
	require.Len(t, fd.queries, 1)

	params := fd.queries[0].params
	assert.Equal(t, "run-1", params["run_id"])
	assert.Equal(t, "mol-7", params["source_id"])
	assert.Equal(t, "mol-7#2", params["sample_key"])
	assert.Equal(t, 4.76, params["pka"])
	assert.Equal(t, "acidic", params["pka_type"])
}

func TestRecordRejection(t *testing.T) {
	fd := &fakeDriver{}
	repo := testLineageRepo(fd)

	err := repo.RecordRejection(context.Background(), "run-1", "mol-9", 0, "PIPE_002", "atom correspondence unresolvable")
	require.NoError(t, err)
	require.Len(t, fd.queries, 1)

	params := fd.queries[0].params
	assert.Equal(t, "mol-9", params["source_id"])
	assert.Equal(t, 0, params["site_id"])
	assert.Equal(t, "PIPE_002", params["code"])
}

func TestRecordSampleWriteFailure(t *testing.T) {
	fd := &fakeDriver{runErr: errors.New(errors.ErrCodeInternal, "connection reset")}
	repo := testLineageRepo(fd)

	err := repo.RecordSample(context.Background(), "run-1", &dataset.ReactionSample{SourceID: "mol-7"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatabaseError, errors.GetCode(err))
}
