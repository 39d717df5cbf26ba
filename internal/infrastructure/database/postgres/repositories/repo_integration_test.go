//go:build integration

// Integration tests for the PostgreSQL repositories.  They require Docker
// and are gated behind the "integration" build tag.
package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/domain/run"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ProtonGraph/internal/pipeline"
	"github.com/turtacn/ProtonGraph/pkg/errors"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
)

const migrationsURL = "file://../../../../../migrations"

// startPostgres launches a PostgreSQL 16 container, applies the schema
// migrations, and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "protongraph_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/protongraph_test?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.RunMigrations(dsn, migrationsURL))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func testStructure(charge int) *chem.Structure {
	return &chem.Structure{
		Atoms: []chem.Atom{
			{Element: "C", Hybridization: chem.HybridSP3, ImplicitH: 3},
			{Element: "C", Hybridization: chem.HybridSP2},
			{Element: "O", Hybridization: chem.HybridSP2},
			{Element: "O", Hybridization: chem.HybridSP3, FormalCharge: charge, ImplicitH: 1 + charge},
		},
		Bonds: []chem.Bond{
			{A: 0, B: 1, Order: chem.BondSingle},
			{A: 1, B: 2, Order: chem.BondDouble},
			{A: 1, B: 3, Order: chem.BondSingle},
		},
	}
}

func testRecord(sourceID string) *record.MoleculeRecord {
	return &record.MoleculeRecord{
		SourceID:  sourceID,
		Name:      "acetic acid",
		Structure: testStructure(0),
		Sites: []record.SiteAnnotation{
			{
				SiteID:       0,
				AtomIndex:    3,
				PKa:          4.76,
				Type:         record.PKaAcidic,
				Protonated:   testStructure(0),
				Deprotonated: testStructure(-1),
			},
		},
	}
}

func TestRunRepoLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewRunRepo(pool, nil)

	r := run.New("chembl-v1", "v1", "records")
	require.NoError(t, repo.Save(ctx, r))

	got, err := repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "chembl-v1", got.DatasetName)
	assert.Equal(t, common.RunPending, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.Report)

	r.Start()
	require.NoError(t, repo.Update(ctx, r))

	r.Complete(&pipeline.Report{RecordsRead: 12, SitesSeen: 20, Samples: 17, Deduplicated: 3})
	require.NoError(t, repo.Update(ctx, r))

	got, err = repo.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, common.RunCompleted, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.Report)
	assert.Equal(t, 17, got.Report.Samples)
	assert.Equal(t, 3, got.Report.Deduplicated)
}

func TestRunRepoNotFound(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewRunRepo(pool, nil)

	_, err := repo.GetByID(ctx, common.NewID())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunNotFound, errors.GetCode(err))

	missing := run.New("ghost", "v1", "records")
	missing.Start()
	err = repo.Update(ctx, missing)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunNotFound, errors.GetCode(err))
}

func TestRunRepoList(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewRunRepo(pool, nil)

	for i := 0; i < 3; i++ {
		r := run.New(fmt.Sprintf("ds-%d", i), "v1", "records")
		require.NoError(t, repo.Save(ctx, r))
	}

	all, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestRecordRepoRoundTrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewRecordRepo(pool, nil)

	rec := testRecord("mol-1")
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetBySourceID(ctx, "mol-1")
	require.NoError(t, err)
	assert.Equal(t, "acetic acid", got.Name)
	require.NotNil(t, got.Structure)
	assert.Equal(t, 4, got.Structure.NumAtoms())
	require.Len(t, got.Sites, 1)
	assert.Equal(t, 4.76, got.Sites[0].PKa)
	assert.Equal(t, record.PKaAcidic, got.Sites[0].Type)
	require.NotNil(t, got.Sites[0].Deprotonated)
	assert.Equal(t, -1, got.Sites[0].Deprotonated.Atoms[3].FormalCharge)

	// Saving the same source ID again upserts rather than duplicating.
	rec.Name = "ethanoic acid"
	require.NoError(t, repo.Save(ctx, rec))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err = repo.GetBySourceID(ctx, "mol-1")
	require.NoError(t, err)
	assert.Equal(t, "ethanoic acid", got.Name)
}

func TestRecordRepoNotFound(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewRecordRepo(pool, nil)

	_, err := repo.GetBySourceID(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRecordNotFound, errors.GetCode(err))
}

func TestRecordCursorStreamsAllRecords(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewRecordRepo(pool, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, testRecord(fmt.Sprintf("mol-%d", i))))
	}

	cursor := repo.Source(2)
	defer cursor.Close()

	seen := map[string]bool{}
	for {
		rec, err := cursor.Next(ctx)
		require.NoError(t, err)
		if rec == nil {
			break
		}
		seen[rec.SourceID] = true
	}
	assert.Len(t, seen, 5)
}
