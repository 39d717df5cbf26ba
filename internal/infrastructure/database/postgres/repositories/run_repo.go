package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/ProtonGraph/internal/domain/run"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/internal/pipeline"
	"github.com/turtacn/ProtonGraph/pkg/errors"
	"github.com/turtacn/ProtonGraph/pkg/types/common"
)

// RunRepo implements run.Repository on PostgreSQL.
type RunRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

func NewRunRepo(pool *pgxpool.Pool, logger logging.Logger) *RunRepo {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RunRepo{pool: pool, logger: logger.Named("run_repo")}
}

func (r *RunRepo) Save(ctx context.Context, rn *run.Run) error {
	report, err := marshalReport(rn.Report)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO runs (id, dataset_name, vocabulary_version, source, status,
		                  started_at, finished_at, report, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(rn.ID), rn.DatasetName, rn.VocabularyVersion, rn.Source, string(rn.Status),
		rn.StartedAt, rn.FinishedAt, report, rn.Error, rn.CreatedAt, rn.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "saving run")
	}
	return nil
}

func (r *RunRepo) Update(ctx context.Context, rn *run.Run) error {
	report, err := marshalReport(rn.Report)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = $2, started_at = $3, finished_at = $4, report = $5,
		    error = $6, updated_at = $7
		WHERE id = $1`,
		string(rn.ID), string(rn.Status), rn.StartedAt, rn.FinishedAt, report,
		rn.Error, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "updating run")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeRunNotFound, string(rn.ID))
	}
	return nil
}

func (r *RunRepo) GetByID(ctx context.Context, id common.ID) (*run.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, dataset_name, vocabulary_version, source, status,
		       started_at, finished_at, report, error, created_at, updated_at
		FROM runs WHERE id = $1`, string(id))
	rn, err := scanRun(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeRunNotFound, string(id))
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading run")
	}
	return rn, nil
}

func (r *RunRepo) List(ctx context.Context, offset, limit int) ([]*run.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dataset_name, vocabulary_version, source, status,
		       started_at, finished_at, report, error, created_at, updated_at
		FROM runs ORDER BY created_at DESC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing runs")
	}
	defer rows.Close()

	var out []*run.Run
	for rows.Next() {
		rn, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning run")
		}
		out = append(out, rn)
	}
	return out, rows.Err()
}

func marshalReport(report *pipeline.Report) ([]byte, error) {
	if report == nil {
		return nil, nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshaling run report")
	}
	return b, nil
}

func scanRun(row rowScanner) (*run.Run, error) {
	var (
		rn     run.Run
		id     string
		status string
		report []byte
	)
	if err := row.Scan(&id, &rn.DatasetName, &rn.VocabularyVersion, &rn.Source, &status,
		&rn.StartedAt, &rn.FinishedAt, &report, &rn.Error, &rn.CreatedAt, &rn.UpdatedAt); err != nil {
		return nil, err
	}
	rn.ID = common.ID(id)
	rn.Status = common.RunStatus(status)
	if len(report) > 0 {
		rn.Report = &pipeline.Report{}
		if err := json.Unmarshal(report, rn.Report); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshaling run report")
		}
	}
	return &rn, nil
}
