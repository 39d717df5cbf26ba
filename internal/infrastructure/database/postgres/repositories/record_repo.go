// Package repositories implements the persistence contracts of the domain
// layer on top of the pgx pool.
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// RecordRepo implements record.RecordRepository on PostgreSQL.  Structures
// and site annotations are stored as JSONB documents.
type RecordRepo struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

func NewRecordRepo(pool *pgxpool.Pool, logger logging.Logger) *RecordRepo {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RecordRepo{pool: pool, logger: logger.Named("record_repo")}
}

func (r *RecordRepo) Save(ctx context.Context, rec *record.MoleculeRecord) error {
	structure, err := json.Marshal(rec.Structure)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshaling structure")
	}
	sites, err := json.Marshal(rec.Sites)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshaling sites")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO molecule_records (source_id, name, structure, sites, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (source_id) DO UPDATE
		SET name = EXCLUDED.name,
		    structure = EXCLUDED.structure,
		    sites = EXCLUDED.sites,
		    updated_at = now()`,
		rec.SourceID, rec.Name, structure, sites)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "saving molecule record")
	}
	return nil
}

func (r *RecordRepo) GetBySourceID(ctx context.Context, sourceID string) (*record.MoleculeRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT source_id, name, structure, sites
		FROM molecule_records WHERE source_id = $1`, sourceID)
	rec, err := scanRecord(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeRecordNotFound, sourceID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading molecule record")
	}
	return rec, nil
}

func (r *RecordRepo) List(ctx context.Context, offset, limit int) ([]*record.MoleculeRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT source_id, name, structure, sites
		FROM molecule_records
		ORDER BY created_at, source_id
		OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing molecule records")
	}
	defer rows.Close()

	var out []*record.MoleculeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning molecule record")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM molecule_records`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "counting molecule records")
	}
	return n, nil
}

// Source returns a record.RecordSource streaming the whole table in batches,
// ordered by insertion time for reproducible runs.
func (r *RecordRepo) Source(batchSize int) *RecordCursor {
	if batchSize < 1 {
		batchSize = 256
	}
	return &RecordCursor{repo: r, batchSize: batchSize}
}

// RecordCursor streams molecule records page by page.
type RecordCursor struct {
	repo      *RecordRepo
	batchSize int
	offset    int
	buf       []*record.MoleculeRecord
	done      bool
}

func (c *RecordCursor) Next(ctx context.Context) (*record.MoleculeRecord, error) {
	if len(c.buf) == 0 && !c.done {
		batch, err := c.repo.List(ctx, c.offset, c.batchSize)
		if err != nil {
			return nil, err
		}
		c.offset += len(batch)
		c.buf = batch
		if len(batch) < c.batchSize {
			c.done = true
		}
	}
	if len(c.buf) == 0 {
		return nil, nil
	}
	rec := c.buf[0]
	c.buf = c.buf[1:]
	return rec, nil
}

func (c *RecordCursor) Close() error { return nil }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*record.MoleculeRecord, error) {
	var (
		rec       record.MoleculeRecord
		structure []byte
		sites     []byte
	)
	if err := row.Scan(&rec.SourceID, &rec.Name, &structure, &sites); err != nil {
		return nil, err
	}
	rec.Structure = &chem.Structure{}
	if err := json.Unmarshal(structure, rec.Structure); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshaling structure")
	}
	if err := json.Unmarshal(sites, &rec.Sites); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshaling sites")
	}
	return &rec, nil
}
