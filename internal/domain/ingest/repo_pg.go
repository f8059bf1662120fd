package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docere/docere/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type jobRepoPG struct{ pool *pgxpool.Pool }

func NewJobRepoPG(pool *pgxpool.Pool) JobRepository { return &jobRepoPG{pool: pool} }

func (r *jobRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const jobCols = `id, submitted_by, archive_name, archive_ref, status, log,
	raw_extracted, record_id, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*ArchiveJob, error) {
	var j ArchiveJob
	err := row.Scan(&j.ID, &j.SubmittedBy, &j.ArchiveName, &j.ArchiveRef, &j.Status, &j.Log,
		&j.RawExtracted, &j.RecordID, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *jobRepoPG) Create(ctx context.Context, j *ArchiveJob) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO archive_jobs (id, submitted_by, archive_name, archive_ref, status, log, raw_extracted)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		j.ID, j.SubmittedBy, j.ArchiveName, j.ArchiveRef, j.Status, j.Log, j.RawExtracted)
	return err
}

func (r *jobRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ArchiveJob, error) {
	return scanJob(r.conn(ctx).QueryRow(ctx, `SELECT `+jobCols+` FROM archive_jobs WHERE id = $1`, id))
}

func (r *jobRepoPG) Update(ctx context.Context, j *ArchiveJob) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE archive_jobs SET status=$2, log=$3, raw_extracted=$4, record_id=$5, completed_at=$6, updated_at=NOW()
		WHERE id = $1`,
		j.ID, j.Status, j.Log, j.RawExtracted, j.RecordID, j.CompletedAt)
	return err
}

func (r *jobRepoPG) ListBySubmitter(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ArchiveJob, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM archive_jobs WHERE submitted_by = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+jobCols+` FROM archive_jobs WHERE submitted_by = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ArchiveJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, j)
	}
	return items, total, nil
}
