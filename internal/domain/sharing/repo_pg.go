package sharing

import (
	"context"
	"errors"
	"time"

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

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== ShareRequest Repository ===========

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) ShareRequestRepository { return &requestRepoPG{pool: pool} }

func (r *requestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `id, from_user_id, to_email, to_user_id, patient_id, status,
	responded_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*ShareRequest, error) {
	var s ShareRequest
	err := row.Scan(&s.ID, &s.FromUserID, &s.ToEmail, &s.ToUserID, &s.PatientID, &s.Status,
		&s.RespondedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *requestRepoPG) GetOrCreate(ctx context.Context, req *ShareRequest) (*ShareRequest, bool, error) {
	existing, err := scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+requestCols+` FROM share_requests
		WHERE lower(to_email) = lower($1) AND patient_id = $2`,
		req.ToEmail, req.PatientID))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	created, err := scanRequest(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO share_requests (id, from_user_id, to_email, to_user_id, patient_id, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (to_email, patient_id) DO UPDATE SET updated_at = NOW()
		RETURNING `+requestCols,
		req.ID, req.FromUserID, req.ToEmail, req.ToUserID, req.PatientID, req.Status))
	if err != nil {
		return nil, false, err
	}
	return created, created.ID == req.ID, nil
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ShareRequest, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM share_requests WHERE id = $1`, id))
}

func (r *requestRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string, respondedAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE share_requests SET status = $2, responded_at = $3, updated_at = NOW()
		WHERE id = $1`, id, status, respondedAt)
	return err
}

func (r *requestRepoPG) ListByRecipient(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error) {
	return r.list(ctx, `to_user_id`, userID, limit, offset)
}

func (r *requestRepoPG) ListByRequester(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error) {
	return r.list(ctx, `from_user_id`, userID, limit, offset)
}

func (r *requestRepoPG) list(ctx context.Context, col string, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM share_requests WHERE `+col+` = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+requestCols+` FROM share_requests WHERE `+col+` = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ShareRequest
	for rows.Next() {
		s, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

// =========== RecordShare Repository ===========

type shareRepoPG struct{ pool *pgxpool.Pool }

func NewShareRepoPG(pool *pgxpool.Pool) RecordShareRepository { return &shareRepoPG{pool: pool} }

func (r *shareRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const shareCols = `id, request_id, record_id, to_user_id, status,
	responded_at, created_at, updated_at`

func scanShare(row pgx.Row) (*RecordShare, error) {
	var s RecordShare
	err := row.Scan(&s.ID, &s.RequestID, &s.RecordID, &s.ToUserID, &s.Status,
		&s.RespondedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *shareRepoPG) GetOrCreate(ctx context.Context, share *RecordShare) (*RecordShare, bool, error) {
	existing, err := scanShare(r.conn(ctx).QueryRow(ctx, `
		SELECT `+shareCols+` FROM record_shares
		WHERE record_id = $1 AND to_user_id = $2`,
		share.RecordID, share.ToUserID))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if share.ID == uuid.Nil {
		share.ID = uuid.New()
	}
	if share.Status == "" {
		share.Status = StatusPending
	}
	created, err := scanShare(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO record_shares (id, request_id, record_id, to_user_id, status)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (record_id, to_user_id) DO UPDATE SET updated_at = NOW()
		RETURNING `+shareCols,
		share.ID, share.RequestID, share.RecordID, share.ToUserID, share.Status))
	if err != nil {
		return nil, false, err
	}
	return created, created.ID == share.ID, nil
}

func (r *shareRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*RecordShare, error) {
	return scanShare(r.conn(ctx).QueryRow(ctx, `SELECT `+shareCols+` FROM record_shares WHERE id = $1`, id))
}

func (r *shareRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string, respondedAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE record_shares SET status = $2, responded_at = $3, updated_at = NOW()
		WHERE id = $1`, id, status, respondedAt)
	return err
}

func (r *shareRepoPG) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*RecordShare, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+shareCols+` FROM record_shares WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RecordShare
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *shareRepoPG) HasShare(ctx context.Context, recordID, userID uuid.UUID, statuses ...string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM record_shares
			WHERE record_id = $1 AND to_user_id = $2 AND status = ANY($3)
		)`, recordID, userID, statuses).Scan(&exists)
	return exists, err
}
