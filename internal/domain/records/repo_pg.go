package records

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

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== MedicalRecord Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, patient_id, doctor_id, owner_primary_id, owner_second_id,
	visibility, visit_date, location, notes, created_at, updated_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.OwnerPrimaryID, &m.OwnerSecondID,
		&m.Visibility, &m.VisitDate, &m.Location, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Visibility == "" {
		m.Visibility = VisibilityDraft
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, owner_primary_id, owner_second_id,
			visibility, visit_date, location, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.PatientID, m.DoctorID, m.OwnerPrimaryID, m.OwnerSecondID,
		m.Visibility, m.VisitDate, m.Location, m.Notes)
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
}

func (r *recordRepoPG) Update(ctx context.Context, m *MedicalRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records SET doctor_id=$2, visit_date=$3, location=$4, notes=$5, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.DoctorID, m.VisitDate, m.Location, m.Notes)
	return err
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM medical_records WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectRecords(rows, total)
}

func (r *recordRepoPG) ListByOwner(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_records WHERE owner_primary_id = $1 OR owner_second_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM medical_records WHERE owner_primary_id = $1 OR owner_second_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectRecords(rows, total)
}

func collectRecords(rows pgx.Rows, total int) ([]*MedicalRecord, int, error) {
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

func (r *recordRepoPG) CreateWithFiles(ctx context.Context, m *MedicalRecord, files []*LabFile) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		if err := r.Create(ctx, m); err != nil {
			return err
		}
		fileRepo := fileRepoPG{pool: r.pool}
		for _, f := range files {
			f.RecordID = m.ID
			if err := fileRepo.Create(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *recordRepoPG) SetOwnerSecondIfEmpty(ctx context.Context, recordID, userID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records
		SET owner_second_id = $2, visibility = $3, updated_at = NOW()
		WHERE id = $1 AND owner_second_id IS NULL`,
		recordID, userID, VisibilityConfirmed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *recordRepoPG) MarkShared(ctx context.Context, recordID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records SET visibility = $2, updated_at = NOW()
		WHERE id = $1 AND visibility = $3`,
		recordID, VisibilityShared, VisibilityDraft)
	return err
}

// =========== LabFile Repository ===========

type fileRepoPG struct{ pool *pgxpool.Pool }

func NewFileRepoPG(pool *pgxpool.Pool) FileRepository { return &fileRepoPG{pool: pool} }

func (r *fileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const fileCols = `id, record_id, type, file_name, file_ref, captured_at, uploaded_by, created_at`

func scanFile(row pgx.Row) (*LabFile, error) {
	var f LabFile
	err := row.Scan(&f.ID, &f.RecordID, &f.Type, &f.FileName, &f.FileRef, &f.CapturedAt, &f.UploadedBy, &f.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

func (r *fileRepoPG) Create(ctx context.Context, f *LabFile) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Type == "" {
		f.Type = FileTypeForName(f.FileName)
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_files (id, record_id, type, file_name, file_ref, captured_at, uploaded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		f.ID, f.RecordID, f.Type, f.FileName, f.FileRef, f.CapturedAt, f.UploadedBy)
	return err
}

func (r *fileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabFile, error) {
	return scanFile(r.conn(ctx).QueryRow(ctx, `SELECT `+fileCols+` FROM lab_files WHERE id = $1`, id))
}

func (r *fileRepoPG) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*LabFile, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+fileCols+` FROM lab_files WHERE record_id = $1 ORDER BY created_at`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LabFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, nil
}
