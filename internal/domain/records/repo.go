package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("records: not found")

type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Update(ctx context.Context, r *MedicalRecord) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
	ListByOwner(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)

	// CreateWithFiles persists the record and all its lab files as one atomic
	// unit: either everything lands or nothing does.
	CreateWithFiles(ctx context.Context, r *MedicalRecord, files []*LabFile) error

	// SetOwnerSecondIfEmpty assigns owner_second and promotes visibility to
	// confirmed, but only when owner_second is still unset. Returns true when
	// this call won the assignment. The check-and-write is a single
	// conditional update so concurrent acceptances cannot both win.
	SetOwnerSecondIfEmpty(ctx context.Context, recordID, userID uuid.UUID) (bool, error)

	// MarkShared promotes visibility draft -> shared; a no-op when the record
	// is already shared or confirmed.
	MarkShared(ctx context.Context, recordID uuid.UUID) error
}

type FileRepository interface {
	Create(ctx context.Context, f *LabFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabFile, error)
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*LabFile, error)
}
