package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("identity: not found")

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	// GetOrCreateByName resolves a patient by case-insensitive exact match on
	// (last, first), creating one when no match exists. The returned bool is
	// true when a new row was created.
	GetOrCreateByName(ctx context.Context, lastName, firstName, middleName string) (*Patient, bool, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	// AddPatient links a patient to the doctor's roster. Adding an existing
	// link is a no-op (set semantics).
	AddPatient(ctx context.Context, doctorID, patientID uuid.UUID) error
	HasPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error)
}
