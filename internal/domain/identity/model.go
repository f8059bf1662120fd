// Package identity holds the account-side aggregates: users, patients, and
// doctors with their patient rosters. A Patient may exist without a linked
// user account; ingestion creates such patients from recovered names.
package identity

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table.
type User struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Email      string     `db:"email" json:"email"`
	Role       string     `db:"role" json:"role"`
	FirstName  string     `db:"first_name" json:"first_name"`
	LastName   string     `db:"last_name" json:"last_name"`
	MiddleName string     `db:"middle_name" json:"middle_name"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	Birthday   *time.Time `db:"birthday" json:"birthday,omitempty"`
	PhotoRef   *string    `db:"photo_ref" json:"photo_ref,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Patient maps to the patients table. UserID is nil for patients that exist
// only as clinical metadata, before the person ever registers.
type Patient struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UserID     *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FirstName  string     `db:"first_name" json:"first_name"`
	LastName   string     `db:"last_name" json:"last_name"`
	MiddleName string     `db:"middle_name" json:"middle_name"`
	Birthday   *time.Time `db:"birthday" json:"birthday,omitempty"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	Email      *string    `db:"email" json:"email,omitempty"`
	PhotoRef   *string    `db:"photo_ref" json:"photo_ref,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName renders "Last First Middle", skipping empty parts.
func (p *Patient) FullName() string {
	name := p.LastName
	if p.FirstName != "" {
		name += " " + p.FirstName
	}
	if p.MiddleName != "" {
		name += " " + p.MiddleName
	}
	return name
}

// Doctor maps to the doctors table. The patient roster lives in the
// doctor_patients join table and is manipulated through the repository.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	Institution    *string   `db:"institution" json:"institution,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
