// Package records holds the MedicalRecord aggregate, its attached lab files,
// and the consolidated read-access predicate shared by every surface that
// lists or fetches records.
package records

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record visibility states. A record starts as a draft visible only to its
// primary owner, becomes shared once a share exists, and is confirmed once a
// cross-role acceptance assigns owner_second. Confirmed is terminal.
const (
	VisibilityDraft     = "draft"
	VisibilityShared    = "shared"
	VisibilityConfirmed = "confirmed"
)

// LabFile type tags.
const (
	FileTypePhoto = "photo"
	FileTypeScan  = "scan"
	FileTypeOther = "other"
)

// MedicalRecord maps to the medical_records table.
type MedicalRecord struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID       *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	OwnerPrimaryID uuid.UUID  `db:"owner_primary_id" json:"owner_primary_id"`
	OwnerSecondID  *uuid.UUID `db:"owner_second_id" json:"owner_second_id,omitempty"`
	Visibility     string     `db:"visibility" json:"visibility"`
	VisitDate      *time.Time `db:"visit_date" json:"visit_date,omitempty"`
	Location       string     `db:"location" json:"location"`
	Notes          string     `db:"notes" json:"notes"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// IsOwner reports whether userID is the record's primary or second owner.
func (r *MedicalRecord) IsOwner(userID uuid.UUID) bool {
	if r.OwnerPrimaryID == userID {
		return true
	}
	return r.OwnerSecondID != nil && *r.OwnerSecondID == userID
}

// LabFile maps to the lab_files table. FileRef is the blob store reference.
type LabFile struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	RecordID   uuid.UUID  `db:"record_id" json:"record_id"`
	Type       string     `db:"type" json:"type"`
	FileName   string     `db:"file_name" json:"file_name"`
	FileRef    string     `db:"file_ref" json:"file_ref"`
	CapturedAt *time.Time `db:"captured_at" json:"captured_at,omitempty"`
	UploadedBy uuid.UUID  `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// FileTypeForName classifies an attachment by extension: recognized image
// extensions are photos, everything else is a scan.
func FileTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return FileTypePhoto
	default:
		return FileTypeScan
	}
}
