// Package sharing implements the share-request / record-share consent
// protocol: a ShareRequest is the envelope inviting one user to access a set
// of a patient's records, and each RecordShare is the per-record grant the
// accept/decline operations act on.
package sharing

import (
	"time"

	"github.com/google/uuid"
)

// Share statuses. Pending is initial; accepted and declined are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// ShareRequest maps to the share_requests table. Unique per
// (to_email, patient_id): re-inviting the same email for the same patient
// reuses the envelope.
type ShareRequest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FromUserID  uuid.UUID  `db:"from_user_id" json:"from_user_id"`
	ToEmail     string     `db:"to_email" json:"to_email"`
	ToUserID    uuid.UUID  `db:"to_user_id" json:"to_user_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Status      string     `db:"status" json:"status"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// RecordShare maps to the record_shares table. Unique per
// (record_id, to_user_id); creation is get-or-create so re-sharing reuses
// the pending row.
type RecordShare struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RequestID   uuid.UUID  `db:"request_id" json:"request_id"`
	RecordID    uuid.UUID  `db:"record_id" json:"record_id"`
	ToUserID    uuid.UUID  `db:"to_user_id" json:"to_user_id"`
	Status      string     `db:"status" json:"status"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
