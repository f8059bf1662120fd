package sharing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("sharing: not found")

type ShareRequestRepository interface {
	// GetOrCreate resolves the envelope for (toEmail, patientID), creating it
	// when none exists. The returned bool is true when a new row was created.
	GetOrCreate(ctx context.Context, req *ShareRequest) (*ShareRequest, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ShareRequest, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string, respondedAt time.Time) error
	ListByRecipient(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error)
	ListByRequester(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error)
}

type RecordShareRepository interface {
	// GetOrCreate resolves the share for (recordID, toUserID), creating it
	// when none exists. The returned bool is true when a new row was created.
	GetOrCreate(ctx context.Context, share *RecordShare) (*RecordShare, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*RecordShare, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string, respondedAt time.Time) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*RecordShare, error)
	// HasShare reports whether a share on the record targets the user in any
	// of the given statuses. Satisfies records.ShareLookup.
	HasShare(ctx context.Context, recordID, userID uuid.UUID, statuses ...string) (bool, error)
}
