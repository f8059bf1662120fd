package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("ingest: not found")

type JobRepository interface {
	Create(ctx context.Context, j *ArchiveJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*ArchiveJob, error)
	// Update persists the job's mutable fields: status, log, raw_extracted,
	// record_id, completed_at.
	Update(ctx context.Context, j *ArchiveJob) error
	ListBySubmitter(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ArchiveJob, int, error)
}
