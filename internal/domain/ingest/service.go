package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/docere/docere/internal/platform/blobstore"
)

// ErrQueueFull is returned when a job cannot be enqueued right now.
var ErrQueueFull = errors.New("ingest: queue full")

type Service struct {
	jobs  JobRepository
	blobs blobstore.BlobStore
	queue *Queue
}

func NewService(jobs JobRepository, blobs blobstore.BlobStore, queue *Queue) *Service {
	return &Service{jobs: jobs, blobs: blobs, queue: queue}
}

// SubmitArchive validates the upload, stores it, creates the pending job,
// and enqueues it. Validation failures here mean no job row is ever created.
func (s *Service) SubmitArchive(ctx context.Context, submittedBy uuid.UUID, fileName string, content io.Reader) (*ArchiveJob, error) {
	if !strings.HasSuffix(strings.ToLower(fileName), ".zip") {
		return nil, fmt.Errorf("only ZIP archives are accepted, got %q", fileName)
	}

	meta, err := s.blobs.Save(ctx, fileName, content)
	if err != nil {
		return nil, fmt.Errorf("store archive: %w", err)
	}

	job := &ArchiveJob{
		ID:          uuid.New(),
		SubmittedBy: submittedBy,
		ArchiveName: fileName,
		ArchiveRef:  meta.Ref,
		Status:      StatusPending,
		RawExtracted: RawExtracted{
			Names:  []string{},
			Dates:  []string{},
			Phones: []string{},
			Emails: []string{},
		},
	}
	job.AppendLog("archive accepted: %s (%d bytes)", fileName, meta.Size)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if !s.queue.Enqueue(job.ID) {
		return nil, ErrQueueFull
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*ArchiveJob, error) {
	return s.jobs.GetByID(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, submittedBy uuid.UUID, limit, offset int) ([]*ArchiveJob, int, error) {
	return s.jobs.ListBySubmitter(ctx, submittedBy, limit, offset)
}
