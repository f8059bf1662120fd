package ingest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue is the in-process job queue feeding ingestion workers. It guarantees
// at-most-one concurrent run per enqueued job id because each id is
// delivered to exactly one worker.
type Queue struct {
	pipeline *Pipeline
	logger   zerolog.Logger
	jobs     chan uuid.UUID
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewQueue(pipeline *Pipeline, logger zerolog.Logger, buffer int) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{
		pipeline: pipeline,
		logger:   logger,
		jobs:     make(chan uuid.UUID, buffer),
	}
}

// Start launches n workers consuming the queue until Close is called and the
// queue drains.
func (q *Queue) Start(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for jobID := range q.jobs {
		if err := q.pipeline.Run(ctx, jobID); err != nil {
			q.logger.Error().Err(err).Str("job_id", jobID.String()).Msg("ingestion failed")
		}
	}
}

// Enqueue submits a job for asynchronous processing. Returns false when the
// queue has been closed or is full; the caller should surface that as a
// retryable condition.
func (q *Queue) Enqueue(jobID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.jobs <- jobID:
		return true
	default:
		return false
	}
}

// Close stops accepting jobs and blocks until in-flight and queued jobs
// finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
