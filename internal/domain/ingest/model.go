// Package ingest turns an uploaded ZIP archive of scanned documents into a
// structured medical record: safe extraction, entity recovery from
// filenames, patient resolution, and atomic record+file creation, all
// tracked on a durable ArchiveJob the client polls.
package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArchiveJob lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// RawExtracted is the forensic snapshot of everything the extractors found,
// persisted verbatim even when the job later fails.
type RawExtracted struct {
	Names  []string `json:"names"`
	Dates  []string `json:"dates"`
	Phones []string `json:"phones"`
	Emails []string `json:"emails"`
}

// ArchiveJob maps to the archive_jobs table. Log is append-only; each run of
// the pipeline is the job's sole writer.
type ArchiveJob struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	SubmittedBy  uuid.UUID    `db:"submitted_by" json:"submitted_by"`
	ArchiveName  string       `db:"archive_name" json:"archive_name"`
	ArchiveRef   string       `db:"archive_ref" json:"archive_ref"`
	Status       string       `db:"status" json:"status"`
	Log          string       `db:"log" json:"log"`
	RawExtracted RawExtracted `db:"raw_extracted" json:"raw_extracted"`
	RecordID     *uuid.UUID   `db:"record_id" json:"record_id,omitempty"`
	CompletedAt  *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// AppendLog adds one timestamped line to the job log.
func (j *ArchiveJob) AppendLog(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	j.Log += fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line)
}
