package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docere/docere/internal/domain/identity"
	"github.com/docere/docere/internal/domain/records"
	"github.com/docere/docere/internal/extract"
	"github.com/docere/docere/internal/platform/blobstore"
)

// ErrNoNamesFound marks the business failure of an archive with zero
// extractable person names: the job fails, no record is created.
var ErrNoNamesFound = errors.New("ingest: no person names found in archive")

// Pipeline converts one ArchiveJob's uploaded ZIP into a MedicalRecord with
// attached lab files. Each job is processed by exactly one run; re-running a
// job is tolerated because every persistence step is idempotent or
// conditional.
type Pipeline struct {
	jobs     JobRepository
	records  records.Repository
	patients identity.PatientRepository
	doctors  identity.DoctorRepository
	blobs    blobstore.BlobStore
	splitter extract.NameSplitter
	logger   zerolog.Logger
}

func NewPipeline(
	jobs JobRepository,
	recs records.Repository,
	patients identity.PatientRepository,
	doctors identity.DoctorRepository,
	blobs blobstore.BlobStore,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		jobs:     jobs,
		records:  recs,
		patients: patients,
		doctors:  doctors,
		blobs:    blobs,
		splitter: extract.WhitespaceSplitter{},
		logger:   logger,
	}
}

// Run executes the full ingestion for one job. The job record is the durable
// outcome signal: on any failure it ends failed with the error in its log.
// Unexpected failures are additionally returned to the caller so worker
// infrastructure can alert or retry; the no-names business failure is not.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	job.Status = StatusProcessing
	job.AppendLog("processing started: %s", job.ArchiveName)
	if err := p.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist processing status: %w", err)
	}

	err = p.process(ctx, job)
	if err != nil {
		now := time.Now().UTC()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.AppendLog("failed: %v", err)
		if uerr := p.jobs.Update(ctx, job); uerr != nil {
			p.logger.Error().Err(uerr).Str("job_id", job.ID.String()).Msg("persist failed status")
		}
		if errors.Is(err, ErrNoNamesFound) {
			// Expected, recoverable-by-resubmission outcome. The snapshot on
			// the job lets a human create the record manually.
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	job.Status = StatusDone
	job.CompletedAt = &now
	job.AppendLog("done: record %s", job.RecordID)
	return p.jobs.Update(ctx, job)
}

func (p *Pipeline) process(ctx context.Context, job *ArchiveJob) error {
	workspace, err := os.MkdirTemp("", "ingest-"+job.ID.String())
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	extracted, err := p.extractArchive(ctx, job, workspace)
	if err != nil {
		return err
	}

	raw := p.scanEntities(job, extracted)
	job.RawExtracted = raw
	job.AppendLog("extracted: %d names, %d dates, %d phones, %d emails",
		len(raw.Names), len(raw.Dates), len(raw.Phones), len(raw.Emails))
	if err := p.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist raw_extracted: %w", err)
	}

	if len(raw.Names) == 0 {
		return ErrNoNamesFound
	}

	fullName := mostFrequent(raw.Names)
	last, first, middle := p.splitter.Split(fullName)
	patient, created, err := p.patients.GetOrCreateByName(ctx, last, first, middle)
	if err != nil {
		return fmt.Errorf("resolve patient: %w", err)
	}
	if created {
		job.AppendLog("created patient %s (%s)", patient.ID, fullName)
	} else {
		job.AppendLog("matched existing patient %s (%s)", patient.ID, fullName)
	}

	var doctorID *uuid.UUID
	doc, err := p.doctors.GetByUserID(ctx, job.SubmittedBy)
	switch {
	case err == nil:
		doctorID = &doc.ID
		if err := p.doctors.AddPatient(ctx, doc.ID, patient.ID); err != nil {
			return fmt.Errorf("attach patient to doctor: %w", err)
		}
		job.AppendLog("patient attached to doctor %s", doc.ID)
	case !errors.Is(err, identity.ErrNotFound):
		return fmt.Errorf("resolve submitter doctor profile: %w", err)
	}

	files, err := p.materializeFiles(ctx, job, extracted)
	if err != nil {
		return err
	}

	rec := &records.MedicalRecord{
		PatientID:      patient.ID,
		DoctorID:       doctorID,
		OwnerPrimaryID: job.SubmittedBy,
		Visibility:     records.VisibilityDraft,
	}
	if err := p.records.CreateWithFiles(ctx, rec, files); err != nil {
		return fmt.Errorf("create record with files: %w", err)
	}
	job.RecordID = &rec.ID
	job.AppendLog("created record %s with %d files", rec.ID, len(files))
	return nil
}

// extractArchive unpacks the stored archive into the workspace, decoding
// each entry name and refusing any entry that would resolve outside the
// workspace root. A rejected or undecodable entry never aborts the rest.
func (p *Pipeline) extractArchive(ctx context.Context, job *ArchiveJob, workspace string) ([]string, error) {
	blob, _, err := p.blobs.Open(ctx, job.ArchiveRef)
	if err != nil {
		return nil, fmt.Errorf("open archive blob: %w", err)
	}
	defer blob.Close()

	// archive/zip needs random access; spool the blob to a local file.
	spool, err := os.CreateTemp(workspace, "archive-*.zip")
	if err != nil {
		return nil, fmt.Errorf("spool archive: %w", err)
	}
	defer spool.Close()
	if _, err := io.Copy(spool, blob); err != nil {
		return nil, fmt.Errorf("spool archive: %w", err)
	}

	reader, err := zip.OpenReader(spool.Name())
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	root := filepath.Join(workspace, "extracted")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	var extracted []string
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := extract.DecodeFilename(entry.Name)
		dest := filepath.Join(root, filepath.FromSlash(name))
		if !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			job.AppendLog("rejected entry outside workspace: %s", entry.Name)
			continue
		}
		if err := writeEntry(entry, dest); err != nil {
			job.AppendLog("skipped entry %s: %v", name, err)
			continue
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func writeEntry(entry *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

// scanEntities runs all four extractors over every extracted file's
// extension-stripped name plus the archive's own basename, pooling results
// across the whole job.
func (p *Pipeline) scanEntities(job *ArchiveJob, extracted []string) RawExtracted {
	raw := RawExtracted{
		Names:  []string{},
		Dates:  []string{},
		Phones: []string{},
		Emails: []string{},
	}

	sources := []string{stripExt(extract.DecodeFilename(job.ArchiveName))}
	for _, path := range extracted {
		sources = append(sources, stripExt(filepath.Base(path)))
	}

	for _, text := range sources {
		raw.Names = append(raw.Names, extract.PersonNames(text)...)
		raw.Dates = append(raw.Dates, extract.Dates(text)...)
		raw.Phones = append(raw.Phones, extract.Phones(text)...)
		raw.Emails = append(raw.Emails, extract.Emails(text)...)
	}
	return raw
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// mostFrequent returns the most common name, ties broken by first
// appearance.
func mostFrequent(names []string) string {
	counts := make(map[string]int, len(names))
	firstSeen := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := firstSeen[n]; !ok {
			firstSeen[n] = i
		}
		counts[n]++
	}
	best := names[0]
	for _, n := range names {
		if counts[n] > counts[best] || (counts[n] == counts[best] && firstSeen[n] < firstSeen[best]) {
			best = n
		}
	}
	return best
}

// materializeFiles stores every extracted file's bytes in the blob store and
// builds the LabFile rows for the record.
func (p *Pipeline) materializeFiles(ctx context.Context, job *ArchiveJob, extracted []string) ([]*records.LabFile, error) {
	var files []*records.LabFile
	for _, path := range extracted {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read extracted file: %w", err)
		}
		name := filepath.Base(path)
		meta, err := p.blobs.Save(ctx, name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("store file %s: %w", name, err)
		}
		files = append(files, &records.LabFile{
			Type:       records.FileTypeForName(name),
			FileName:   name,
			FileRef:    meta.Ref,
			UploadedBy: job.SubmittedBy,
		})
	}
	return files, nil
}
