package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/docere/docere/internal/domain/identity"
	"github.com/docere/docere/internal/platform/auth"
)

// ErrForbidden is returned when the acting user may not view a record.
var ErrForbidden = errors.New("records: access denied")

type Service struct {
	repo     Repository
	files    FileRepository
	access   *Access
	doctors  identity.DoctorRepository
	patients identity.PatientRepository
}

func NewService(repo Repository, files FileRepository, access *Access, doctors identity.DoctorRepository, patients identity.PatientRepository) *Service {
	return &Service{repo: repo, files: files, access: access, doctors: doctors, patients: patients}
}

// ResolveActor builds the capability-check principal for a user, attaching
// doctor/patient profile ids when they exist.
func (s *Service) ResolveActor(ctx context.Context, userID uuid.UUID, role string) (Actor, error) {
	actor := Actor{UserID: userID, Role: role}
	if doc, err := s.doctors.GetByUserID(ctx, userID); err == nil {
		actor.DoctorID = &doc.ID
	} else if !errors.Is(err, identity.ErrNotFound) {
		return Actor{}, err
	}
	if p, err := s.patients.GetByUserID(ctx, userID); err == nil {
		actor.PatientID = &p.ID
	} else if !errors.Is(err, identity.ErrNotFound) {
		return Actor{}, err
	}
	return actor, nil
}

func (s *Service) CreateRecord(ctx context.Context, m *MedicalRecord) error {
	if m.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if m.OwnerPrimaryID == uuid.Nil {
		return fmt.Errorf("owner_primary_id is required")
	}
	if m.Visibility == "" {
		m.Visibility = VisibilityDraft
	}
	return s.repo.Create(ctx, m)
}

// GetRecord fetches a record the actor is allowed to view.
func (s *Service) GetRecord(ctx context.Context, actor Actor, id uuid.UUID) (*MedicalRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.access.For(ctx, actor, rec)
	if err != nil {
		return nil, err
	}
	if !c.CanView {
		return nil, ErrForbidden
	}
	return rec, nil
}

// ListPatientRecords lists a patient's records filtered down to those the
// actor may view.
func (s *Service) ListPatientRecords(ctx context.Context, actor Actor, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	recs, _, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	visible, err := s.access.Filter(ctx, actor, recs)
	if err != nil {
		return nil, 0, err
	}
	return visible, len(visible), nil
}

// ListRecordFiles lists the lab files of a record the actor may view.
func (s *Service) ListRecordFiles(ctx context.Context, actor Actor, recordID uuid.UUID) ([]*LabFile, error) {
	if _, err := s.GetRecord(ctx, actor, recordID); err != nil {
		return nil, err
	}
	return s.files.ListByRecord(ctx, recordID)
}

// UpdateRecord lets an owner fill in the fields ingestion cannot derive
// (visit date, location, notes).
func (s *Service) UpdateRecord(ctx context.Context, actor Actor, m *MedicalRecord) error {
	existing, err := s.repo.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if actor.Role != auth.RoleAdmin && !existing.IsOwner(actor.UserID) {
		return ErrForbidden
	}
	existing.VisitDate = m.VisitDate
	existing.Location = m.Location
	existing.Notes = m.Notes
	existing.DoctorID = m.DoctorID
	return s.repo.Update(ctx, existing)
}
