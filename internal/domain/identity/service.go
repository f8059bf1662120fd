package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docere/docere/internal/platform/events"
)

var validRoles = map[string]bool{
	"admin": true, "doctor": true, "patient": true,
}

type Service struct {
	users    UserRepository
	patients PatientRepository
	doctors  DoctorRepository
	sink     events.Sink
	logger   zerolog.Logger
}

func NewService(users UserRepository, patients PatientRepository, doctors DoctorRepository, sink events.Sink, logger zerolog.Logger) *Service {
	return &Service{users: users, patients: patients, doctors: doctors, sink: sink, logger: logger}
}

// RegisterUser creates a user account and publishes a best-effort
// user.registered event. For the patient role a Patient row is linked; for
// the doctor role a Doctor profile is created.
func (s *Service) RegisterUser(ctx context.Context, u *User) error {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if u.Role == "" {
		u.Role = "patient"
	}
	if !validRoles[u.Role] {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("email already registered: %s", u.Email)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}

	var patientID string
	switch u.Role {
	case "patient":
		p, err := s.attachPatient(ctx, u)
		if err != nil {
			return err
		}
		patientID = p.ID.String()
	case "doctor":
		if err := s.doctors.Create(ctx, &Doctor{UserID: u.ID}); err != nil {
			return err
		}
	}

	events.PublishSafe(ctx, s.sink, s.logger, events.Event{
		ID:        uuid.NewString(),
		Type:      "user.registered",
		ActorID:   u.ID.String(),
		PatientID: patientID,
		At:        time.Now().UTC(),
		Props:     map[string]string{"email": u.Email, "role": u.Role},
	})
	return nil
}

// attachPatient links the new account to an existing unclaimed patient with
// the same name, or creates a fresh one.
func (s *Service) attachPatient(ctx context.Context, u *User) (*Patient, error) {
	p, _, err := s.patients.GetOrCreateByName(ctx, u.LastName, u.FirstName, u.MiddleName)
	if err != nil {
		return nil, err
	}
	if p.UserID == nil {
		uid := u.ID
		p.UserID = &uid
		p.Birthday = u.Birthday
		p.Phone = u.Phone
		if p.Email == nil && u.Email != "" {
			email := u.Email
			p.Email = &email
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) DoctorByUser(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByUserID(ctx, userID)
}

func (s *Service) ListDoctorPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.doctors.ListPatients(ctx, doctorID, limit, offset)
}

func (s *Service) AddDoctorPatient(ctx context.Context, doctorID, patientID uuid.UUID) error {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return err
	}
	return s.doctors.AddPatient(ctx, doctorID, patientID)
}
