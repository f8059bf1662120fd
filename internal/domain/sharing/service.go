package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docere/docere/internal/domain/identity"
	"github.com/docere/docere/internal/domain/records"
	"github.com/docere/docere/internal/platform/auth"
)

var (
	// ErrNotRecipient is returned when a user other than the share's
	// recipient tries to respond to it.
	ErrNotRecipient = errors.New("sharing: not the share recipient")
	// ErrAlreadyResolved is returned when a terminal share is asked to move
	// to the opposite terminal state.
	ErrAlreadyResolved = errors.New("sharing: share already resolved")
)

// RecordsNotAllowedError enumerates the record ids that failed the ownership
// or patient check during share creation. Creation is all-or-nothing: one
// offending id rejects the whole request before anything is persisted.
type RecordsNotAllowedError struct {
	RecordIDs []uuid.UUID
}

func (e *RecordsNotAllowedError) Error() string {
	ids := make([]string, len(e.RecordIDs))
	for i, id := range e.RecordIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("sharing: records not allowed: %s", strings.Join(ids, ", "))
}

type Service struct {
	requests ShareRequestRepository
	shares   RecordShareRepository
	records  records.Repository
	users    identity.UserRepository
	doctors  identity.DoctorRepository
	patients identity.PatientRepository
}

func NewService(
	requests ShareRequestRepository,
	shares RecordShareRepository,
	recs records.Repository,
	users identity.UserRepository,
	doctors identity.DoctorRepository,
	patients identity.PatientRepository,
) *Service {
	return &Service{
		requests: requests,
		shares:   shares,
		records:  recs,
		users:    users,
		doctors:  doctors,
		patients: patients,
	}
}

// CreateShare validates that the requester owns every listed record and that
// each record belongs to the declared patient, then creates (or reuses) the
// envelope and one RecordShare per record. Validation runs in full before
// any persistence; offending ids abort the whole creation.
func (s *Service) CreateShare(ctx context.Context, fromUserID, patientID uuid.UUID, toEmail string, recordIDs []uuid.UUID) (*ShareRequest, []*RecordShare, error) {
	toEmail = strings.TrimSpace(strings.ToLower(toEmail))
	if toEmail == "" {
		return nil, nil, fmt.Errorf("to_email is required")
	}
	if len(recordIDs) == 0 {
		return nil, nil, fmt.Errorf("record_ids is required")
	}

	recipient, err := s.users.GetByEmail(ctx, toEmail)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, nil, fmt.Errorf("recipient is not registered: %s", toEmail)
		}
		return nil, nil, err
	}
	if recipient.ID == fromUserID {
		return nil, nil, fmt.Errorf("cannot share records with yourself")
	}

	var offending []uuid.UUID
	var toShare []*records.MedicalRecord
	for _, id := range recordIDs {
		rec, err := s.records.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, records.ErrNotFound) {
				offending = append(offending, id)
				continue
			}
			return nil, nil, err
		}
		if !rec.IsOwner(fromUserID) || rec.PatientID != patientID {
			offending = append(offending, id)
			continue
		}
		toShare = append(toShare, rec)
	}
	if len(offending) > 0 {
		return nil, nil, &RecordsNotAllowedError{RecordIDs: offending}
	}

	req, _, err := s.requests.GetOrCreate(ctx, &ShareRequest{
		FromUserID: fromUserID,
		ToEmail:    toEmail,
		ToUserID:   recipient.ID,
		PatientID:  patientID,
	})
	if err != nil {
		return nil, nil, err
	}

	var created []*RecordShare
	for _, rec := range toShare {
		share, _, err := s.shares.GetOrCreate(ctx, &RecordShare{
			RequestID: req.ID,
			RecordID:  rec.ID,
			ToUserID:  recipient.ID,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := s.records.MarkShared(ctx, rec.ID); err != nil {
			return nil, nil, err
		}
		created = append(created, share)
	}
	return req, created, nil
}

// AcceptRecordShare runs the acceptance state machine for one share:
//   - already accepted: no-op;
//   - cross-role (doctor<->patient): assign owner_second via the store's
//     conditional update (only the first acceptance on a record ever wins),
//     then synchronize the doctor's patient roster;
//   - same-role: promote record visibility to shared at most;
//   - in every branch, mark this share accepted.
func (s *Service) AcceptRecordShare(ctx context.Context, share *RecordShare) error {
	if share.Status == StatusAccepted {
		return nil
	}
	if share.Status == StatusDeclined {
		return ErrAlreadyResolved
	}

	rec, err := s.records.GetByID(ctx, share.RecordID)
	if err != nil {
		return err
	}
	owner, err := s.users.GetByID(ctx, rec.OwnerPrimaryID)
	if err != nil {
		return err
	}
	recipient, err := s.users.GetByID(ctx, share.ToUserID)
	if err != nil {
		return err
	}

	if crossRole(owner.Role, recipient.Role) {
		if _, err := s.records.SetOwnerSecondIfEmpty(ctx, rec.ID, recipient.ID); err != nil {
			return err
		}
		if err := s.syncRoster(ctx, owner, recipient, rec.PatientID); err != nil {
			return err
		}
	} else {
		if err := s.records.MarkShared(ctx, rec.ID); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if err := s.shares.SetStatus(ctx, share.ID, StatusAccepted, now); err != nil {
		return err
	}
	share.Status = StatusAccepted
	share.RespondedAt = &now
	return nil
}

// DeclineRecordShare marks the share declined. Declining an already declined
// share is a no-op; a previously accepted share cannot be declined.
func (s *Service) DeclineRecordShare(ctx context.Context, share *RecordShare) error {
	if share.Status == StatusDeclined {
		return nil
	}
	if share.Status == StatusAccepted {
		return ErrAlreadyResolved
	}
	now := time.Now().UTC()
	if err := s.shares.SetStatus(ctx, share.ID, StatusDeclined, now); err != nil {
		return err
	}
	share.Status = StatusDeclined
	share.RespondedAt = &now
	return nil
}

func crossRole(a, b string) bool {
	return (a == auth.RoleDoctor && b == auth.RolePatient) ||
		(a == auth.RolePatient && b == auth.RoleDoctor)
}

// syncRoster adds the record's patient to the doctor-side user's roster.
// Skipped silently when either profile is missing; roster add is set-add so
// repeated acceptances do not duplicate the link.
func (s *Service) syncRoster(ctx context.Context, owner, recipient *identity.User, patientID uuid.UUID) error {
	doctorUser := owner
	if recipient.Role == auth.RoleDoctor {
		doctorUser = recipient
	}
	doc, err := s.doctors.GetByUserID(ctx, doctorUser.ID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.doctors.AddPatient(ctx, doc.ID, patientID)
}

// RespondToRequest accepts or declines an envelope on behalf of its
// recipient. Accepting fans out to every child RecordShare's own acceptance
// before the envelope itself is marked accepted; declining declines the
// children that are still pending.
func (s *Service) RespondToRequest(ctx context.Context, actorID uuid.UUID, actorRole string, requestID uuid.UUID, accept bool) (*ShareRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actorRole != auth.RoleAdmin && req.ToUserID != actorID {
		return nil, ErrNotRecipient
	}

	target := StatusDeclined
	if accept {
		target = StatusAccepted
	}
	if req.Status != StatusPending {
		if req.Status == target {
			return req, nil
		}
		return nil, ErrAlreadyResolved
	}

	children, err := s.shares.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if accept {
			err = s.AcceptRecordShare(ctx, child)
		} else if child.Status == StatusPending {
			err = s.DeclineRecordShare(ctx, child)
		}
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := s.requests.SetStatus(ctx, req.ID, target, now); err != nil {
		return nil, err
	}
	req.Status = target
	req.RespondedAt = &now
	return req, nil
}

// GetShare fetches one RecordShare.
func (s *Service) GetShare(ctx context.Context, id uuid.UUID) (*RecordShare, error) {
	return s.shares.GetByID(ctx, id)
}

// RespondToShare accepts or declines a single RecordShare on behalf of its
// recipient.
func (s *Service) RespondToShare(ctx context.Context, actorID uuid.UUID, actorRole string, shareID uuid.UUID, accept bool) (*RecordShare, error) {
	share, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if actorRole != auth.RoleAdmin && share.ToUserID != actorID {
		return nil, ErrNotRecipient
	}
	if accept {
		err = s.AcceptRecordShare(ctx, share)
	} else {
		err = s.DeclineRecordShare(ctx, share)
	}
	if err != nil {
		return nil, err
	}
	return share, nil
}

func (s *Service) ListIncoming(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error) {
	return s.requests.ListByRecipient(ctx, userID, limit, offset)
}

func (s *Service) ListOutgoing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error) {
	return s.requests.ListByRequester(ctx, userID, limit, offset)
}

func (s *Service) ListRequestShares(ctx context.Context, requestID uuid.UUID) ([]*RecordShare, error) {
	return s.shares.ListByRequest(ctx, requestID)
}
