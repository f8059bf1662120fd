package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/docere/docere/internal/platform/auth"
)

// Actor is the authenticated principal a capability check runs for.
// DoctorID and PatientID are resolved profile ids, nil when the user holds
// no such profile.
type Actor struct {
	UserID    uuid.UUID
	Role      string
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}

// Capability is the set of operations an actor may perform on one record.
type Capability struct {
	CanView  bool `json:"can_view"`
	CanShare bool `json:"can_share"`
}

// ShareLookup answers share-status questions without importing the sharing
// package. Implemented by sharing's repositories.
type ShareLookup interface {
	// HasShare reports whether a share on the record targets the user in any
	// of the given statuses.
	HasShare(ctx context.Context, recordID, userID uuid.UUID, statuses ...string) (bool, error)
}

// RosterLookup answers doctor-roster membership questions. Implemented by
// identity's DoctorRepository.
type RosterLookup interface {
	HasPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

// Access consolidates the read-authorization rules applied everywhere
// records are listed or fetched:
//   - admins see everything;
//   - owners (primary or second) see their records;
//   - recipients of an accepted share see the record;
//   - doctors additionally see records of patients on their roster, and
//     records with a share to them that is still pending (a doctor may
//     preview an incoming share before accepting it; patients may not).
type Access struct {
	shares ShareLookup
	roster RosterLookup
}

func NewAccess(shares ShareLookup, roster RosterLookup) *Access {
	return &Access{shares: shares, roster: roster}
}

// For computes the actor's capability set on the record.
func (a *Access) For(ctx context.Context, actor Actor, rec *MedicalRecord) (Capability, error) {
	if actor.Role == auth.RoleAdmin {
		return Capability{CanView: true, CanShare: true}, nil
	}

	c := Capability{}
	if rec.IsOwner(actor.UserID) {
		c.CanView = true
		c.CanShare = true
		return c, nil
	}

	statuses := []string{"accepted"}
	if actor.Role == auth.RoleDoctor {
		statuses = append(statuses, "pending")
	}
	has, err := a.shares.HasShare(ctx, rec.ID, actor.UserID, statuses...)
	if err != nil {
		return Capability{}, err
	}
	if has {
		c.CanView = true
		return c, nil
	}

	if actor.Role == auth.RoleDoctor && actor.DoctorID != nil {
		onRoster, err := a.roster.HasPatient(ctx, *actor.DoctorID, rec.PatientID)
		if err != nil {
			return Capability{}, err
		}
		if onRoster {
			c.CanView = true
		}
	}
	return c, nil
}

// Filter returns the subset of recs the actor may view, preserving order.
func (a *Access) Filter(ctx context.Context, actor Actor, recs []*MedicalRecord) ([]*MedicalRecord, error) {
	var visible []*MedicalRecord
	for _, rec := range recs {
		c, err := a.For(ctx, actor, rec)
		if err != nil {
			return nil, err
		}
		if c.CanView {
			visible = append(visible, rec)
		}
	}
	return visible, nil
}
