package sharing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docere/docere/internal/domain/identity"
	"github.com/docere/docere/internal/domain/records"
)

// -- mocks --

type mockRequestRepo struct {
	byID map[uuid.UUID]*ShareRequest
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{byID: make(map[uuid.UUID]*ShareRequest)}
}

func (m *mockRequestRepo) GetOrCreate(_ context.Context, req *ShareRequest) (*ShareRequest, bool, error) {
	for _, existing := range m.byID {
		if strings.EqualFold(existing.ToEmail, req.ToEmail) && existing.PatientID == req.PatientID {
			return existing, false, nil
		}
	}
	req.ID = uuid.New()
	req.Status = StatusPending
	m.byID[req.ID] = req
	return req, true, nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*ShareRequest, error) {
	req, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return req, nil
}

func (m *mockRequestRepo) SetStatus(_ context.Context, id uuid.UUID, status string, respondedAt time.Time) error {
	req, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.RespondedAt = &respondedAt
	return nil
}

func (m *mockRequestRepo) ListByRecipient(_ context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error) {
	var out []*ShareRequest
	for _, r := range m.byID {
		if r.ToUserID == userID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) ListByRequester(_ context.Context, userID uuid.UUID, limit, offset int) ([]*ShareRequest, int, error) {
	var out []*ShareRequest
	for _, r := range m.byID {
		if r.FromUserID == userID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type mockShareRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*RecordShare
	order []uuid.UUID
}

func newMockShareRepo() *mockShareRepo {
	return &mockShareRepo{byID: make(map[uuid.UUID]*RecordShare)}
}

func (m *mockShareRepo) GetOrCreate(_ context.Context, share *RecordShare) (*RecordShare, bool, error) {
	for _, existing := range m.byID {
		if existing.RecordID == share.RecordID && existing.ToUserID == share.ToUserID {
			return existing, false, nil
		}
	}
	share.ID = uuid.New()
	share.Status = StatusPending
	m.byID[share.ID] = share
	m.order = append(m.order, share.ID)
	return share, true, nil
}

func (m *mockShareRepo) GetByID(_ context.Context, id uuid.UUID) (*RecordShare, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *mockShareRepo) SetStatus(_ context.Context, id uuid.UUID, status string, respondedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	s.RespondedAt = &respondedAt
	return nil
}

func (m *mockShareRepo) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*RecordShare, error) {
	var out []*RecordShare
	for _, id := range m.order {
		if s := m.byID[id]; s.RequestID == requestID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockShareRepo) HasShare(_ context.Context, recordID, userID uuid.UUID, statuses ...string) (bool, error) {
	for _, s := range m.byID {
		if s.RecordID != recordID || s.ToUserID != userID {
			continue
		}
		for _, st := range statuses {
			if s.Status == st {
				return true, nil
			}
		}
	}
	return false, nil
}

type mockRecordRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*records.MedicalRecord
	casWins int
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{byID: make(map[uuid.UUID]*records.MedicalRecord)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *records.MedicalRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Visibility == "" {
		r.Visibility = records.VisibilityDraft
	}
	m.byID[r.ID] = r
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*records.MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return r, nil
}

func (m *mockRecordRepo) Update(_ context.Context, r *records.MedicalRecord) error {
	m.byID[r.ID] = r
	return nil
}

func (m *mockRecordRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*records.MedicalRecord, int, error) {
	var out []*records.MedicalRecord
	for _, r := range m.byID {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *mockRecordRepo) ListByOwner(_ context.Context, userID uuid.UUID, limit, offset int) ([]*records.MedicalRecord, int, error) {
	return nil, 0, nil
}

func (m *mockRecordRepo) CreateWithFiles(ctx context.Context, r *records.MedicalRecord, files []*records.LabFile) error {
	return m.Create(ctx, r)
}

func (m *mockRecordRepo) SetOwnerSecondIfEmpty(_ context.Context, recordID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[recordID]
	if !ok {
		return false, records.ErrNotFound
	}
	if r.OwnerSecondID != nil {
		return false, nil
	}
	uid := userID
	r.OwnerSecondID = &uid
	r.Visibility = records.VisibilityConfirmed
	m.casWins++
	return true, nil
}

func (m *mockRecordRepo) MarkShared(_ context.Context, recordID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[recordID]
	if !ok {
		return records.ErrNotFound
	}
	if r.Visibility == records.VisibilityDraft {
		r.Visibility = records.VisibilityShared
	}
	return nil
}

type mockUserRepo struct {
	byID map[uuid.UUID]*identity.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byID: make(map[uuid.UUID]*identity.User)}
}

func (m *mockUserRepo) add(role, email string) *identity.User {
	u := &identity.User{ID: uuid.New(), Role: role, Email: email}
	m.byID[u.ID] = u
	return u
}

func (m *mockUserRepo) Create(_ context.Context, u *identity.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.byID[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (m *mockUserRepo) Update(_ context.Context, u *identity.User) error {
	m.byID[u.ID] = u
	return nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*identity.User, int, error) {
	return nil, len(m.byID), nil
}

type mockDoctorRepo struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]*identity.Doctor
	roster map[uuid.UUID]map[uuid.UUID]int // doctor -> patient -> add count
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{
		byUser: make(map[uuid.UUID]*identity.Doctor),
		roster: make(map[uuid.UUID]map[uuid.UUID]int),
	}
}

func (m *mockDoctorRepo) add(userID uuid.UUID) *identity.Doctor {
	d := &identity.Doctor{ID: uuid.New(), UserID: userID}
	m.byUser[userID] = d
	return d
}

func (m *mockDoctorRepo) Create(_ context.Context, d *identity.Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.byUser[d.UserID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.Doctor, error) {
	for _, d := range m.byUser {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (m *mockDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*identity.Doctor, error) {
	d, ok := m.byUser[userID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return d, nil
}

func (m *mockDoctorRepo) AddPatient(_ context.Context, doctorID, patientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roster[doctorID] == nil {
		m.roster[doctorID] = make(map[uuid.UUID]int)
	}
	m.roster[doctorID][patientID]++
	return nil
}

func (m *mockDoctorRepo) HasPatient(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roster[doctorID][patientID] > 0, nil
}

func (m *mockDoctorRepo) ListPatients(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*identity.Patient, int, error) {
	return nil, len(m.roster[doctorID]), nil
}

type mockPatientRepo struct {
	byID map[uuid.UUID]*identity.Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{byID: make(map[uuid.UUID]*identity.Patient)}
}

func (m *mockPatientRepo) add() *identity.Patient {
	p := &identity.Patient{ID: uuid.New()}
	m.byID[p.ID] = p
	return p
}

func (m *mockPatientRepo) Create(_ context.Context, p *identity.Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.byID[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*identity.Patient, error) {
	for _, p := range m.byID {
		if p.UserID != nil && *p.UserID == userID {
			return p, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (m *mockPatientRepo) GetOrCreateByName(_ context.Context, lastName, firstName, middleName string) (*identity.Patient, bool, error) {
	p := &identity.Patient{ID: uuid.New(), LastName: lastName, FirstName: firstName, MiddleName: middleName}
	m.byID[p.ID] = p
	return p, true, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *identity.Patient) error {
	m.byID[p.ID] = p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*identity.Patient, int, error) {
	return nil, len(m.byID), nil
}

// -- fixture --

type fixture struct {
	svc      *Service
	requests *mockRequestRepo
	shares   *mockShareRepo
	records  *mockRecordRepo
	users    *mockUserRepo
	doctors  *mockDoctorRepo
	patients *mockPatientRepo
}

func newFixture() *fixture {
	f := &fixture{
		requests: newMockRequestRepo(),
		shares:   newMockShareRepo(),
		records:  newMockRecordRepo(),
		users:    newMockUserRepo(),
		doctors:  newMockDoctorRepo(),
		patients: newMockPatientRepo(),
	}
	f.svc = NewService(f.requests, f.shares, f.records, f.users, f.doctors, f.patients)
	return f
}

func (f *fixture) record(owner *identity.User, patientID uuid.UUID) *records.MedicalRecord {
	rec := &records.MedicalRecord{PatientID: patientID, OwnerPrimaryID: owner.ID}
	f.records.Create(context.Background(), rec)
	return rec
}

// -- tests --

func TestCreateShare_AllOrNothingValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doctor := f.users.add("doctor", "doc@example.ru")
	f.users.add("patient", "pat@example.ru")
	patient := f.patients.add()
	otherPatient := f.patients.add()

	mine := f.record(doctor, patient.ID)
	wrongPatient := f.record(doctor, otherPatient.ID)
	notMine := f.record(f.users.add("doctor", "other@example.ru"), patient.ID)

	_, _, err := f.svc.CreateShare(ctx, doctor.ID, patient.ID, "pat@example.ru",
		[]uuid.UUID{mine.ID, wrongPatient.ID, notMine.ID})

	var notAllowed *RecordsNotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("expected RecordsNotAllowedError, got %v", err)
	}
	if len(notAllowed.RecordIDs) != 2 {
		t.Errorf("offending ids = %v, want 2 entries", notAllowed.RecordIDs)
	}
	if len(f.shares.byID) != 0 || len(f.requests.byID) != 0 {
		t.Error("partial persistence after rejected creation")
	}
	if mine.Visibility != records.VisibilityDraft {
		t.Errorf("record visibility mutated on rejected creation: %s", mine.Visibility)
	}
}

func TestCreateShare_CreatesEnvelopeAndShares(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doctor := f.users.add("doctor", "doc@example.ru")
	f.users.add("patient", "pat@example.ru")
	patient := f.patients.add()
	rec1 := f.record(doctor, patient.ID)
	rec2 := f.record(doctor, patient.ID)

	req, shares, err := f.svc.CreateShare(ctx, doctor.ID, patient.ID, "Pat@Example.RU",
		[]uuid.UUID{rec1.ID, rec2.ID})
	if err != nil {
		t.Fatalf("CreateShare: %v", err)
	}
	if req.Status != StatusPending {
		t.Errorf("envelope status = %s", req.Status)
	}
	if len(shares) != 2 {
		t.Fatalf("got %d shares, want 2", len(shares))
	}
	for _, s := range shares {
		if s.RequestID != req.ID || s.Status != StatusPending {
			t.Errorf("share %+v not linked pending", s)
		}
	}
	if rec1.Visibility != records.VisibilityShared || rec2.Visibility != records.VisibilityShared {
		t.Error("records not promoted to shared")
	}
}

func TestCreateShare_ReusesEnvelopeAndShares(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doctor := f.users.add("doctor", "doc@example.ru")
	f.users.add("patient", "pat@example.ru")
	patient := f.patients.add()
	rec := f.record(doctor, patient.ID)

	req1, shares1, err := f.svc.CreateShare(ctx, doctor.ID, patient.ID, "pat@example.ru", []uuid.UUID{rec.ID})
	if err != nil {
		t.Fatalf("first CreateShare: %v", err)
	}
	req2, shares2, err := f.svc.CreateShare(ctx, doctor.ID, patient.ID, "pat@example.ru", []uuid.UUID{rec.ID})
	if err != nil {
		t.Fatalf("second CreateShare: %v", err)
	}
	if req1.ID != req2.ID {
		t.Error("envelope duplicated for same (email, patient)")
	}
	if shares1[0].ID != shares2[0].ID {
		t.Error("record share duplicated for same (record, recipient)")
	}
	if len(f.requests.byID) != 1 || len(f.shares.byID) != 1 {
		t.Errorf("rows: %d requests, %d shares; want 1 each", len(f.requests.byID), len(f.shares.byID))
	}
}

func TestCreateShare_UnregisteredRecipient(t *testing.T) {
	f := newFixture()
	doctor := f.users.add("doctor", "doc@example.ru")
	patient := f.patients.add()
	rec := f.record(doctor, patient.ID)

	_, _, err := f.svc.CreateShare(context.Background(), doctor.ID, patient.ID, "ghost@example.ru", []uuid.UUID{rec.ID})
	if err == nil {
		t.Fatal("expected error for unregistered recipient")
	}
}

func TestAcceptRecordShare_CrossRoleAssignsOwnerSecond(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doctorUser := f.users.add("doctor", "doc@example.ru")
	doc := f.doctors.add(doctorUser.ID)
	patient := f.patients.add()
	rec := f.record(patientUser, patient.ID)

	_, shares, err := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc@example.ru", []uuid.UUID{rec.ID})
	if err != nil {
		t.Fatalf("CreateShare: %v", err)
	}

	if err := f.svc.AcceptRecordShare(ctx, shares[0]); err != nil {
		t.Fatalf("AcceptRecordShare: %v", err)
	}

	if rec.OwnerSecondID == nil || *rec.OwnerSecondID != doctorUser.ID {
		t.Error("owner_second not assigned to recipient")
	}
	if rec.Visibility != records.VisibilityConfirmed {
		t.Errorf("visibility = %s, want confirmed", rec.Visibility)
	}
	if shares[0].Status != StatusAccepted {
		t.Errorf("share status = %s", shares[0].Status)
	}
	has, _ := f.doctors.HasPatient(ctx, doc.ID, patient.ID)
	if !has {
		t.Error("patient not added to doctor roster")
	}
}

func TestAcceptRecordShare_IdempotentSecondCall(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doctorUser := f.users.add("doctor", "doc@example.ru")
	doc := f.doctors.add(doctorUser.ID)
	patient := f.patients.add()
	rec := f.record(patientUser, patient.ID)

	_, shares, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc@example.ru", []uuid.UUID{rec.ID})
	share := shares[0]

	if err := f.svc.AcceptRecordShare(ctx, share); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	ownerSecond := *rec.OwnerSecondID
	visibility := rec.Visibility
	rosterAdds := f.doctors.roster[doc.ID][patient.ID]

	if err := f.svc.AcceptRecordShare(ctx, share); err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if *rec.OwnerSecondID != ownerSecond || rec.Visibility != visibility {
		t.Error("second accept mutated the record")
	}
	if f.doctors.roster[doc.ID][patient.ID] != rosterAdds {
		t.Error("second accept touched the roster")
	}
}

func TestAcceptRecordShare_OwnerSecondAssignedOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doc1 := f.users.add("doctor", "doc1@example.ru")
	doc2 := f.users.add("doctor", "doc2@example.ru")
	f.doctors.add(doc1.ID)
	f.doctors.add(doc2.ID)
	patient := f.patients.add()
	rec := f.record(patientUser, patient.ID)

	_, s1, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc1@example.ru", []uuid.UUID{rec.ID})
	_, s2, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc2@example.ru", []uuid.UUID{rec.ID})

	if err := f.svc.AcceptRecordShare(ctx, s1[0]); err != nil {
		t.Fatalf("accept 1: %v", err)
	}
	if err := f.svc.AcceptRecordShare(ctx, s2[0]); err != nil {
		t.Fatalf("accept 2: %v", err)
	}

	if *rec.OwnerSecondID != doc1.ID {
		t.Error("owner_second overwritten by second acceptance")
	}
	if rec.Visibility != records.VisibilityConfirmed {
		t.Errorf("visibility = %s", rec.Visibility)
	}
	if s1[0].Status != StatusAccepted || s2[0].Status != StatusAccepted {
		t.Error("both shares should end accepted")
	}
}

func TestAcceptRecordShare_ConcurrentAcceptsAssignOwnerSecondOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doc1 := f.users.add("doctor", "doc1@example.ru")
	doc2 := f.users.add("doctor", "doc2@example.ru")
	f.doctors.add(doc1.ID)
	f.doctors.add(doc2.ID)
	patient := f.patients.add()
	rec := f.record(patientUser, patient.ID)

	_, s1, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc1@example.ru", []uuid.UUID{rec.ID})
	_, s2, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc2@example.ru", []uuid.UUID{rec.ID})

	shares := []*RecordShare{s1[0], s2[0]}
	errs := make([]error, len(shares))
	var wg sync.WaitGroup
	for i := range shares {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.AcceptRecordShare(ctx, shares[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
	}
	if f.records.casWins != 1 {
		t.Fatalf("owner_second assigned %d times, want 1", f.records.casWins)
	}
	if rec.OwnerSecondID == nil {
		t.Fatal("owner_second not assigned")
	}
	if got := *rec.OwnerSecondID; got != doc1.ID && got != doc2.ID {
		t.Errorf("owner_second = %s, not a recipient", got)
	}
	if rec.Visibility != records.VisibilityConfirmed {
		t.Errorf("visibility = %s, want confirmed", rec.Visibility)
	}
	if shares[0].Status != StatusAccepted || shares[1].Status != StatusAccepted {
		t.Error("both shares should end accepted")
	}
}

func TestAcceptRecordShare_SameRoleNeverConfirms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	doc1 := f.users.add("doctor", "doc1@example.ru")
	doc2 := f.users.add("doctor", "doc2@example.ru")
	f.doctors.add(doc1.ID)
	f.doctors.add(doc2.ID)
	patient := f.patients.add()
	rec := f.record(doc1, patient.ID)

	_, shares, _ := f.svc.CreateShare(ctx, doc1.ID, patient.ID, "doc2@example.ru", []uuid.UUID{rec.ID})
	if err := f.svc.AcceptRecordShare(ctx, shares[0]); err != nil {
		t.Fatalf("AcceptRecordShare: %v", err)
	}

	if rec.OwnerSecondID != nil {
		t.Error("same-role acceptance assigned owner_second")
	}
	if rec.Visibility != records.VisibilityShared {
		t.Errorf("visibility = %s, want shared", rec.Visibility)
	}
	if shares[0].Status != StatusAccepted {
		t.Errorf("share status = %s", shares[0].Status)
	}
}

func TestDeclineRecordShare(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doctorUser := f.users.add("doctor", "doc@example.ru")
	f.doctors.add(doctorUser.ID)
	patient := f.patients.add()
	rec := f.record(patientUser, patient.ID)

	_, shares, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc@example.ru", []uuid.UUID{rec.ID})
	share := shares[0]

	if err := f.svc.DeclineRecordShare(ctx, share); err != nil {
		t.Fatalf("DeclineRecordShare: %v", err)
	}
	if share.Status != StatusDeclined {
		t.Errorf("status = %s", share.Status)
	}
	if rec.OwnerSecondID != nil || rec.Visibility == records.VisibilityConfirmed {
		t.Error("decline mutated the record")
	}

	// Declining again is a no-op; accepting a declined share is an error.
	if err := f.svc.DeclineRecordShare(ctx, share); err != nil {
		t.Errorf("repeat decline: %v", err)
	}
	if err := f.svc.AcceptRecordShare(ctx, share); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("accept after decline: %v, want ErrAlreadyResolved", err)
	}
}

func TestRespondToRequest_AcceptFansOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doctorUser := f.users.add("doctor", "doc@example.ru")
	f.doctors.add(doctorUser.ID)
	patient := f.patients.add()
	rec1 := f.record(patientUser, patient.ID)
	rec2 := f.record(patientUser, patient.ID)

	req, _, err := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc@example.ru",
		[]uuid.UUID{rec1.ID, rec2.ID})
	if err != nil {
		t.Fatalf("CreateShare: %v", err)
	}

	got, err := f.svc.RespondToRequest(ctx, doctorUser.ID, "doctor", req.ID, true)
	if err != nil {
		t.Fatalf("RespondToRequest: %v", err)
	}
	if got.Status != StatusAccepted || got.RespondedAt == nil {
		t.Errorf("request = %+v", got)
	}

	children, _ := f.shares.ListByRequest(ctx, req.ID)
	if len(children) != 2 {
		t.Fatalf("got %d children", len(children))
	}
	for _, child := range children {
		if child.Status != StatusAccepted {
			t.Errorf("child %s status = %s", child.ID, child.Status)
		}
	}
	// Exactly one owner_second across both records of the same envelope:
	// each record gets its own assignment.
	if rec1.OwnerSecondID == nil || rec2.OwnerSecondID == nil {
		t.Error("cross-role fan-out should confirm both records")
	}
}

func TestRespondToRequest_OnlyRecipient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doctorUser := f.users.add("doctor", "doc@example.ru")
	stranger := f.users.add("patient", "stranger@example.ru")
	f.doctors.add(doctorUser.ID)
	patient := f.patients.add()
	rec := f.record(patientUser, patient.ID)

	req, _, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc@example.ru", []uuid.UUID{rec.ID})

	if _, err := f.svc.RespondToRequest(ctx, stranger.ID, "patient", req.ID, true); !errors.Is(err, ErrNotRecipient) {
		t.Errorf("stranger respond: %v, want ErrNotRecipient", err)
	}
	// Admin may respond on the recipient's behalf.
	if _, err := f.svc.RespondToRequest(ctx, stranger.ID, "admin", req.ID, true); err != nil {
		t.Errorf("admin respond: %v", err)
	}
}

func TestRespondToRequest_RepeatIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	patientUser := f.users.add("patient", "pat@example.ru")
	doctorUser := f.users.add("doctor", "doc@example.ru")
	f.doctors.add(doctorUser.ID)
	patient := f.patients.add()
	rec := f.record(patientUser, patient.ID)

	req, _, _ := f.svc.CreateShare(ctx, patientUser.ID, patient.ID, "doc@example.ru", []uuid.UUID{rec.ID})

	if _, err := f.svc.RespondToRequest(ctx, doctorUser.ID, "doctor", req.ID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.RespondToRequest(ctx, doctorUser.ID, "doctor", req.ID, true); err != nil {
		t.Errorf("repeat accept: %v", err)
	}
	if _, err := f.svc.RespondToRequest(ctx, doctorUser.ID, "doctor", req.ID, false); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("decline after accept: %v, want ErrAlreadyResolved", err)
	}
}
