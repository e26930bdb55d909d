package scheduling

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/domain/identity"
	"github.com/medivision/medivision/internal/platform/apperr"
)

type mockTx struct{}

func (mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// -- Mock Appointment Repository --

type mockApptRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.CreatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) List(_ context.Context, f Filter) ([]*Appointment, error) {
	result := []*Appointment{}
	for _, a := range m.appts {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateTime.Before(result[j].DateTime) })
	return result, nil
}

func (m *mockApptRepo) DecideIfPending(_ context.Context, id uuid.UUID, status string, at time.Time) (bool, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != StatusPending {
		return false, nil
	}
	a.Status = status
	a.DecidedAt = &at
	return true, nil
}

func (m *mockApptRepo) DeleteByDoctor(_ context.Context, doctorID uuid.UUID) (int64, error) {
	var n int64
	for id, a := range m.appts {
		if a.DoctorID == doctorID {
			delete(m.appts, id)
			n++
		}
	}
	return n, nil
}

// -- Mock identity repositories --

type mockDoctorRepo struct {
	identity.DoctorRepository
	doctors map[uuid.UUID]*identity.Doctor
	roster  map[uuid.UUID][]uuid.UUID
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	return d, nil
}

// AddPatient mirrors the roster's ON CONFLICT DO NOTHING insert.
func (m *mockDoctorRepo) AddPatient(_ context.Context, doctorID, patientID uuid.UUID) error {
	for _, id := range m.roster[doctorID] {
		if id == patientID {
			return nil
		}
	}
	m.roster[doctorID] = append(m.roster[doctorID], patientID)
	return nil
}

type mockPatientRepo struct {
	identity.PatientRepository
	patients map[uuid.UUID]*identity.Patient
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

// -- Fixture --

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	appts    *mockApptRepo
	doctors  *mockDoctorRepo
	patients *mockPatientRepo

	approved *identity.Doctor
	pending  *identity.Doctor
	patient  *identity.Patient
}

func newFixture() *fixture {
	f := &fixture{
		appts:    newMockApptRepo(),
		doctors:  &mockDoctorRepo{doctors: map[uuid.UUID]*identity.Doctor{}, roster: map[uuid.UUID][]uuid.UUID{}},
		patients: &mockPatientRepo{patients: map[uuid.UUID]*identity.Patient{}},
	}
	f.approved = &identity.Doctor{ID: uuid.New(), UserID: uuid.New(), Name: "Dr. Grey", ApprovalStatus: identity.StatusApproved}
	f.pending = &identity.Doctor{ID: uuid.New(), UserID: uuid.New(), Name: "Dr. New", ApprovalStatus: identity.StatusPending}
	f.patient = &identity.Patient{ID: uuid.New(), UserID: uuid.New(), Name: "Sam Lee"}
	f.doctors.doctors[f.approved.ID] = f.approved
	f.doctors.doctors[f.pending.ID] = f.pending
	f.patients.patients[f.patient.ID] = f.patient

	f.svc = NewService(mockTx{}, f.appts, f.doctors, f.patients, time.UTC)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) book(t testing.TB, when string) *Appointment {
	a, err := f.svc.Book(context.Background(), f.patient.ID, BookInput{DoctorID: f.approved.ID.String(), DateTime: when})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a
}
