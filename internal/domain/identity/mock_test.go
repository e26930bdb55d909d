package identity

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// -- Mock transaction runner --

type mockTx struct{ calls int }

func (m *mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// -- Mock token issuer --

type mockTokens struct{}

func (mockTokens) Issue(userID uuid.UUID, role string) (string, time.Time, error) {
	return "token-" + role + "-" + userID.String(), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

// -- Mock User Repository --

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("user already exists")
		}
	}
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var result []*User
	for _, u := range m.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	total := len(result)
	if offset >= total {
		return []*User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

// -- Mock Doctor Repository --

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*Doctor
	roster  map[uuid.UUID]map[uuid.UUID]bool
	// patients resolves roster ids to profiles.
	patients *mockPatientRepo
}

func newMockDoctorRepo(patients *mockPatientRepo) *mockDoctorRepo {
	return &mockDoctorRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		roster:   make(map[uuid.UUID]map[uuid.UUID]bool),
		patients: patients,
	}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.CreatedAt = time.Now()
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Doctor, error) {
	for _, d := range m.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("doctor not found")
}

func (m *mockDoctorRepo) List(_ context.Context, status string) ([]*Doctor, error) {
	result := []*Doctor{}
	for _, d := range m.doctors {
		if status == "" || d.ApprovalStatus == status {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockDoctorRepo) DecideIfPending(_ context.Context, id uuid.UUID, status string, at time.Time) (bool, error) {
	d, ok := m.doctors[id]
	if !ok || d.ApprovalStatus != StatusPending {
		return false, nil
	}
	d.ApprovalStatus = status
	d.DecidedAt = &at
	return true, nil
}

func (m *mockDoctorRepo) AddPatient(_ context.Context, doctorID, patientID uuid.UUID) error {
	if m.roster[doctorID] == nil {
		m.roster[doctorID] = make(map[uuid.UUID]bool)
	}
	m.roster[doctorID][patientID] = true
	return nil
}

func (m *mockDoctorRepo) HasPatient(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return m.roster[doctorID][patientID], nil
}

func (m *mockDoctorRepo) ListPatients(_ context.Context, doctorID uuid.UUID) ([]*Patient, error) {
	result := []*Patient{}
	for id := range m.roster[doctorID] {
		if p, ok := m.patients.patients[id]; ok {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
	records  map[uuid.UUID][]*Record
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		patients: make(map[uuid.UUID]*Patient),
		records:  make(map[uuid.UUID][]*Record),
	}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

func (m *mockPatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Patient, error) {
	for _, p := range m.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, apperr.NotFound("patient not found")
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockPatientRepo) AppendRecord(_ context.Context, r *Record) error {
	m.records[r.PatientID] = append(m.records[r.PatientID], r)
	return nil
}

func (m *mockPatientRepo) ListRecords(_ context.Context, patientID uuid.UUID) ([]*Record, error) {
	return append([]*Record{}, m.records[patientID]...), nil
}

// -- Fixture --

type fixture struct {
	svc      *Service
	tx       *mockTx
	users    *mockUserRepo
	doctors  *mockDoctorRepo
	patients *mockPatientRepo
}

func newFixture() *fixture {
	patients := newMockPatientRepo()
	f := &fixture{
		tx:       &mockTx{},
		users:    newMockUserRepo(),
		doctors:  newMockDoctorRepo(patients),
		patients: patients,
	}
	f.svc = NewService(f.tx, f.users, f.doctors, f.patients, mockTokens{}, false)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return f
}

func intPtr(n int) *int { return &n }

func doctorInput(email string) RegisterInput {
	return RegisterInput{
		Name:            "Dr. Grey",
		Email:           email,
		Password:        "password123",
		Role:            "doctor",
		Specialty:       "Cardiology",
		ExperienceYears: intPtr(12),
	}
}

func patientInput(email string) RegisterInput {
	return RegisterInput{
		Name:      "Sam Lee",
		Email:     email,
		Password:  "password123",
		Role:      "patient",
		Age:       intPtr(34),
		Gender:    "female",
		Phone:     "+15550100",
		Condition: "hypertension",
	}
}

// registerDoctor creates a doctor and optionally approves it.
func (f *fixture) registerDoctor(t testing.TB, email string, approve bool) *Doctor {
	res, err := f.svc.Register(context.Background(), doctorInput(email))
	if err != nil {
		t.Fatalf("register doctor: %v", err)
	}
	if approve {
		if _, err := f.svc.DecideDoctorApproval(context.Background(), *res.DoctorID, true); err != nil {
			t.Fatalf("approve doctor: %v", err)
		}
	}
	d, _ := f.doctors.GetByID(context.Background(), *res.DoctorID)
	return d
}

func (f *fixture) registerPatient(t testing.TB, email string) *Patient {
	res, err := f.svc.Register(context.Background(), patientInput(email))
	if err != nil {
		t.Fatalf("register patient: %v", err)
	}
	return f.patients.patients[*res.PatientID]
}
