package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/auth"
)

func TestRegister_Doctor(t *testing.T) {
	f := newFixture()
	in := doctorInput("  Grey@Example.COM ")

	res, err := f.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.Email != "grey@example.com" {
		t.Errorf("expected normalized email, got %q", res.User.Email)
	}
	if res.User.PasswordHash == "" || res.User.PasswordHash == in.Password {
		t.Error("expected password to be hashed")
	}
	if res.DoctorID == nil {
		t.Fatal("expected doctor profile id")
	}
	d := f.doctors.doctors[*res.DoctorID]
	if d.ApprovalStatus != StatusPending {
		t.Errorf("expected Pending, got %s", d.ApprovalStatus)
	}
	if d.UserID != res.User.ID {
		t.Error("expected doctor profile linked by user id")
	}
	if !strings.HasPrefix(res.Token, "token-doctor-") {
		t.Errorf("unexpected token %q", res.Token)
	}
	if f.tx.calls != 1 {
		t.Errorf("expected one transaction, got %d", f.tx.calls)
	}
}

func TestRegister_Patient(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Register(context.Background(), patientInput("sam@example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PatientID == nil {
		t.Fatal("expected patient profile id")
	}
	p := f.patients.patients[*res.PatientID]
	if p.Age != 34 || p.Condition != "hypertension" {
		t.Errorf("unexpected patient profile %+v", p)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture()
	first, err := f.svc.Register(context.Background(), patientInput("dup@example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := doctorInput("DUP@example.com")
	_, err = f.svc.Register(context.Background(), in)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.users.users) != 1 {
		t.Errorf("expected 1 user, got %d", len(f.users.users))
	}
	if got := f.users.users[first.User.ID]; got.Role != auth.RolePatient || got.Name != "Sam Lee" {
		t.Errorf("first user changed: %+v", got)
	}
}

func TestRegister_RoleFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
	}{
		{"doctor without specialty", func(in *RegisterInput) { *in = doctorInput("a@x.test"); in.Specialty = " " }},
		{"doctor without experience", func(in *RegisterInput) { *in = doctorInput("a@x.test"); in.ExperienceYears = nil }},
		{"patient without age", func(in *RegisterInput) { *in = patientInput("a@x.test"); in.Age = nil }},
		{"patient age out of range", func(in *RegisterInput) { *in = patientInput("a@x.test"); in.Age = intPtr(151) }},
		{"patient without phone", func(in *RegisterInput) { *in = patientInput("a@x.test"); in.Phone = "" }},
		{"short password", func(in *RegisterInput) { *in = patientInput("a@x.test"); in.Password = "short" }},
		{"unknown role", func(in *RegisterInput) { *in = patientInput("a@x.test"); in.Role = "nurse" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			var in RegisterInput
			tt.mutate(&in)
			_, err := f.svc.Register(context.Background(), in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(f.users.users) != 0 {
				t.Error("expected no user to be created")
			}
		})
	}
}

func TestRegister_AdminRefused(t *testing.T) {
	f := newFixture()
	in := RegisterInput{Name: "Root", Email: "root@example.com", Password: "password123", Role: "admin"}
	if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	f.svc.allowAdminSignup = true
	res, err := f.svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DoctorID != nil || res.PatientID != nil {
		t.Error("admin accounts have no profile")
	}
}

func TestCreateAdmin(t *testing.T) {
	f := newFixture()
	u, err := f.svc.CreateAdmin(context.Background(), "Root", "Root@Example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RoleAdmin || u.Email != "root@example.com" {
		t.Errorf("unexpected admin %+v", u)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture()
	reg, err := f.svc.Register(context.Background(), patientInput("sam@example.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := f.svc.Login(context.Background(), " SAM@example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.ID != reg.User.ID {
		t.Error("expected same user")
	}
	if res.PatientID == nil || *res.PatientID != *reg.PatientID {
		t.Error("expected patient profile id on login")
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Register(context.Background(), patientInput("sam@example.com")); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := f.svc.Login(context.Background(), "sam@example.com", "wrong-password")
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("wrong password: expected unauthorized, got %v", err)
	}
	_, err = f.svc.Login(context.Background(), "nobody@example.com", "password123")
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("unknown email: expected unauthorized, got %v", err)
	}
}

func TestMe(t *testing.T) {
	f := newFixture()
	d := f.registerDoctor(t, "grey@example.com", false)

	ctx := auth.WithPrincipal(context.Background(), d.UserID.String(), auth.RoleDoctor)
	acct, err := f.svc.Me(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.DoctorID == nil || *acct.DoctorID != d.ID {
		t.Error("expected doctor id on account")
	}

	if _, err := f.svc.Me(context.Background()); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized without principal, got %v", err)
	}
}

func TestListApprovedDoctors_ExcludesPendingAndRejected(t *testing.T) {
	f := newFixture()
	approved := f.registerDoctor(t, "a@example.com", true)
	f.registerDoctor(t, "b@example.com", false)
	rejected := f.registerDoctor(t, "c@example.com", false)
	if _, err := f.svc.DecideDoctorApproval(context.Background(), rejected.ID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}

	doctors, err := f.svc.ListApprovedDoctors(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doctors) != 1 || doctors[0].ID != approved.ID {
		t.Fatalf("expected only the approved doctor, got %d", len(doctors))
	}

	pending, _ := f.svc.ListPendingDoctors(context.Background())
	if len(pending) != 1 {
		t.Errorf("expected 1 pending doctor, got %d", len(pending))
	}
	all, _ := f.svc.ListDoctors(context.Background())
	if len(all) != 3 {
		t.Errorf("expected 3 doctors, got %d", len(all))
	}
}

func TestDecideDoctorApproval_Terminal(t *testing.T) {
	f := newFixture()
	d := f.registerDoctor(t, "grey@example.com", false)

	got, err := f.svc.DecideDoctorApproval(context.Background(), d.ID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ApprovalStatus != StatusApproved || got.DecidedAt == nil {
		t.Errorf("unexpected decision %+v", got)
	}

	for _, approve := range []bool{true, false} {
		if _, err := f.svc.DecideDoctorApproval(context.Background(), d.ID, approve); !errors.Is(err, apperr.ErrInvalidState) {
			t.Errorf("re-decision (approve=%v): expected invalid state, got %v", approve, err)
		}
	}
	if f.doctors.doctors[d.ID].ApprovalStatus != StatusApproved {
		t.Error("status changed after terminal decision")
	}
}

func TestDecideDoctorApproval_NotFound(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.DecideDoctorApproval(context.Background(), uuid.New(), true); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddPatientRecord(t *testing.T) {
	f := newFixture()
	d := f.registerDoctor(t, "grey@example.com", true)
	p := f.registerPatient(t, "sam@example.com")

	in := RecordInput{Type: "Consultation", Summary: "BP 140/90"}
	if _, err := f.svc.AddPatientRecord(context.Background(), d.ID, p.ID, in); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for patient off roster, got %v", err)
	}

	_ = f.doctors.AddPatient(context.Background(), d.ID, p.ID)
	rec, err := f.svc.AddPatientRecord(context.Background(), d.ID, p.ID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Author != "Dr. Grey" {
		t.Errorf("expected doctor as author, got %q", rec.Author)
	}
	if !rec.Date.Equal(f.svc.now()) {
		t.Errorf("expected record dated now, got %v", rec.Date)
	}

	records, _ := f.svc.PatientRecords(context.Background(), p.ID)
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestAuthorizeDoctor(t *testing.T) {
	f := newFixture()
	d := f.registerDoctor(t, "grey@example.com", true)
	other := f.registerDoctor(t, "other@example.com", true)

	owner := auth.WithPrincipal(context.Background(), d.UserID.String(), auth.RoleDoctor)
	if err := f.svc.AuthorizeDoctor(owner, d.ID); err != nil {
		t.Errorf("owner: unexpected error %v", err)
	}
	if err := f.svc.AuthorizeDoctor(owner, other.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("other doctor: expected forbidden, got %v", err)
	}
	admin := auth.WithPrincipal(context.Background(), uuid.NewString(), auth.RoleAdmin)
	if err := f.svc.AuthorizeDoctor(admin, other.ID); err != nil {
		t.Errorf("admin: unexpected error %v", err)
	}
}

func TestAuthorizePatientRead(t *testing.T) {
	f := newFixture()
	d := f.registerDoctor(t, "grey@example.com", true)
	p := f.registerPatient(t, "sam@example.com")
	other := f.registerPatient(t, "other@example.com")

	self := auth.WithPrincipal(context.Background(), p.UserID.String(), auth.RolePatient)
	if err := f.svc.AuthorizePatientRead(self, p.ID); err != nil {
		t.Errorf("self: unexpected error %v", err)
	}
	if err := f.svc.AuthorizePatientRead(self, other.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("other patient: expected forbidden, got %v", err)
	}

	doc := auth.WithPrincipal(context.Background(), d.UserID.String(), auth.RoleDoctor)
	if err := f.svc.AuthorizePatientRead(doc, p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("doctor off roster: expected forbidden, got %v", err)
	}
	_ = f.doctors.AddPatient(context.Background(), d.ID, p.ID)
	if err := f.svc.AuthorizePatientRead(doc, p.ID); err != nil {
		t.Errorf("doctor on roster: unexpected error %v", err)
	}
}
