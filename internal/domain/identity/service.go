package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/db"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uuid.UUID, role string) (string, time.Time, error)
}

type Service struct {
	tx               db.TxRunner
	users            UserRepository
	doctors          DoctorRepository
	patients         PatientRepository
	tokens           TokenIssuer
	allowAdminSignup bool
	now              func() time.Time
}

func NewService(tx db.TxRunner, users UserRepository, doctors DoctorRepository, patients PatientRepository, tokens TokenIssuer, allowAdminSignup bool) *Service {
	return &Service{
		tx:               tx,
		users:            users,
		doctors:          doctors,
		patients:         patients,
		tokens:           tokens,
		allowAdminSignup: allowAdminSignup,
		now:              time.Now,
	}
}

// RegisterInput is the body of POST /auth/register. Doctor and patient
// accounts carry the fields of their profile.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=patient doctor admin"`

	Specialty       string `json:"specialty" validate:"omitempty,max=200"`
	ExperienceYears *int   `json:"experienceYears" validate:"omitempty,gte=0,lte=80"`

	Age       *int   `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender    string `json:"gender" validate:"omitempty,max=32"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Condition string `json:"condition" validate:"omitempty,max=2000"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in *RegisterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.Specialty = strings.TrimSpace(in.Specialty)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Condition = strings.TrimSpace(in.Condition)
}

func (in *RegisterInput) check() error {
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if in.Email == "" {
		return apperr.Validation("email is required")
	}
	if len(in.Password) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	if !auth.ValidRole(in.Role) {
		return apperr.Validation("role must be one of patient, doctor, admin")
	}
	switch in.Role {
	case auth.RoleDoctor:
		if in.Specialty == "" {
			return apperr.Validation("specialty is required for doctors")
		}
		if in.ExperienceYears == nil || *in.ExperienceYears < 0 {
			return apperr.Validation("experienceYears is required for doctors")
		}
	case auth.RolePatient:
		if in.Age == nil || *in.Age < 0 || *in.Age > 150 {
			return apperr.Validation("age must be between 0 and 150")
		}
		if in.Gender == "" || in.Phone == "" || in.Condition == "" {
			return apperr.Validation("gender, phone and condition are required for patients")
		}
	}
	return nil
}

// Register creates the user and its role profile in one transaction and
// returns a signed token. Public registration of admins is refused unless
// explicitly allowed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.normalize()
	if err := in.check(); err != nil {
		return nil, err
	}
	if in.Role == auth.RoleAdmin && !s.allowAdminSignup {
		return nil, apperr.Forbidden("admin accounts cannot be self-registered")
	}
	acct, err := s.createAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.issue(acct)
}

// CreateAdmin provisions an admin account outside the public endpoint.
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (*User, error) {
	in := RegisterInput{Name: name, Email: email, Password: password, Role: auth.RoleAdmin}
	in.normalize()
	if err := in.check(); err != nil {
		return nil, err
	}
	acct, err := s.createAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	return acct.User, nil
}

func (s *Service) createAccount(ctx context.Context, in RegisterInput) (*Account, error) {
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("an account with email %s already exists", in.Email)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("look up email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	acct := &Account{User: &User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, acct.User); err != nil {
			return err
		}
		switch in.Role {
		case auth.RoleDoctor:
			d := &Doctor{
				ID:              uuid.New(),
				UserID:          acct.User.ID,
				Name:            in.Name,
				Email:           in.Email,
				Specialty:       in.Specialty,
				ExperienceYears: *in.ExperienceYears,
				ApprovalStatus:  StatusPending,
			}
			if err := s.doctors.Create(ctx, d); err != nil {
				return err
			}
			acct.DoctorID = &d.ID
		case auth.RolePatient:
			p := &Patient{
				ID:        uuid.New(),
				UserID:    acct.User.ID,
				Name:      in.Name,
				Age:       *in.Age,
				Gender:    in.Gender,
				Phone:     in.Phone,
				Condition: in.Condition,
			}
			if err := s.patients.Create(ctx, p); err != nil {
				return err
			}
			acct.PatientID = &p.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	acct, err := s.account(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.issue(acct)
}

func (s *Service) issue(acct *Account) (*AuthResult, error) {
	token, exp, err := s.tokens.Issue(acct.User.ID, acct.User.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Account: *acct, Token: token, ExpiresAt: exp}, nil
}

// Me returns the authenticated caller's account.
func (s *Service) Me(ctx context.Context) (*Account, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	return s.account(ctx, u)
}

func (s *Service) account(ctx context.Context, u *User) (*Account, error) {
	acct := &Account{User: u}
	switch u.Role {
	case auth.RoleDoctor:
		d, err := s.doctors.GetByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if d != nil {
			acct.DoctorID = &d.ID
		}
	case auth.RolePatient:
		p, err := s.patients.GetByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		if p != nil {
			acct.PatientID = &p.ID
		}
	}
	return acct, nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// -- Doctor approval gate --

// ListApprovedDoctors is the patient-facing directory. Pending and rejected
// doctors are never returned.
func (s *Service) ListApprovedDoctors(ctx context.Context) ([]*Doctor, error) {
	return s.doctors.List(ctx, StatusApproved)
}

func (s *Service) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	return s.doctors.List(ctx, "")
}

func (s *Service) ListPendingDoctors(ctx context.Context) ([]*Doctor, error) {
	return s.doctors.List(ctx, StatusPending)
}

// DecideDoctorApproval moves a Pending doctor to Approved or Rejected.
// Both outcomes are terminal.
func (s *Service) DecideDoctorApproval(ctx context.Context, doctorID uuid.UUID, approve bool) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !d.IsPending() {
		return nil, apperr.InvalidState("doctor approval has already been decided: %s", d.ApprovalStatus)
	}

	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	at := s.now()
	ok, err := s.doctors.DecideIfPending(ctx, doctorID, status, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState("doctor approval has already been decided")
	}
	d.ApprovalStatus = status
	d.DecidedAt = &at
	return d, nil
}

// -- Rosters and records --

func (s *Service) DoctorPatients(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.doctors.ListPatients(ctx, doctorID)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) PatientRecords(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.patients.ListRecords(ctx, patientID)
}

type RecordInput struct {
	Type    string `json:"type" validate:"required,max=100"`
	Summary string `json:"summary" validate:"required,max=10000"`
}

// AddPatientRecord appends an entry authored by the doctor. The patient
// must be on the doctor's roster.
func (s *Service) AddPatientRecord(ctx context.Context, doctorID, patientID uuid.UUID, in RecordInput) (*Record, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Summary = strings.TrimSpace(in.Summary)
	if in.Type == "" || in.Summary == "" {
		return nil, apperr.Validation("type and summary are required")
	}

	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	onRoster, err := s.doctors.HasPatient(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !onRoster {
		return nil, apperr.Forbidden("patient is not on this doctor's roster")
	}

	rec := &Record{
		ID:        uuid.New(),
		PatientID: patientID,
		Date:      s.now(),
		Type:      in.Type,
		Author:    d.Name,
		Summary:   in.Summary,
	}
	if err := s.patients.AppendRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// -- Ownership --

func callerID(ctx context.Context) (uuid.UUID, error) {
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("authentication required")
	}
	return uid, nil
}

// AuthorizeDoctor allows admins and the doctor who owns the profile.
func (s *Service) AuthorizeDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return nil
	}
	uid, err := callerID(ctx)
	if err != nil {
		return err
	}
	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return err
	}
	if d.UserID != uid {
		return apperr.Forbidden("not allowed to act for this doctor")
	}
	return nil
}

// AuthorizePatient allows admins and the patient who owns the profile.
func (s *Service) AuthorizePatient(ctx context.Context, patientID uuid.UUID) error {
	if auth.RoleFromContext(ctx) == auth.RoleAdmin {
		return nil
	}
	uid, err := callerID(ctx)
	if err != nil {
		return err
	}
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p.UserID != uid {
		return apperr.Forbidden("not allowed to act for this patient")
	}
	return nil
}

// AuthorizePatientRead additionally lets a doctor read the records of a
// patient on their roster.
func (s *Service) AuthorizePatientRead(ctx context.Context, patientID uuid.UUID) error {
	if auth.RoleFromContext(ctx) != auth.RoleDoctor {
		return s.AuthorizePatient(ctx, patientID)
	}
	uid, err := callerID(ctx)
	if err != nil {
		return err
	}
	d, err := s.doctors.GetByUserID(ctx, uid)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Forbidden("no doctor profile for this account")
		}
		return err
	}
	ok, err := s.doctors.HasPatient(ctx, d.ID, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("patient is not on this doctor's roster")
	}
	return nil
}
