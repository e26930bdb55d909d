package scheduling

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/domain/identity"
	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/db"
)

// clockSkew is how far in the past a dateTime may lie and still count as
// the present.
const clockSkew = time.Minute

// slotPattern matches the "10:00 AM - 11:00 AM" form older clients send.
var slotPattern = regexp.MustCompile(`^\s*(\d{1,2}:\d{2}\s*[AaPp][Mm])\s*-\s*\d{1,2}:\d{2}\s*[AaPp][Mm]\s*$`)

type Service struct {
	tx       db.TxRunner
	appts    AppointmentRepository
	doctors  identity.DoctorRepository
	patients identity.PatientRepository
	loc      *time.Location
	now      func() time.Time
}

func NewService(tx db.TxRunner, appts AppointmentRepository, doctors identity.DoctorRepository, patients identity.PatientRepository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		tx:       tx,
		appts:    appts,
		doctors:  doctors,
		patients: patients,
		loc:      loc,
		now:      time.Now,
	}
}

type BookInput struct {
	DoctorID string `json:"doctorId" validate:"required,uuid"`
	Type     string `json:"type" validate:"max=100"`
	DateTime string `json:"dateTime" validate:"required"`
}

// Book creates a Pending appointment. Double-booking a slot is allowed.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, in BookInput) (*Appointment, error) {
	doctorID, err := uuid.Parse(in.DoctorID)
	if err != nil {
		return nil, apperr.Validation("doctorId must be a valid id")
	}

	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	d, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !d.IsApproved() {
		return nil, apperr.InvalidState("doctor %s is not accepting appointments (%s)", d.Name, d.ApprovalStatus)
	}

	at, err := s.parseDateTime(in.DateTime)
	if err != nil {
		return nil, err
	}

	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		typ = DefaultType
	}

	a := &Appointment{
		ID:          uuid.New(),
		DoctorID:    d.ID,
		PatientID:   p.ID,
		DoctorName:  d.Name,
		PatientName: p.Name,
		Type:        typ,
		DateTime:    at,
		Status:      StatusPending,
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// parseDateTime accepts any layout dateparse recognises plus the legacy
// time-slot form, which is read as the start of the slot today.
func (s *Service) parseDateTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	now := s.now().In(s.loc)

	var at time.Time
	if m := slotPattern.FindStringSubmatch(raw); m != nil {
		start := strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
		if !strings.Contains(start, " ") {
			start = start[:len(start)-2] + " " + start[len(start)-2:]
		}
		clock, err := time.ParseInLocation("3:04 PM", start, s.loc)
		if err != nil {
			return time.Time{}, apperr.Validation("dateTime %q is not a valid time slot", raw)
		}
		at = time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, s.loc)
	} else {
		t, err := dateparse.ParseIn(raw, s.loc)
		if err != nil {
			return time.Time{}, apperr.Validation("dateTime %q is not a valid date and time", raw)
		}
		at = t
	}

	if at.Before(now.Add(-clockSkew)) {
		return time.Time{}, apperr.Validation("dateTime must not be in the past")
	}
	return at, nil
}

// Decide moves a Pending appointment of doctorID to Approved or Rejected.
// Approval also puts the patient on the doctor's roster; both writes share
// one transaction.
func (s *Service) Decide(ctx context.Context, doctorID, apptID uuid.UUID, approve bool) (*Appointment, error) {
	var out *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.appts.GetByID(ctx, apptID)
		if err != nil {
			return err
		}
		if a.DoctorID != doctorID {
			return apperr.NotFound("appointment not found")
		}
		if !a.IsPending() {
			return apperr.InvalidState("appointment has already been %s", strings.ToLower(a.Status))
		}

		status := StatusRejected
		if approve {
			status = StatusApproved
		}
		at := s.now()
		ok, err := s.appts.DecideIfPending(ctx, apptID, status, at)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("appointment has already been decided")
		}
		if approve {
			if err := s.doctors.AddPatient(ctx, a.DoctorID, a.PatientID); err != nil {
				return err
			}
		}

		a.Status = status
		a.DecidedAt = &at
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.appts.List(ctx, Filter{DoctorID: &doctorID})
}

func (s *Service) PendingForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.appts.List(ctx, Filter{DoctorID: &doctorID, Status: StatusPending})
}

func (s *Service) ForPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.appts.List(ctx, Filter{PatientID: &patientID})
}

// DeleteForDoctor removes every appointment of a doctor. Maintenance only.
func (s *Service) DeleteForDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return 0, err
	}
	return s.appts.DeleteByDoctor(ctx, doctorID)
}
