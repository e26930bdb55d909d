package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	// List returns doctors ordered by name; an empty status means all.
	List(ctx context.Context, status string) ([]*Doctor, error)
	// DecideIfPending moves a Pending doctor to status. It reports false
	// when the doctor was no longer Pending.
	DecideIfPending(ctx context.Context, id uuid.UUID, status string, at time.Time) (bool, error)
	// AddPatient inserts into the roster; an existing entry is left alone.
	AddPatient(ctx context.Context, doctorID, patientID uuid.UUID) error
	HasPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	ListPatients(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	AppendRecord(ctx context.Context, r *Record) error
	ListRecords(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
}
