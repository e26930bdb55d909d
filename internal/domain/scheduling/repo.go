package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// List returns matching appointments ordered by date_time ascending.
	List(ctx context.Context, f Filter) ([]*Appointment, error)
	// DecideIfPending sets a terminal status on a Pending appointment and
	// reports false when it was already decided.
	DecideIfPending(ctx context.Context, id uuid.UUID, status string, at time.Time) (bool, error)
	DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error)
}
