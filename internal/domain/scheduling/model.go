package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"

	DefaultType = "General"
)

// Appointment is a patient's request for time with a doctor. Status moves
// once from Pending to Approved or Rejected.
type Appointment struct {
	ID          uuid.UUID  `json:"id"`
	DoctorID    uuid.UUID  `json:"doctorId"`
	PatientID   uuid.UUID  `json:"patientId"`
	DoctorName  string     `json:"doctorName,omitempty"`
	PatientName string     `json:"patientName,omitempty"`
	Type        string     `json:"type"`
	DateTime    time.Time  `json:"dateTime"`
	Status      string     `json:"status"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (a *Appointment) IsPending() bool { return a.Status == StatusPending }

// Filter narrows appointment listings. Zero values match everything.
type Filter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    string
}
