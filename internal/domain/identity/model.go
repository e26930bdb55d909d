package identity

import (
	"time"

	"github.com/google/uuid"
)

// Approval states shared by doctor admission.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Doctor struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"userId"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Specialty       string     `json:"specialty"`
	ExperienceYears int        `json:"experienceYears"`
	ApprovalStatus  string     `json:"approvalStatus"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (d *Doctor) IsApproved() bool { return d.ApprovalStatus == StatusApproved }

func (d *Doctor) IsPending() bool { return d.ApprovalStatus == StatusPending }

type Patient struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Phone     string    `json:"phone"`
	Condition string    `json:"condition"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record is one entry of a patient's append-only clinical history.
type Record struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patientId"`
	Date      time.Time `json:"date"`
	Type      string    `json:"type"`
	Author    string    `json:"author"`
	Summary   string    `json:"summary"`
}

// Account is a user together with the profile created for its role.
type Account struct {
	User      *User      `json:"user"`
	DoctorID  *uuid.UUID `json:"doctorId,omitempty"`
	PatientID *uuid.UUID `json:"patientId,omitempty"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Account
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
