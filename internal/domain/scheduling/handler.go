package scheduling

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/validate"
	"github.com/medivision/medivision/pkg/envelope"
)

// Authorizer decides whether the caller on ctx may act for a doctor or
// patient profile.
type Authorizer interface {
	AuthorizeDoctor(ctx context.Context, doctorID uuid.UUID) error
	AuthorizePatient(ctx context.Context, patientID uuid.UUID) error
}

type Handler struct {
	svc   *Service
	authz Authorizer
}

func NewHandler(svc *Service, authz Authorizer) *Handler {
	return &Handler{svc: svc, authz: authz}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("/doctors/:id", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/appointments", h.DoctorAppointments)
	doctor.GET("/pending-approvals", h.PendingApprovals)
	doctor.POST("/appointments/:apptId/approval", h.Decide)

	patient := api.Group("/patients/:id", auth.RequireRole(auth.RolePatient))
	patient.GET("/appointments", h.PatientAppointments)
	patient.POST("/appointments", h.Book)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/doctors/:id/appointments", h.DeleteDoctorAppointments)
}

func (h *Handler) doctorParam(c echo.Context) (uuid.UUID, error) {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	if err := h.authz.AuthorizeDoctor(c.Request().Context(), id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (h *Handler) patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	if err := h.authz.AuthorizePatient(c.Request().Context(), id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (h *Handler) DoctorAppointments(c echo.Context) error {
	id, err := h.doctorParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ForDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "appointments", items)
}

func (h *Handler) PendingApprovals(c echo.Context) error {
	id, err := h.doctorParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.PendingForDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "pending appointments", items)
}

type decisionRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

func (h *Handler) Decide(c echo.Context) error {
	doctorID, err := h.doctorParam(c)
	if err != nil {
		return err
	}
	apptID, err := validate.UUIDParam(c, "apptId")
	if err != nil {
		return err
	}
	var in decisionRequest
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.Decide(c.Request().Context(), doctorID, apptID, *in.Approve)
	if err != nil {
		return err
	}
	return envelope.OK(c, "appointment "+a.Status, a)
}

func (h *Handler) PatientAppointments(c echo.Context) error {
	id, err := h.patientParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ForPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "appointments", items)
}

func (h *Handler) Book(c echo.Context) error {
	id, err := h.patientParam(c)
	if err != nil {
		return err
	}
	var in BookInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.Book(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.Created(c, "appointment booked", a)
}

func (h *Handler) DeleteDoctorAppointments(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	n, err := h.svc.DeleteForDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "deleted "+strconv.FormatInt(n, 10)+" appointments", map[string]int64{"deleted": n})
}
