package identity

import (
	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/validate"
	"github.com/medivision/medivision/pkg/envelope"
	"github.com/medivision/medivision/pkg/pagination"
)

// HandlerOptions carries the transport settings of the auth endpoints.
type HandlerOptions struct {
	CookieName   string
	SecureCookie bool
	// AuthLimiter guards register and login. Nil disables limiting.
	AuthLimiter echo.MiddlewareFunc
}

type Handler struct {
	svc  *Service
	opts HandlerOptions
}

func NewHandler(svc *Service, opts HandlerOptions) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "accessToken"
	}
	return &Handler{svc: svc, opts: opts}
}

// RegisterRoutes mounts the auth endpoints on public and everything else on
// protected, which must already carry the JWT middleware.
func (h *Handler) RegisterRoutes(public, protected *echo.Group) {
	var limited []echo.MiddlewareFunc
	if h.opts.AuthLimiter != nil {
		limited = append(limited, h.opts.AuthLimiter)
	}
	public.POST("/auth/register", h.Register, limited...)
	public.POST("/auth/login", h.Login, limited...)
	public.POST("/auth/logout", h.Logout)

	protected.GET("/auth/me", h.Me)
	protected.GET("/doctors", h.ListApprovedDoctors)

	doctor := protected.Group("/doctors/:id", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/patients", h.DoctorPatients)
	doctor.POST("/patients/:patientId/records", h.AddPatientRecord)

	protected.GET("/patients/:id/records", h.PatientRecords, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))

	admin := protected.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/doctors", h.ListDoctors)
	admin.GET("/pending-approvals", h.ListPendingDoctors)
	admin.POST("/doctors/:id/approval", h.DecideDoctorApproval)
	admin.GET("/patients", h.ListPatients)
	admin.GET("/users", h.ListUsers)
}

// -- Auth --

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	auth.SetTokenCookie(c, h.opts.CookieName, res.Token, res.ExpiresAt, h.opts.SecureCookie)
	return envelope.Created(c, "registration successful", res)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c echo.Context) error {
	var in loginRequest
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	auth.SetTokenCookie(c, h.opts.CookieName, res.Token, res.ExpiresAt, h.opts.SecureCookie)
	return envelope.OK(c, "login successful", res)
}

func (h *Handler) Logout(c echo.Context) error {
	auth.ClearTokenCookie(c, h.opts.CookieName, h.opts.SecureCookie)
	return envelope.OK(c, "logged out", nil)
}

func (h *Handler) Me(c echo.Context) error {
	acct, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return err
	}
	return envelope.OK(c, "current user", acct)
}

// -- Doctors --

func (h *Handler) ListApprovedDoctors(c echo.Context) error {
	doctors, err := h.svc.ListApprovedDoctors(c.Request().Context())
	if err != nil {
		return err
	}
	return envelope.OK(c, "doctors", doctors)
}

func (h *Handler) DoctorPatients(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.AuthorizeDoctor(ctx, id); err != nil {
		return err
	}
	patients, err := h.svc.DoctorPatients(ctx, id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "doctor patients", patients)
}

func (h *Handler) AddPatientRecord(c echo.Context) error {
	doctorID, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	patientID, err := validate.UUIDParam(c, "patientId")
	if err != nil {
		return err
	}
	var in RecordInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.AuthorizeDoctor(ctx, doctorID); err != nil {
		return err
	}
	rec, err := h.svc.AddPatientRecord(ctx, doctorID, patientID, in)
	if err != nil {
		return err
	}
	return envelope.Created(c, "record added", rec)
}

// -- Patients --

func (h *Handler) PatientRecords(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.AuthorizePatientRead(ctx, id); err != nil {
		return err
	}
	records, err := h.svc.PatientRecords(ctx, id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "patient records", records)
}

// -- Admin --

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return err
	}
	return envelope.OK(c, "doctors", doctors)
}

func (h *Handler) ListPendingDoctors(c echo.Context) error {
	doctors, err := h.svc.ListPendingDoctors(c.Request().Context())
	if err != nil {
		return err
	}
	return envelope.OK(c, "pending doctors", doctors)
}

// decisionRequest is the body of an approval decision.
type decisionRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

func (h *Handler) DecideDoctorApproval(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	var in decisionRequest
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.DecideDoctorApproval(c.Request().Context(), id, *in.Approve)
	if err != nil {
		return err
	}
	return envelope.OK(c, "doctor "+d.ApprovalStatus, d)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return envelope.OK(c, "patients", pagination.NewResponse(patients, total, pg))
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	return envelope.OK(c, "users", pagination.NewResponse(users, total, pg))
}
