package inventory

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/validate"
	"github.com/medivision/medivision/pkg/envelope"
	"github.com/medivision/medivision/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/products", auth.RequireRole(auth.RoleAdmin))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/barcode/:code", h.GetByBarcode)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	p, merged, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	if merged {
		return envelope.OK(c, "product stock updated", p)
	}
	return envelope.Created(c, "product created", p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Query:  c.QueryParam("query"),
		Brand:  c.QueryParam("brand"),
		Type:   c.QueryParam("type"),
		SortBy: c.QueryParam("sortBy"),
		Desc:   !strings.EqualFold(c.QueryParam("order"), "asc"),
		Limit:  pg.Limit,
		Offset: pg.Offset(),
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return envelope.OK(c, "products", pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "product", p)
}

func (h *Handler) GetByBarcode(c echo.Context) error {
	p, err := h.svc.GetByBarcode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return envelope.OK(c, "product", p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, "product updated", p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return envelope.OK(c, "product deleted", nil)
}
