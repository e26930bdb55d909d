package sales

import (
	"bytes"
	"net/http"

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
	g := api.Group("/sales", auth.RequireRole(auth.RoleAdmin))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/revenue", h.Revenue)
	g.GET("/export", h.Export)
	g.GET("/:id", h.Get)
	g.POST("/:id/bill", h.GenerateBill)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	sale, err := h.svc.CreateSale(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return envelope.Created(c, "sale recorded and inventory updated", sale)
}

func (h *Handler) window(c echo.Context) (Window, error) {
	return ParseWindow(c.QueryParam("startDate"), c.QueryParam("endDate"), h.svc.loc)
}

func (h *Handler) List(c echo.Context) error {
	w, err := h.window(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), Filter{
		Query:         c.QueryParam("query"),
		PaymentMethod: c.QueryParam("paymentMethod"),
		From:          w.From,
		To:            w.To,
		Limit:         pg.Limit,
		Offset:        pg.Offset(),
	})
	if err != nil {
		return err
	}
	return envelope.OK(c, "sales", pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	sale, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, "sale", sale)
}

func (h *Handler) Revenue(c echo.Context) error {
	w, err := h.window(c)
	if err != nil {
		return err
	}
	rev, err := h.svc.Revenue(c.Request().Context(), w)
	if err != nil {
		return err
	}
	return envelope.OK(c, "revenue", rev)
}

func (h *Handler) Export(c echo.Context) error {
	w, err := h.window(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request().Context(), w, &buf); err != nil {
		return err
	}
	name := "sales-" + h.svc.now().In(h.svc.loc).Format("20060102") + ".csv"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) GenerateBill(c echo.Context) error {
	id, err := validate.UUIDParam(c, "id")
	if err != nil {
		return err
	}
	var in BillInput
	if err := validate.Bind(c, &in); err != nil {
		return err
	}
	sale, err := h.svc.GenerateBill(c.Request().Context(), id, in.ContactNumber)
	if err != nil {
		return err
	}
	return envelope.OK(c, "bill sent", sale)
}
