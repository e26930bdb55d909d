package statistics

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/auth"
	"github.com/medivision/medivision/internal/platform/worker"
	"github.com/medivision/medivision/pkg/envelope"
)

// JobSubmitter runs detached work. *worker.Pool satisfies it.
type JobSubmitter interface {
	Submit(name string, job worker.Job) error
}

type Handler struct {
	svc  *Service
	jobs JobSubmitter
}

func NewHandler(svc *Service, jobs JobSubmitter) *Handler {
	return &Handler{svc: svc, jobs: jobs}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/statistics", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.Query)
	g.GET("/summary", h.Summary)
	g.GET("/export", h.Export)
	g.POST("/recompute", h.Recompute)
	g.POST("/backfill", h.Backfill)
}

func (h *Handler) query(c echo.Context) (Query, error) {
	var q Query
	var err error
	if q.GroupBy, err = ParseGroupBy(c.QueryParam("groupBy")); err != nil {
		return q, err
	}
	if q.Start, err = h.svc.ParseDay(c.QueryParam("startDate"), "startDate"); err != nil {
		return q, err
	}
	if q.End, err = h.svc.ParseDay(c.QueryParam("endDate"), "endDate"); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handler) Query(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	points, err := h.svc.QueryRange(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return envelope.OK(c, "statistics", points)
}

func (h *Handler) Summary(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), q.Start, q.End)
	if err != nil {
		return err
	}
	return envelope.OK(c, "statistics summary", sum)
}

func (h *Handler) Export(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request().Context(), q, &buf); err != nil {
		return err
	}
	name := "statistics-" + string(q.GroupBy) + "-" + h.svc.today().Format("20060102") + ".csv"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Recompute rebuilds one day, today when no date is given.
func (h *Handler) Recompute(c echo.Context) error {
	day, err := h.svc.ParseDay(c.QueryParam("date"), "date")
	if err != nil {
		return err
	}
	t := h.svc.now()
	if day != nil {
		t = *day
	}
	if err := h.svc.RecomputeDay(c.Request().Context(), t); err != nil {
		return err
	}
	return envelope.OK(c, "statistics recomputed", map[string]string{"date": h.svc.civil(t).Format(dayLayout)})
}

func (h *Handler) Backfill(c echo.Context) error {
	from, err := h.svc.ParseDay(c.QueryParam("startDate"), "startDate")
	if err != nil {
		return err
	}
	to, err := h.svc.ParseDay(c.QueryParam("endDate"), "endDate")
	if err != nil {
		return err
	}
	if from != nil && to != nil && to.Before(*from) {
		return apperr.Validation("startDate must not be after endDate")
	}
	// The walk can span the whole sales history, so it runs on the worker
	// pool and reports through the log.
	err = h.jobs.Submit("stats.backfill", func(ctx context.Context) error {
		_, err := h.svc.BackfillRange(ctx, from, to)
		return err
	})
	if errors.Is(err, worker.ErrBusy) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "background workers are busy, retry later")
	}
	if err != nil {
		return err
	}
	return envelope.JSON(c, http.StatusAccepted, "statistics backfill queued", map[string]*string{
		"startDate": dayParam(from),
		"endDate":   dayParam(to),
	})
}

func dayParam(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(dayLayout)
	return &v
}
