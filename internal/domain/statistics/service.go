package statistics

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/domain/inventory"
	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/db"
)

// maxSeriesDays caps how many calendar days a single query may span.
const maxSeriesDays = 3660

type Service struct {
	repo   Repository
	tx     db.TxRunner
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:   repo,
		tx:     tx,
		loc:    loc,
		logger: logger.With().Str("component", "statistics").Logger(),
		now:    time.Now,
	}
}

// civil maps an instant to its calendar date in the store's time zone,
// expressed as midnight UTC.
func (s *Service) civil(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// bounds returns the local [start, end) instants of a civil day.
func (s *Service) bounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *Service) today() time.Time { return s.civil(s.now()) }

// RecomputeDay rebuilds the stored row for the local calendar day that
// contains t. Days without sales are stored as zero. Recomputes of the same
// day are serialised, so the last one to finish has seen every committed
// sale.
func (s *Service) RecomputeDay(ctx context.Context, t time.Time) error {
	day := s.civil(t)
	from, to := s.bounds(day)
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockDay(ctx, day); err != nil {
			return fmt.Errorf("lock %s: %w", day.Format(dayLayout), err)
		}
		totals, err := s.repo.Aggregate(ctx, from, to)
		if err != nil {
			return fmt.Errorf("aggregate %s: %w", day.Format(dayLayout), err)
		}
		stat := DailyStat{Day: day, TotalRevenue: inventory.RoundMoney(totals.Revenue), TotalProfit: inventory.RoundMoney(totals.Profit)}
		if err := s.repo.Upsert(ctx, stat); err != nil {
			return fmt.Errorf("store %s: %w", day.Format(dayLayout), err)
		}
		return nil
	})
}

// BackfillRange recomputes every day between from and to inclusive. Nil
// bounds default to the first and last day that has a sale. It returns the
// number of days written.
func (s *Service) BackfillRange(ctx context.Context, from, to *time.Time) (int, error) {
	if from == nil || to == nil {
		first, last, err := s.repo.SalesSpan(ctx)
		if err != nil {
			return 0, fmt.Errorf("sales span: %w", err)
		}
		if first == nil {
			return 0, nil
		}
		if from == nil {
			from = first
		}
		if to == nil {
			to = last
		}
	}
	start, end := s.civil(*from), s.civil(*to)
	if end.Before(start) {
		return 0, apperr.Validation("backfill start must not be after its end")
	}

	n := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := s.RecomputeDay(ctx, s.atLocalNoon(day)); err != nil {
			return n, err
		}
		n++
	}
	s.logger.Info().Int("days", n).Str("from", start.Format(dayLayout)).Str("to", end.Format(dayLayout)).
		Msg("statistics backfilled")
	return n, nil
}

// atLocalNoon turns a civil day back into an instant that civil maps to the
// same day regardless of DST transitions.
func (s *Service) atLocalNoon(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, s.loc)
}

// ParseDay reads an optional date; empty input yields nil.
func (s *Service) ParseDay(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := dateparse.ParseIn(raw, s.loc)
	if err != nil {
		return nil, apperr.Validation("%s %q is not a valid date", field, raw)
	}
	return &t, nil
}

// window resolves the civil first and last day of a query.
func (s *Service) window(q Query) (time.Time, time.Time, error) {
	today := s.today()
	var first, last time.Time
	switch q.GroupBy {
	case GroupDaily:
		first, last = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), today
	case GroupMonthly:
		cur := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		first, last = cur.AddDate(0, -11, 0), cur.AddDate(0, 1, -1)
	case GroupYearly:
		first = time.Date(today.Year()-9, time.January, 1, 0, 0, 0, 0, time.UTC)
		last = time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		first, last = today.AddDate(0, 0, -29), today
	}
	if q.Start != nil {
		first = s.civil(*q.Start)
	}
	if q.End != nil {
		last = s.civil(*q.End)
	}

	switch q.GroupBy {
	case GroupMonthly:
		first = time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
		last = time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	case GroupYearly:
		first = time.Date(first.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		last = time.Date(last.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	}

	if last.Before(first) {
		return first, last, apperr.Validation("startDate must not be after endDate")
	}
	if int(last.Sub(first).Hours()/24)+1 > maxSeriesDays {
		return first, last, apperr.Validation("date range may span at most %d days", maxSeriesDays)
	}
	return first, last, nil
}

func periodKey(day time.Time, g GroupBy) string {
	switch g {
	case GroupMonthly:
		return day.Format("2006-01")
	case GroupYearly:
		return day.Format("2006")
	}
	return day.Format(dayLayout)
}

func nextPeriod(day time.Time, g GroupBy) time.Time {
	switch g {
	case GroupMonthly:
		return day.AddDate(0, 1, 0)
	case GroupYearly:
		return day.AddDate(1, 0, 0)
	}
	return day.AddDate(0, 0, 1)
}

// QueryRange returns a series over the resolved window. GroupNone lists
// stored days only; the other groupings return one zero-filled point per
// period, oldest first.
func (s *Service) QueryRange(ctx context.Context, q Query) ([]Point, error) {
	if q.GroupBy == "" {
		q.GroupBy = GroupNone
	}
	first, last, err := s.window(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListRange(ctx, first, last)
	if err != nil {
		return nil, err
	}

	if q.GroupBy == GroupNone {
		out := make([]Point, 0, len(rows))
		for _, r := range rows {
			out = append(out, Point{Period: r.Day.Format(dayLayout), TotalRevenue: r.TotalRevenue, TotalProfit: r.TotalProfit})
		}
		return out, nil
	}

	idx := map[string]int{}
	var out []Point
	for p := first; !p.After(last); p = nextPeriod(p, q.GroupBy) {
		key := periodKey(p, q.GroupBy)
		idx[key] = len(out)
		out = append(out, Point{Period: key})
	}
	for _, r := range rows {
		i, ok := idx[periodKey(r.Day, q.GroupBy)]
		if !ok {
			continue
		}
		out[i].TotalRevenue += r.TotalRevenue
		out[i].TotalProfit += r.TotalProfit
	}
	for i := range out {
		out[i].TotalRevenue = inventory.RoundMoney(out[i].TotalRevenue)
		out[i].TotalProfit = inventory.RoundMoney(out[i].TotalProfit)
	}
	return out, nil
}

// Summary describes the daily series between start and end, defaulting to
// the last 30 days.
func (s *Service) Summary(ctx context.Context, start, end *time.Time) (*Summary, error) {
	q := Query{Start: start, End: end, GroupBy: GroupDaily}
	if start == nil {
		base := s.today()
		if end != nil {
			base = s.civil(*end)
		}
		t := s.atLocalNoon(base.AddDate(0, 0, -29))
		q.Start = &t
	}
	points, err := s.QueryRange(ctx, q)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Start: points[0].Period,
		End:   points[len(points)-1].Period,
		Days:  len(points),
	}
	revenue := make(stats.Float64Data, 0, len(points))
	profit := make(stats.Float64Data, 0, len(points))
	for _, p := range points {
		revenue = append(revenue, p.TotalRevenue)
		profit = append(profit, p.TotalProfit)
	}
	if sum.TotalRevenue, err = revenue.Sum(); err != nil {
		return nil, err
	}
	if sum.TotalProfit, err = profit.Sum(); err != nil {
		return nil, err
	}
	if sum.MeanDailyRevenue, err = revenue.Mean(); err != nil {
		return nil, err
	}
	if sum.MedianDailyRevenue, err = revenue.Median(); err != nil {
		return nil, err
	}
	sum.TotalRevenue = inventory.RoundMoney(sum.TotalRevenue)
	sum.TotalProfit = inventory.RoundMoney(sum.TotalProfit)
	sum.MeanDailyRevenue = inventory.RoundMoney(sum.MeanDailyRevenue)
	sum.MedianDailyRevenue = inventory.RoundMoney(sum.MedianDailyRevenue)

	best, err := revenue.Max()
	if err != nil {
		return nil, err
	}
	if best > 0 {
		for i := range points {
			if points[i].TotalRevenue == best {
				p := points[i]
				sum.BestDay = &p
				break
			}
		}
	}
	return sum, nil
}

// Export writes the series as CSV.
func (s *Service) Export(ctx context.Context, q Query, w io.Writer) error {
	points, err := s.QueryRange(ctx, q)
	if err != nil {
		return err
	}
	return gocsv.Marshal(&points, w)
}
