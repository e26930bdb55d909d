package statistics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medivision/medivision/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) Aggregate(ctx context.Context, from, to time.Time) (Totals, error) {
	var t Totals
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(i.selling_price * i.quantity), 0)::float8,
		       COALESCE(SUM((i.selling_price - i.cost_price) * i.quantity), 0)::float8
		FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		WHERE s.created_at >= $1 AND s.created_at < $2`, from, to).Scan(&t.Revenue, &t.Profit)
	return t, err
}

func (r *repoPG) Upsert(ctx context.Context, s DailyStat) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO daily_statistics (day, total_revenue, total_profit, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (day) DO UPDATE SET
			total_revenue = EXCLUDED.total_revenue,
			total_profit  = EXCLUDED.total_profit,
			updated_at    = NOW()`,
		s.Day.Format(dayLayout), s.TotalRevenue, s.TotalProfit)
	return err
}

func (r *repoPG) LockDay(ctx context.Context, day time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('daily_statistics:' || $1))`,
		day.Format(dayLayout))
	return err
}

func (r *repoPG) ListRange(ctx context.Context, first, last time.Time) ([]DailyStat, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD'), total_revenue::float8, total_profit::float8
		FROM daily_statistics
		WHERE day BETWEEN $1::date AND $2::date
		ORDER BY day`, first.Format(dayLayout), last.Format(dayLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DailyStat{}
	for rows.Next() {
		var (
			day string
			s   DailyStat
		)
		if err := rows.Scan(&day, &s.TotalRevenue, &s.TotalProfit); err != nil {
			return nil, err
		}
		if s.Day, err = time.Parse(dayLayout, day); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) SalesSpan(ctx context.Context) (*time.Time, *time.Time, error) {
	var first, last *time.Time
	err := r.conn(ctx).QueryRow(ctx, `SELECT MIN(created_at), MAX(created_at) FROM sales`).Scan(&first, &last)
	return first, last, err
}
