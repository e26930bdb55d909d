package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/db"
)

type saleRepoPG struct{ pool *pgxpool.Pool }

func NewSaleRepoPG(pool *pgxpool.Pool) SaleRepository { return &saleRepoPG{pool: pool} }

func (r *saleRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const saleCols = `id, total_price, final_discount, payment_method, customer_contact, bill_generated, created_at`

const itemCols = `sale_id, line_no, product_id, brand, size, type, quantity, unit_price, discount, selling_price, cost_price`

func (r *saleRepoPG) Create(ctx context.Context, s *Sale) error {
	q := r.conn(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO sales (`+saleCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.TotalPrice, s.FinalDiscount, s.PaymentMethod, s.CustomerContact, s.BillGenerated, s.CreatedAt)
	if err != nil {
		if _, ok := db.IsCheckViolation(err); ok {
			return apperr.Validation("sale violates price or payment rules")
		}
		return err
	}
	for _, li := range s.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO sale_items (`+itemCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			s.ID, li.LineNo, li.ProductID, li.Brand, li.Size, li.Type, li.Quantity,
			li.UnitPrice, li.Discount, li.SellingPrice, li.CostPrice)
		if err != nil {
			if _, ok := db.IsCheckViolation(err); ok {
				return apperr.Validation("line %d violates price rules", li.LineNo)
			}
			return err
		}
	}
	return nil
}

func (r *saleRepoPG) scanSales(ctx context.Context, query string, args ...interface{}) ([]*Sale, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Sale{}
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.TotalPrice, &s.FinalDiscount, &s.PaymentMethod,
			&s.CustomerContact, &s.BillGenerated, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

// attachItems loads the line items of sales in one query.
func (r *saleRepoPG) attachItems(ctx context.Context, sales []*Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(sales))
	byID := make(map[uuid.UUID]*Sale, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		byID[s.ID] = s
		s.Items = []LineItem{}
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+` FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			saleID uuid.UUID
			li     LineItem
		)
		if err := rows.Scan(&saleID, &li.LineNo, &li.ProductID, &li.Brand, &li.Size, &li.Type,
			&li.Quantity, &li.UnitPrice, &li.Discount, &li.SellingPrice, &li.CostPrice); err != nil {
			return err
		}
		if s, ok := byID[saleID]; ok {
			s.Items = append(s.Items, li)
		}
	}
	return rows.Err()
}

func (r *saleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	found, err := r.scanSales(ctx, `SELECT `+saleCols+` FROM sales WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperr.NotFound("sale not found")
	}
	if err := r.attachItems(ctx, found); err != nil {
		return nil, err
	}
	return found[0], nil
}

func windowClause(alias string, from, to *time.Time, args []interface{}) ([]string, []interface{}) {
	var where []string
	if from != nil {
		args = append(args, *from)
		where = append(where, fmt.Sprintf("%screated_at >= $%d", alias, len(args)))
	}
	if to != nil {
		args = append(args, *to)
		where = append(where, fmt.Sprintf("%screated_at < $%d", alias, len(args)))
	}
	return where, args
}

func (r *saleRepoPG) List(ctx context.Context, f Filter) ([]*Sale, int, error) {
	where, args := windowClause("", f.From, f.To, nil)
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("customer_contact ILIKE $%d", len(args)))
	}
	if f.PaymentMethod != "" {
		args = append(args, f.PaymentMethod)
		where = append(where, fmt.Sprintf("payment_method = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM sales`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	found, err := r.scanSales(ctx, fmt.Sprintf(`SELECT %s FROM sales%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		saleCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachItems(ctx, found); err != nil {
		return nil, 0, err
	}
	return found, total, nil
}

func (r *saleRepoPG) MarkBilled(ctx context.Context, id uuid.UUID, contact string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sales SET bill_generated = TRUE, customer_contact = $2 WHERE id = $1`, id, contact)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("sale not found")
	}
	return nil
}

func (r *saleRepoPG) Revenue(ctx context.Context, from, to *time.Time) (*Revenue, error) {
	where, args := windowClause("s.", from, to, nil)
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var rev Revenue
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(i.selling_price * i.quantity), 0)::float8,
		       COALESCE(SUM((i.selling_price - i.cost_price) * i.quantity), 0)::float8,
		       COUNT(DISTINCT s.id)
		FROM sales s
		LEFT JOIN sale_items i ON i.sale_id = s.id`+clause, args...).
		Scan(&rev.TotalRevenue, &rev.TotalProfit, &rev.SalesCount)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *saleRepoPG) Items(ctx context.Context, from, to *time.Time) ([]*Sale, error) {
	where, args := windowClause("", from, to, nil)
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	found, err := r.scanSales(ctx, `SELECT `+saleCols+` FROM sales`+clause+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, found); err != nil {
		return nil, err
	}
	return found, nil
}
