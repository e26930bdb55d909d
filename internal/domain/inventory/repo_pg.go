package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/db"
)

type productRepoPG struct{ pool *pgxpool.Pool }

func NewProductRepoPG(pool *pgxpool.Pool) ProductRepository { return &productRepoPG{pool: pool} }

func (r *productRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const productCols = `id, brand, size, type, subtype, quantity, cost_price, unit_price, barcode, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Brand, &p.Size, &p.Type, &p.Subtype, &p.Quantity,
		&p.CostPrice, &p.UnitPrice, &p.Barcode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, err
	}
	return &p, nil
}

func translateWrite(err error, p *Product) error {
	if constraint, ok := db.IsUniqueViolation(err); ok {
		if constraint == "products_barcode_key" {
			return apperr.Conflict("barcode %s is already in use", p.Barcode)
		}
		return apperr.Conflict("product %s/%s/%s already exists", p.Brand, p.Size, p.Type)
	}
	if _, ok := db.IsCheckViolation(err); ok {
		return apperr.Validation("product violates stock or price rules")
	}
	return err
}

func (r *productRepoPG) Upsert(ctx context.Context, p *Product) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	var merged bool
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO products (id, brand, size, type, subtype, quantity, cost_price, unit_price, barcode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (brand, size, type) DO UPDATE SET
			quantity   = products.quantity + EXCLUDED.quantity,
			cost_price = EXCLUDED.cost_price,
			unit_price = EXCLUDED.unit_price,
			subtype    = EXCLUDED.subtype,
			updated_at = NOW()
		RETURNING `+productCols+`, (xmax <> 0) AS merged`,
		p.ID, p.Brand, p.Size, p.Type, p.Subtype, p.Quantity, p.CostPrice, p.UnitPrice, p.Barcode,
	).Scan(&p.ID, &p.Brand, &p.Size, &p.Type, &p.Subtype, &p.Quantity,
		&p.CostPrice, &p.UnitPrice, &p.Barcode, &p.CreatedAt, &p.UpdatedAt, &merged)
	if err != nil {
		return false, translateWrite(err, p)
	}
	return merged, nil
}

func (r *productRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return scanProduct(r.conn(ctx).QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
}

func (r *productRepoPG) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	return scanProduct(r.conn(ctx).QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE barcode = $1`, barcode))
}

func (r *productRepoPG) List(ctx context.Context, f ListFilter) ([]*Product, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(brand ILIKE $%d OR type ILIKE $%d OR subtype ILIKE $%d OR barcode ILIKE $%d)", n, n, n, n))
	}
	if f.Brand != "" {
		args = append(args, f.Brand)
		where = append(where, fmt.Sprintf("brand = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		productCols, clause, col, dir, len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *productRepoPG) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Product, error) {
	p, err := scanProduct(r.conn(ctx).QueryRow(ctx, `
		UPDATE products SET
			subtype    = COALESCE($2, subtype),
			quantity   = COALESCE($3, quantity),
			cost_price = COALESCE($4, cost_price),
			unit_price = COALESCE($5, unit_price),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+productCols,
		id, in.Subtype, in.Quantity, in.CostPrice, in.UnitPrice))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, translateWrite(err, &Product{ID: id})
	}
	return p, nil
}

func (r *productRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}

// Decrement is a single conditional UPDATE, so concurrent sales of the same
// product serialise on the row lock and can never drive quantity negative.
func (r *productRepoPG) Decrement(ctx context.Context, id uuid.UUID, qty int) (*Product, error) {
	p, err := scanProduct(r.conn(ctx).QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING `+productCols, id, qty))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	var onHand int
	err = r.conn(ctx).QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, id).Scan(&onHand)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return nil, apperr.InsufficientStock("product %s has %d on hand, %d requested", id, onHand, qty)
}

func (r *productRepoPG) DeleteIfEmpty(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1 AND quantity = 0`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
