package inventory

import (
	"context"

	"github.com/google/uuid"
)

type ProductRepository interface {
	// Upsert inserts p or, when a product with the same brand, size and type
	// exists, adds p.Quantity to it and takes p's prices and subtype. p is
	// filled with the stored row; merged reports which path was taken.
	Upsert(ctx context.Context, p *Product) (merged bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*Product, error)
	List(ctx context.Context, f ListFilter) ([]*Product, int, error)
	// Update sets the non-nil fields of in and returns the stored row. A
	// unit price not above the cost price fails with ValidationError.
	Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Decrement atomically removes qty units when at least qty are on hand
	// and returns the updated product. It fails with InsufficientStock
	// otherwise and leaves the row untouched.
	Decrement(ctx context.Context, id uuid.UUID, qty int) (*Product, error)
	// DeleteIfEmpty removes the product when its quantity is zero.
	DeleteIfEmpty(ctx context.Context, id uuid.UUID) (bool, error)
}
