package sales

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/domain/inventory"
)

type SaleRepository interface {
	// Create stores the sale and its line items.
	Create(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	// List returns sales newest first, with their line items.
	List(ctx context.Context, f Filter) ([]*Sale, int, error)
	MarkBilled(ctx context.Context, id uuid.UUID, contact string) error
	Revenue(ctx context.Context, from, to *time.Time) (*Revenue, error)
	// Items returns every line item of sales created in [from, to) joined
	// with its sale, oldest first.
	Items(ctx context.Context, from, to *time.Time) ([]*Sale, error)
}

// Stock is the part of the product store a sale needs.
type Stock interface {
	Decrement(ctx context.Context, id uuid.UUID, qty int) (*inventory.Product, error)
	DeleteIfEmpty(ctx context.Context, id uuid.UUID) (bool, error)
}
