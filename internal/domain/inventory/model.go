package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Product is a stock line identified by (brand, size, type).
type Product struct {
	ID        uuid.UUID `json:"id"`
	Brand     string    `json:"brand"`
	Size      string    `json:"size"`
	Type      string    `json:"type"`
	Subtype   string    `json:"subtype"`
	Quantity  int       `json:"quantity"`
	CostPrice float64   `json:"costPrice"`
	UnitPrice float64   `json:"unitPrice"`
	Barcode   string    `json:"barcode"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListFilter narrows and orders product listings.
type ListFilter struct {
	Query  string
	Brand  string
	Type   string
	SortBy string
	Desc   bool
	Limit  int
	Offset int
}

// sortColumns maps API sort keys to columns.
var sortColumns = map[string]string{
	"brand":     "brand",
	"size":      "size",
	"type":      "type",
	"subtype":   "subtype",
	"quantity":  "quantity",
	"costPrice": "cost_price",
	"unitPrice": "unit_price",
	"barcode":   "barcode",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}
