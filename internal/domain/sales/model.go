package sales

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentCash = "Cash"
	PaymentCard = "Card"
	PaymentUPI  = "UPI"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

// LineItem snapshots the product as it was when the sale was recorded.
// Later price changes or deletion of the product do not affect it.
type LineItem struct {
	LineNo       int       `json:"lineNo"`
	ProductID    uuid.UUID `json:"productId"`
	Brand        string    `json:"brand"`
	Size         string    `json:"size"`
	Type         string    `json:"type"`
	Quantity     int       `json:"quantity"`
	UnitPrice    float64   `json:"unitPrice"`
	Discount     float64   `json:"discount"`
	SellingPrice float64   `json:"sellingPrice"`
	CostPrice    float64   `json:"costPriceAtSale"`
}

// Revenue returns sellingPrice * quantity.
func (li LineItem) Revenue() float64 { return li.SellingPrice * float64(li.Quantity) }

// Profit returns (sellingPrice - costPrice) * quantity.
func (li LineItem) Profit() float64 {
	return (li.SellingPrice - li.CostPrice) * float64(li.Quantity)
}

// Sale is immutable once created except for the billing fields.
type Sale struct {
	ID              uuid.UUID  `json:"id"`
	Items           []LineItem `json:"lineItems"`
	TotalPrice      float64    `json:"totalPrice"`
	FinalDiscount   float64    `json:"finalDiscount"`
	PaymentMethod   string     `json:"paymentMethod"`
	CustomerContact string     `json:"customerContact,omitempty"`
	BillGenerated   bool       `json:"billGenerated"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Filter narrows sale listings. From is inclusive, To exclusive.
type Filter struct {
	Query         string
	PaymentMethod string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// Revenue is computed from line items, so it matches the statistics rollup.
type Revenue struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalProfit  float64 `json:"totalProfit"`
	SalesCount   int     `json:"salesCount"`
}

// ExportRow is one line item in the CSV export.
type ExportRow struct {
	SaleID        string  `csv:"sale_id"`
	CreatedAt     string  `csv:"created_at"`
	PaymentMethod string  `csv:"payment_method"`
	LineNo        int     `csv:"line_no"`
	ProductID     string  `csv:"product_id"`
	Brand         string  `csv:"brand"`
	Size          string  `csv:"size"`
	Type          string  `csv:"type"`
	Quantity      int     `csv:"quantity"`
	UnitPrice     float64 `csv:"unit_price"`
	Discount      float64 `csv:"discount"`
	SellingPrice  float64 `csv:"selling_price"`
	CostPrice     float64 `csv:"cost_price"`
	Revenue       float64 `csv:"revenue"`
	Profit        float64 `csv:"profit"`
}
