package inventory

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

type Service struct {
	repo     ProductRepository
	barcodes *BarcodeGenerator
}

func NewService(repo ProductRepository, barcodes *BarcodeGenerator) *Service {
	return &Service{repo: repo, barcodes: barcodes}
}

type CreateInput struct {
	Brand     string  `json:"brand" validate:"required,max=100"`
	Size      string  `json:"size" validate:"required,max=50"`
	Type      string  `json:"type" validate:"required,max=100"`
	Subtype   string  `json:"subtype" validate:"max=100"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	CostPrice float64 `json:"costPrice" validate:"gt=0"`
	UnitPrice float64 `json:"unitPrice" validate:"gt=0"`
}

// UpdateInput changes stock and pricing. Identity fields and the barcode
// cannot be edited.
type UpdateInput struct {
	Subtype   *string  `json:"subtype" validate:"omitempty,max=100"`
	Quantity  *int     `json:"quantity" validate:"omitempty,gte=0"`
	CostPrice *float64 `json:"costPrice" validate:"omitempty,gt=0"`
	UnitPrice *float64 `json:"unitPrice" validate:"omitempty,gt=0"`
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkPrices(cost, unit float64) error {
	if cost <= 0 {
		return apperr.Validation("costPrice must be greater than 0")
	}
	if unit <= cost {
		return apperr.Validation("unitPrice must be greater than costPrice")
	}
	return nil
}

// Create adds stock. An existing product with the same brand, size and type
// absorbs the quantity and takes the new prices; merged reports that case.
func (s *Service) Create(ctx context.Context, in CreateInput) (p *Product, merged bool, err error) {
	p = &Product{
		Brand:     normalize(in.Brand),
		Size:      normalize(in.Size),
		Type:      normalize(in.Type),
		Subtype:   normalize(in.Subtype),
		Quantity:  in.Quantity,
		CostPrice: RoundMoney(in.CostPrice),
		UnitPrice: RoundMoney(in.UnitPrice),
	}
	if p.Brand == "" || p.Size == "" || p.Type == "" {
		return nil, false, apperr.Validation("brand, size and type are required")
	}
	if p.Quantity < 1 {
		return nil, false, apperr.Validation("quantity must be at least 1")
	}
	if err := checkPrices(p.CostPrice, p.UnitPrice); err != nil {
		return nil, false, err
	}

	p.ID = uuid.New()
	p.Barcode = s.barcodes.Next()
	merged, err = s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return p, merged, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperr.Validation("barcode is required")
	}
	return s.repo.GetByBarcode(ctx, barcode)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Product, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	f.Brand = normalize(f.Brand)
	f.Type = normalize(f.Type)
	if f.SortBy != "" {
		if _, ok := sortColumns[f.SortBy]; !ok {
			return nil, 0, apperr.Validation("cannot sort by %q", f.SortBy)
		}
	}
	return s.repo.List(ctx, f)
}

// Update applies only the fields present in in. The write is a single
// statement, so stock moved by a concurrent sale is never overwritten by a
// price or subtype edit.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Product, error) {
	if in.Subtype != nil {
		v := normalize(*in.Subtype)
		in.Subtype = &v
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}
	if in.CostPrice != nil {
		v := RoundMoney(*in.CostPrice)
		if v <= 0 {
			return nil, apperr.Validation("costPrice must be greater than 0")
		}
		in.CostPrice = &v
	}
	if in.UnitPrice != nil {
		v := RoundMoney(*in.UnitPrice)
		in.UnitPrice = &v
	}
	if in.CostPrice != nil && in.UnitPrice != nil {
		if err := checkPrices(*in.CostPrice, *in.UnitPrice); err != nil {
			return nil, err
		}
	}
	return s.repo.Update(ctx, id, in)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
