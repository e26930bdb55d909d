package inventory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

type mockProductRepo struct {
	products map[uuid.UUID]*Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*Product)}
}

func (m *mockProductRepo) Upsert(_ context.Context, p *Product) (bool, error) {
	for _, existing := range m.products {
		if existing.Brand == p.Brand && existing.Size == p.Size && existing.Type == p.Type {
			existing.Quantity += p.Quantity
			existing.CostPrice = p.CostPrice
			existing.UnitPrice = p.UnitPrice
			existing.Subtype = p.Subtype
			existing.UpdatedAt = time.Now()
			*p = *existing
			return true, nil
		}
		if existing.Barcode == p.Barcode {
			return false, apperr.Conflict("barcode in use")
		}
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.products[p.ID] = &cp
	return false, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) GetByBarcode(_ context.Context, barcode string) (*Product, error) {
	for _, p := range m.products {
		if p.Barcode == barcode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("product not found")
}

func (m *mockProductRepo) List(_ context.Context, f ListFilter) ([]*Product, int, error) {
	var result []*Product
	for _, p := range m.products {
		if f.Brand != "" && p.Brand != f.Brand {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(p.Brand, q) && !strings.Contains(p.Type, q) &&
				!strings.Contains(p.Subtype, q) && !strings.Contains(strings.ToLower(p.Barcode), q) {
				continue
			}
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Brand < result[j].Brand })
	total := len(result)
	if f.Offset >= total {
		return []*Product{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return result[f.Offset:end], total, nil
}

func (m *mockProductRepo) Update(_ context.Context, id uuid.UUID, in UpdateInput) (*Product, error) {
	existing, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	cp := *existing
	if in.Subtype != nil {
		cp.Subtype = *in.Subtype
	}
	if in.Quantity != nil {
		cp.Quantity = *in.Quantity
	}
	if in.CostPrice != nil {
		cp.CostPrice = *in.CostPrice
	}
	if in.UnitPrice != nil {
		cp.UnitPrice = *in.UnitPrice
	}
	if cp.UnitPrice <= cp.CostPrice {
		return nil, apperr.Validation("product violates stock or price rules")
	}
	cp.UpdatedAt = time.Now()
	m.products[id] = &cp
	out := cp
	return &out, nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return apperr.NotFound("product not found")
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) Decrement(_ context.Context, id uuid.UUID, qty int) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	if p.Quantity < qty {
		return nil, apperr.InsufficientStock("insufficient stock")
	}
	p.Quantity -= qty
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) DeleteIfEmpty(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := m.products[id]
	if !ok || p.Quantity != 0 {
		return false, nil
	}
	delete(m.products, id)
	return true, nil
}

func newTestService() (*Service, *mockProductRepo) {
	repo := newMockProductRepo()
	gen, err := NewBarcodeGenerator(1)
	if err != nil {
		panic(err)
	}
	return NewService(repo, gen), repo
}

func shirt(qty int) CreateInput {
	return CreateInput{Brand: " Acme ", Size: "M", Type: "Shirt", Subtype: "Polo", Quantity: qty, CostPrice: 5, UnitPrice: 8}
}
