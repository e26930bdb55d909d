package sales

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/domain/inventory"
	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/worker"
)

// -- Mock stock --

type mockStock struct {
	products map[uuid.UUID]*inventory.Product
}

func (m *mockStock) Decrement(_ context.Context, id uuid.UUID, qty int) (*inventory.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound("product %s not found", id)
	}
	if p.Quantity < qty {
		return nil, apperr.InsufficientStock("product %s has %d on hand", id, p.Quantity)
	}
	p.Quantity -= qty
	cp := *p
	return &cp, nil
}

func (m *mockStock) DeleteIfEmpty(_ context.Context, id uuid.UUID) (bool, error) {
	if p, ok := m.products[id]; ok && p.Quantity == 0 {
		delete(m.products, id)
		return true, nil
	}
	return false, nil
}

func (m *mockStock) add(p inventory.Product) *inventory.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.products[p.ID] = &p
	return &p
}

// -- Mock sale repository --

type mockSaleRepo struct {
	sales     map[uuid.UUID]*Sale
	createErr error
}

func (m *mockSaleRepo) Create(_ context.Context, s *Sale) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *s
	cp.Items = append([]LineItem(nil), s.Items...)
	m.sales[s.ID] = &cp
	return nil
}

func (m *mockSaleRepo) GetByID(_ context.Context, id uuid.UUID) (*Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, apperr.NotFound("sale not found")
	}
	cp := *s
	return &cp, nil
}

func inWindow(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func (m *mockSaleRepo) sorted(from, to *time.Time) []*Sale {
	var result []*Sale
	for _, s := range m.sales {
		if inWindow(s.CreatedAt, from, to) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (m *mockSaleRepo) List(_ context.Context, f Filter) ([]*Sale, int, error) {
	var result []*Sale
	all := m.sorted(f.From, f.To)
	for i := len(all) - 1; i >= 0; i-- {
		s := all[i]
		if f.PaymentMethod != "" && s.PaymentMethod != f.PaymentMethod {
			continue
		}
		if f.Query != "" && !strings.Contains(s.CustomerContact, f.Query) {
			continue
		}
		result = append(result, s)
	}
	return result, len(result), nil
}

func (m *mockSaleRepo) MarkBilled(_ context.Context, id uuid.UUID, contact string) error {
	s, ok := m.sales[id]
	if !ok {
		return apperr.NotFound("sale not found")
	}
	s.BillGenerated = true
	s.CustomerContact = contact
	return nil
}

func (m *mockSaleRepo) Revenue(_ context.Context, from, to *time.Time) (*Revenue, error) {
	rev := &Revenue{}
	for _, s := range m.sorted(from, to) {
		rev.SalesCount++
		for _, li := range s.Items {
			rev.TotalRevenue += li.Revenue()
			rev.TotalProfit += li.Profit()
		}
	}
	return rev, nil
}

func (m *mockSaleRepo) Items(_ context.Context, from, to *time.Time) ([]*Sale, error) {
	return m.sorted(from, to), nil
}

// -- Mock transaction --

// mockTx restores stock and sales to their state before fn when fn fails,
// like a rolled back database transaction.
type mockTx struct {
	stock *mockStock
	sales *mockSaleRepo
}

func (m *mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	products := make(map[uuid.UUID]*inventory.Product, len(m.stock.products))
	for id, p := range m.stock.products {
		cp := *p
		products[id] = &cp
	}
	sales := make(map[uuid.UUID]*Sale, len(m.sales.sales))
	for id, s := range m.sales.sales {
		sales[id] = s
	}

	if err := fn(ctx); err != nil {
		m.stock.products = products
		m.sales.sales = sales
		return err
	}
	return nil
}

// -- Background collaborators --

type recordingJobs struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (r *recordingJobs) Submit(_ string, job worker.Job) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recordingJobs) runAll(ctx context.Context) []error {
	var errs []error
	for _, j := range r.jobs {
		errs = append(errs, j(ctx))
	}
	return errs
}

type recordingStats struct {
	days []time.Time
	err  error
}

func (r *recordingStats) RecomputeDay(_ context.Context, day time.Time) error {
	r.days = append(r.days, day)
	return r.err
}

type fakeSMS struct {
	to   string
	body string
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	if f.err != nil {
		return f.err
	}
	f.to, f.body = to, body
	return nil
}

var errGateway = errors.New("gateway unavailable")

// -- Fixture --

var testNow = time.Date(2026, 3, 14, 15, 4, 5, 0, time.UTC)

type fixture struct {
	svc   *Service
	stock *mockStock
	sales *mockSaleRepo
	jobs  *recordingJobs
	stats *recordingStats
	sms   *fakeSMS
}

func newFixture() *fixture {
	f := &fixture{
		stock: &mockStock{products: map[uuid.UUID]*inventory.Product{}},
		sales: &mockSaleRepo{sales: map[uuid.UUID]*Sale{}},
		jobs:  &recordingJobs{},
		stats: &recordingStats{},
		sms:   &fakeSMS{},
	}
	f.svc = NewService(Deps{
		Tx:    &mockTx{stock: f.stock, sales: f.sales},
		Sales: f.sales,
		Stock: f.stock,
		SMS:   f.sms,
		Jobs:  f.jobs,
		Stats: f.stats,
		Loc:   time.UTC,
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func acmeShirt(qty int) inventory.Product {
	return inventory.Product{Brand: "acme", Size: "m", Type: "shirt", Quantity: qty, CostPrice: 5, UnitPrice: 8, Barcode: "P1"}
}

func item(id uuid.UUID, qty int) ItemInput {
	return ItemInput{ProductID: id.String(), Quantity: qty}
}

func f64(v float64) *float64 { return &v }
