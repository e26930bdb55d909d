package sales

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medivision/medivision/internal/domain/inventory"
	"github.com/medivision/medivision/internal/platform/apperr"
	"github.com/medivision/medivision/internal/platform/db"
	"github.com/medivision/medivision/internal/platform/notification"
	"github.com/medivision/medivision/internal/platform/worker"
)

// StatsRecomputer rebuilds the statistics row of one calendar day.
type StatsRecomputer interface {
	RecomputeDay(ctx context.Context, day time.Time) error
}

// JobSubmitter runs detached work. *worker.Pool satisfies it.
type JobSubmitter interface {
	Submit(name string, job worker.Job) error
}

type Service struct {
	tx     db.TxRunner
	sales  SaleRepository
	stock  Stock
	sms    notification.SMSSender
	jobs   JobSubmitter
	stats  StatsRecomputer
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

type Deps struct {
	Tx     db.TxRunner
	Sales  SaleRepository
	Stock  Stock
	SMS    notification.SMSSender
	Jobs   JobSubmitter
	Stats  StatsRecomputer
	Loc    *time.Location
	Logger zerolog.Logger
}

func NewService(d Deps) *Service {
	if d.Loc == nil {
		d.Loc = time.Local
	}
	return &Service{
		tx:     d.Tx,
		sales:  d.Sales,
		stock:  d.Stock,
		sms:    d.SMS,
		jobs:   d.Jobs,
		stats:  d.Stats,
		loc:    d.Loc,
		logger: d.Logger.With().Str("component", "sales").Logger(),
		now:    time.Now,
	}
}

type ItemInput struct {
	ProductID    string   `json:"productId" validate:"required,uuid"`
	Quantity     int      `json:"quantity" validate:"gte=1"`
	Discount     *float64 `json:"discount" validate:"omitempty,gte=0"`
	SellingPrice *float64 `json:"sellingPrice" validate:"omitempty,gte=0"`
}

type CreateInput struct {
	Items           []ItemInput `json:"lineItems" validate:"required,min=1,dive"`
	FinalDiscount   float64     `json:"finalDiscount" validate:"gte=0"`
	PaymentMethod   string      `json:"paymentMethod" validate:"required,oneof=Cash Card UPI"`
	CustomerContact string      `json:"customerContact" validate:"max=32"`
}

type lineRequest struct {
	productID uuid.UUID
	in        ItemInput
}

func (in *CreateInput) parse() ([]lineRequest, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("at least one line item is required")
	}
	if !ValidPaymentMethod(in.PaymentMethod) {
		return nil, apperr.Validation("paymentMethod must be one of Cash, Card, UPI")
	}
	if in.FinalDiscount < 0 {
		return nil, apperr.Validation("finalDiscount must not be negative")
	}
	lines := make([]lineRequest, 0, len(in.Items))
	for i, item := range in.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, apperr.Validation("line %d: productId must be a valid id", i+1)
		}
		if item.Quantity < 1 {
			return nil, apperr.Validation("line %d: quantity must be at least 1", i+1)
		}
		if item.Discount != nil && *item.Discount < 0 {
			return nil, apperr.Validation("line %d: discount must not be negative", i+1)
		}
		if item.SellingPrice != nil && *item.SellingPrice < 0 {
			return nil, apperr.Validation("line %d: sellingPrice must not be negative", i+1)
		}
		lines = append(lines, lineRequest{productID: id, in: item})
	}
	return lines, nil
}

// CreateSale records a sale and removes the sold units from stock in one
// transaction. Any unknown product or shortfall aborts the whole sale.
// Prices are snapshotted from the products as they are decremented.
func (s *Service) CreateSale(ctx context.Context, in CreateInput) (*Sale, error) {
	lines, err := in.parse()
	if err != nil {
		return nil, err
	}

	// Repeated products are decremented once by their combined quantity,
	// in id order so concurrent sales lock rows consistently.
	totals := make(map[uuid.UUID]int)
	for _, l := range lines {
		totals[l.productID] += l.in.Quantity
	}
	ids := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	sale := &Sale{
		ID:              uuid.New(),
		FinalDiscount:   inventory.RoundMoney(in.FinalDiscount),
		PaymentMethod:   in.PaymentMethod,
		CustomerContact: strings.TrimSpace(in.CustomerContact),
		CreatedAt:       s.now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		snapshot := make(map[uuid.UUID]*inventory.Product, len(ids))
		for _, id := range ids {
			p, err := s.stock.Decrement(ctx, id, totals[id])
			if err != nil {
				return err
			}
			snapshot[id] = p
			if p.Quantity == 0 {
				if _, err := s.stock.DeleteIfEmpty(ctx, id); err != nil {
					return fmt.Errorf("remove sold-out product %s: %w", id, err)
				}
			}
		}

		sale.Items = make([]LineItem, 0, len(lines))
		var gross float64
		for i, l := range lines {
			p := snapshot[l.productID]
			li := LineItem{
				LineNo:    i + 1,
				ProductID: p.ID,
				Brand:     p.Brand,
				Size:      p.Size,
				Type:      p.Type,
				Quantity:  l.in.Quantity,
				UnitPrice: p.UnitPrice,
				CostPrice: p.CostPrice,
			}
			if l.in.Discount != nil {
				li.Discount = inventory.RoundMoney(*l.in.Discount)
			}
			if l.in.SellingPrice != nil {
				li.SellingPrice = inventory.RoundMoney(*l.in.SellingPrice)
			} else {
				li.SellingPrice = inventory.RoundMoney(li.UnitPrice - li.Discount)
			}
			if li.SellingPrice < 0 {
				return apperr.Validation("line %d: discount exceeds unit price", li.LineNo)
			}
			gross += li.Revenue()
			sale.Items = append(sale.Items, li)
		}

		sale.TotalPrice = inventory.RoundMoney(gross - sale.FinalDiscount)
		if sale.TotalPrice < 0 {
			return apperr.Validation("finalDiscount exceeds the sale total")
		}
		return s.sales.Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.scheduleRecompute(sale.CreatedAt)
	return sale, nil
}

// scheduleRecompute refreshes the statistics of the sale's day in the
// background. Failures are logged by the pool and never reach the caller; a
// rejected or failed run is picked up by the next statistics repair.
func (s *Service) scheduleRecompute(at time.Time) {
	if s.jobs == nil || s.stats == nil {
		return
	}
	day := at.In(s.loc)
	err := s.jobs.Submit("stats.recompute", func(ctx context.Context) error {
		return s.stats.RecomputeDay(ctx, day)
	})
	if err != nil {
		s.logger.Warn().Err(err).Time("day", day).Msg("could not schedule statistics recompute")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.sales.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Sale, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	if f.PaymentMethod != "" && !ValidPaymentMethod(f.PaymentMethod) {
		return nil, 0, apperr.Validation("paymentMethod must be one of Cash, Card, UPI")
	}
	return s.sales.List(ctx, f)
}

func (s *Service) Revenue(ctx context.Context, w Window) (*Revenue, error) {
	rev, err := s.sales.Revenue(ctx, w.From, w.To)
	if err != nil {
		return nil, err
	}
	rev.TotalRevenue = inventory.RoundMoney(rev.TotalRevenue)
	rev.TotalProfit = inventory.RoundMoney(rev.TotalProfit)
	return rev, nil
}

// Export writes the line items of sales in w as CSV.
func (s *Service) Export(ctx context.Context, w Window, out io.Writer) error {
	found, err := s.sales.Items(ctx, w.From, w.To)
	if err != nil {
		return err
	}
	rows := []*ExportRow{}
	for _, sale := range found {
		for _, li := range sale.Items {
			rows = append(rows, &ExportRow{
				SaleID:        sale.ID.String(),
				CreatedAt:     sale.CreatedAt.In(s.loc).Format(time.RFC3339),
				PaymentMethod: sale.PaymentMethod,
				LineNo:        li.LineNo,
				ProductID:     li.ProductID.String(),
				Brand:         li.Brand,
				Size:          li.Size,
				Type:          li.Type,
				Quantity:      li.Quantity,
				UnitPrice:     li.UnitPrice,
				Discount:      li.Discount,
				SellingPrice:  li.SellingPrice,
				CostPrice:     li.CostPrice,
				Revenue:       inventory.RoundMoney(li.Revenue()),
				Profit:        inventory.RoundMoney(li.Profit()),
			})
		}
	}
	return gocsv.Marshal(rows, out)
}

type BillInput struct {
	ContactNumber string `json:"contactNumber" validate:"required,min=5,max=32"`
}

// GenerateBill texts a receipt to contact and marks the sale as billed.
// The sale is left unchanged when delivery fails.
func (s *Service) GenerateBill(ctx context.Context, id uuid.UUID, contact string) (*Sale, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, apperr.Validation("contactNumber is required")
	}
	sale, err := s.sales.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.sms.SendSMS(ctx, contact, s.billText(sale, contact)); err != nil {
		return nil, apperr.External(err, "could not deliver the bill by SMS")
	}
	if err := s.sales.MarkBilled(ctx, id, contact); err != nil {
		return nil, err
	}
	sale.BillGenerated = true
	sale.CustomerContact = contact
	return sale, nil
}

func (s *Service) billText(sale *Sale, contact string) string {
	var b strings.Builder
	b.WriteString("Bill Receipt\n\nItems Purchased:\n")
	for _, li := range sale.Items {
		fmt.Fprintf(&b, "%d. %s %s %s x%d @ %.2f", li.LineNo, li.Brand, li.Type, li.Size, li.Quantity, li.SellingPrice)
		if li.Discount > 0 {
			fmt.Fprintf(&b, " (discount %.2f)", li.Discount)
		}
		b.WriteString("\n")
	}
	if sale.FinalDiscount > 0 {
		fmt.Fprintf(&b, "\nFinal Discount: %.2f", sale.FinalDiscount)
	}
	fmt.Fprintf(&b, "\nTotal Amount: %.2f\nPayment Method: %s\nDate: %s\nContact: %s\n\nThank you for shopping with us!",
		sale.TotalPrice, sale.PaymentMethod, sale.CreatedAt.In(s.loc).Format("02 Jan 2006"), contact)
	return b.String()
}
