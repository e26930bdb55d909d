package statistics

import (
	"context"
	"time"
)

type Repository interface {
	// Aggregate sums line items of sales created in [from, to).
	Aggregate(ctx context.Context, from, to time.Time) (Totals, error)
	Upsert(ctx context.Context, s DailyStat) error
	// LockDay blocks until no other transaction holds day and keeps it
	// until the enclosing transaction ends.
	LockDay(ctx context.Context, day time.Time) error
	// ListRange returns stored days in [first, last], oldest first.
	ListRange(ctx context.Context, first, last time.Time) ([]DailyStat, error)
	// SalesSpan returns the creation times of the oldest and newest sale,
	// or nils when there are none.
	SalesSpan(ctx context.Context) (*time.Time, *time.Time, error)
}
