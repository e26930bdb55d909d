package statistics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type saleLine struct {
	at      time.Time
	revenue float64
	profit  float64
}

type mockRepo struct {
	mu      sync.Mutex
	lines   []saleLine
	stored  map[string]DailyStat
	upserts int

	dayLocks map[string]*sync.Mutex
	// onLockWait and afterAggregate, when set, run outside mu.
	onLockWait     func(day string)
	afterAggregate func()
}

func newMockRepo() *mockRepo {
	return &mockRepo{stored: make(map[string]DailyStat), dayLocks: make(map[string]*sync.Mutex)}
}

type heldLocksKey struct{}

// mockTx releases the day locks taken inside fn when fn returns, like a
// transaction-scoped advisory lock.
type mockTx struct{}

func (mockTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	held := &[]*sync.Mutex{}
	defer func() {
		for _, l := range *held {
			l.Unlock()
		}
	}()
	return fn(context.WithValue(ctx, heldLocksKey{}, held))
}

func (m *mockRepo) LockDay(ctx context.Context, day time.Time) error {
	held, ok := ctx.Value(heldLocksKey{}).(*[]*sync.Mutex)
	if !ok {
		return errors.New("LockDay called outside a transaction")
	}
	key := day.Format(dayLayout)
	m.mu.Lock()
	l, ok := m.dayLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.dayLocks[key] = l
	}
	hook := m.onLockWait
	m.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	l.Lock()
	*held = append(*held, l)
	return nil
}

func (m *mockRepo) sell(at time.Time, revenue, profit float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, saleLine{at: at, revenue: revenue, profit: profit})
}

func (m *mockRepo) Aggregate(_ context.Context, from, to time.Time) (Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t Totals
	for _, l := range m.lines {
		if !l.at.Before(from) && l.at.Before(to) {
			t.Revenue += l.revenue
			t.Profit += l.profit
		}
	}
	hook := m.afterAggregate
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	m.mu.Lock()
	return t, nil
}

func (m *mockRepo) Upsert(_ context.Context, s DailyStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.stored[s.Day.Format(dayLayout)] = s
	return nil
}

func (m *mockRepo) ListRange(_ context.Context, first, last time.Time) ([]DailyStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []DailyStat{}
	for _, s := range m.stored {
		if !s.Day.Before(first) && !s.Day.After(last) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *mockRepo) SalesSpan(_ context.Context) (*time.Time, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.lines) == 0 {
		return nil, nil, nil
	}
	first, last := m.lines[0].at, m.lines[0].at
	for _, l := range m.lines[1:] {
		if l.at.Before(first) {
			first = l.at
		}
		if l.at.After(last) {
			last = l.at
		}
	}
	return &first, &last, nil
}

func (m *mockRepo) row(day string) (DailyStat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stored[day]
	return s, ok
}

// ist has a half-hour offset, so local days never line up with UTC days.
var ist = time.FixedZone("IST", 5*3600+30*60)

// testNow is 15:00 local on 2026-03-14.
var testNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, mockTx{}, ist, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func civilDay(s string) time.Time {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tp(t time.Time) *time.Time { return &t }
