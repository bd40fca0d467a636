package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"partsledger/internal/models"
	"partsledger/internal/store"
)

// DashboardService derives summary figures from the catalog and the ledger.
// Nothing is cached; every call reads the store.
type DashboardService struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewDashboardService uses loc for the "today" boundary; nil means time.Local.
func NewDashboardService(st store.Store, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{store: st, loc: loc, now: time.Now}
}

func (s *DashboardService) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns [midnight, next midnight) of the current day in the configured zone.
func (s *DashboardService) Today() (time.Time, time.Time) {
	n := s.now().In(s.loc)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *DashboardService) TotalItems(ctx context.Context) (int, error) {
	return s.store.CountItems(ctx)
}

func (s *DashboardService) todayCompleted() store.InvoiceFilter {
	from, to := s.Today()
	return store.InvoiceFilter{
		Statuses:      []models.InvoiceStatus{models.InvoiceStatusCompleted},
		CreatedFrom:   from,
		CreatedBefore: to,
	}
}

// TodayInvoiceCount counts completed invoices created today.
func (s *DashboardService) TodayInvoiceCount(ctx context.Context) (int, error) {
	n, _, err := s.store.SumInvoices(ctx, s.todayCompleted())
	return n, err
}

// TodayRevenue sums the final totals of completed invoices created today.
func (s *DashboardService) TodayRevenue(ctx context.Context) (decimal.Decimal, error) {
	_, total, err := s.store.SumInvoices(ctx, s.todayCompleted())
	return total, err
}

func (s *DashboardService) OngoingCount(ctx context.Context) (int, error) {
	n, _, err := s.store.SumInvoices(ctx, store.InvoiceFilter{
		Statuses: []models.InvoiceStatus{models.InvoiceStatusOngoing},
	})
	return n, err
}

func (s *DashboardService) LowStockCount(ctx context.Context) (int, error) {
	items, err := s.store.ListLowStockItems(ctx)
	return len(items), err
}

// Stats gathers every dashboard figure.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var (
		stats models.DashboardStats
		err   error
	)
	if stats.TotalItems, err = s.TotalItems(ctx); err != nil {
		return nil, err
	}
	if stats.TotalInvoices, _, err = s.store.SumInvoices(ctx, store.InvoiceFilter{
		Statuses: []models.InvoiceStatus{models.InvoiceStatusOngoing, models.InvoiceStatusCompleted},
	}); err != nil {
		return nil, err
	}
	if stats.TodayInvoices, stats.TodayRevenue, err = s.store.SumInvoices(ctx, s.todayCompleted()); err != nil {
		return nil, err
	}
	if stats.OngoingInvoices, err = s.OngoingCount(ctx); err != nil {
		return nil, err
	}
	if stats.LowStockItems, err = s.LowStockCount(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}
