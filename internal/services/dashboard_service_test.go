package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsledger/internal/models"
	"partsledger/internal/store"
)

func TestDashboardService_Stats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	catalog := NewCatalogService(st)
	ledger := NewInvoiceService(st)
	dash := NewDashboardService(st, time.UTC)

	today := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	dash.SetClock(func() time.Time { return today })

	a := addItem(t, catalog, "BRK-100", "Brake pad", "200.00", 5)
	b := addItem(t, catalog, "OIL-1", "Oil", "10", 100)

	// yesterday's sale is not today's revenue
	ledger.SetClock(func() time.Time { return yesterday })
	_, err := ledger.Create(ctx, InvoiceDraft{
		Lines:  []LineDraft{{ItemID: b.ID, Quantity: 1, SelectedPrice: dec("10")}},
		Status: models.InvoiceStatusCompleted,
	})
	require.NoError(t, err)

	ledger.SetClock(func() time.Time { return today })
	sale, err := ledger.Create(ctx, InvoiceDraft{
		Lines:  []LineDraft{{ItemID: a.ID, Quantity: 3, SelectedPrice: dec("180.00")}},
		Status: models.InvoiceStatusCompleted,
	})
	require.NoError(t, err)

	stats, err := dash.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 1, stats.TodayInvoices)
	assert.True(t, stats.TodayRevenue.GreaterThanOrEqual(dec("540.00")))
	assert.True(t, stats.TodayRevenue.Equal(dec("540")))
	assert.Equal(t, 0, stats.OngoingInvoices)
	assert.Equal(t, 1, stats.LowStockItems)
	assert.Equal(t, 2, stats.TotalInvoices)

	// ongoing and deleted invoices never count as revenue
	parked, err := ledger.Create(ctx, InvoiceDraft{
		Lines:  []LineDraft{{ItemID: b.ID, Quantity: 2, SelectedPrice: dec("10")}},
		Status: models.InvoiceStatusOngoing,
	})
	require.NoError(t, err)
	_, err = ledger.Delete(ctx, sale.ID)
	require.NoError(t, err)

	stats, err = dash.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TodayInvoices)
	assert.True(t, stats.TodayRevenue.IsZero())
	assert.Equal(t, 1, stats.OngoingInvoices)
	assert.Equal(t, 1, stats.LowStockItems, "restored to 5, still at the threshold")
	assert.Equal(t, 2, stats.TotalInvoices)

	_, err = ledger.Complete(ctx, parked.ID)
	require.NoError(t, err)
	revenue, err := dash.TodayRevenue(ctx)
	require.NoError(t, err)
	assert.True(t, revenue.Equal(dec("20")))
	n, err := dash.TodayInvoiceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDashboardService_TodayUsesConfiguredZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	dash := NewDashboardService(store.NewMemoryStore(), ist)
	// 20:00 UTC on the 10th is 01:30 on the 11th in IST
	dash.SetClock(func() time.Time { return time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC) })

	from, to := dash.Today()

	assert.True(t, from.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, ist)))
	assert.True(t, to.Equal(time.Date(2026, 3, 12, 0, 0, 0, 0, ist)))
	assert.True(t, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC).Before(from))
}
