package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"partsledger/internal/models"
	"partsledger/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(n int) *int { return &n }

func addItem(t *testing.T, c *CatalogService, sku, name, price string, stock int) *models.Item {
	t.Helper()
	item, err := c.Add(context.Background(), ItemDraft{
		SKU:           sku,
		Name:          name,
		Category:      "Brakes",
		CostPrice:     dec("1"),
		SellingPrice:  dec(price),
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return item
}

func stockOf(t *testing.T, st store.Store, id string) int {
	t.Helper()
	item, err := st.GetItem(context.Background(), id)
	require.NoError(t, err)
	return item.StockQuantity
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []models.LedgerEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.LedgerEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// faultyStore fails selected writes, inside and outside transactions.
type faultyStore struct {
	store.Store
	failStatus   bool
	failMovement bool
}

var errDiskFull = errors.New("disk full")

func (f *faultyStore) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.Atomic(ctx, func(tx store.Store) error {
		return fn(&faultyStore{Store: tx, failStatus: f.failStatus, failMovement: f.failMovement})
	})
}

func (f *faultyStore) UpdateInvoiceStatus(ctx context.Context, inv *models.Invoice) error {
	if f.failStatus {
		return errDiskFull
	}
	return f.Store.UpdateInvoiceStatus(ctx, inv)
}

func (f *faultyStore) RecordMovement(ctx context.Context, m *models.StockMovement) error {
	if f.failMovement {
		return errDiskFull
	}
	return f.Store.RecordMovement(ctx, m)
}
