package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsledger/internal/models"
	"partsledger/internal/store"
)

type fakeCounter struct {
	values map[string]int64
	err    error
}

func (f *fakeCounter) Increment(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.values[key]++
	return f.values[key], nil
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-000001", FormatInvoiceNumber(1))
	assert.Equal(t, "INV-123456", FormatInvoiceNumber(123456))
	assert.Equal(t, "INV-1234567", FormatInvoiceNumber(1234567))
}

func TestRedisNumberer(t *testing.T) {
	ctx := context.Background()
	counter := &fakeCounter{values: map[string]int64{"partsledger:invoice_seq": 41}}

	st := store.NewMemoryStore()
	catalog := NewCatalogService(st)
	ledger := NewInvoiceService(st)
	ledger.SetNumberer(NewRedisNumberer(counter, ""))
	a := addItem(t, catalog, "A", "bolt", "1", 10)

	inv, err := ledger.Create(ctx, InvoiceDraft{
		Lines:  []LineDraft{{ItemID: a.ID, Quantity: 1, SelectedPrice: dec("1")}},
		Status: models.InvoiceStatusOngoing,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-000042", inv.InvoiceNumber)

	counter.err = errors.New("connection refused")
	_, err = ledger.Create(ctx, InvoiceDraft{
		Lines:  []LineDraft{{ItemID: a.ID, Quantity: 1, SelectedPrice: dec("1")}},
		Status: models.InvoiceStatusCompleted,
	})
	require.Error(t, err)
	assert.Equal(t, 10, stockOf(t, st, a.ID))
}
