// Package store persists the catalog and the invoice ledger.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"partsledger/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// InvoiceFilter narrows ListInvoices and SumInvoices. Zero fields do not filter.
type InvoiceFilter struct {
	Statuses      []models.InvoiceStatus
	CreatedFrom   time.Time // inclusive
	CreatedBefore time.Time // exclusive
}

// Store is the persistence port shared by the services.
//
// Items and invoices are returned in insertion order. Methods with a
// ForUpdate suffix lock the returned rows until the enclosing Atomic call
// finishes; outside Atomic they behave like plain reads.
type Store interface {
	ListItems(ctx context.Context) ([]models.Item, error)
	ListLowStockItems(ctx context.Context) ([]models.Item, error)
	CountItems(ctx context.Context) (int, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	GetItemsForUpdate(ctx context.Context, ids []string) (map[string]*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	// UpdateItem saves descriptive fields, prices and min stock. Stock is
	// left alone; it only moves through UpdateStock.
	UpdateItem(ctx context.Context, item *models.Item) error
	UpdateStock(ctx context.Context, itemID string, quantity int) error

	RecordMovement(ctx context.Context, m *models.StockMovement) error
	ListMovements(ctx context.Context, itemID string) ([]models.StockMovement, error)

	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id string) (*models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, inv *models.Invoice) error
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error)
	SumInvoices(ctx context.Context, filter InvoiceFilter) (count int, total decimal.Decimal, err error)

	// NextInvoiceSeq draws the next invoice sequence value. Values are never
	// handed out twice, even if the surrounding Atomic call fails.
	NextInvoiceSeq(ctx context.Context) (int64, error)

	// Atomic runs fn against a transactional view of the store. Either every
	// write made through tx is applied or none is.
	Atomic(ctx context.Context, fn func(tx Store) error) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*memoryTx)(nil)
	_ Store = (*GormStore)(nil)
)
