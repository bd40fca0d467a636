package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"partsledger/internal/logger"
	"partsledger/internal/models"
	"partsledger/internal/store"
)

// LineDraft is one requested invoice line.
type LineDraft struct {
	ItemID        string          `json:"item_id"`
	Quantity      int             `json:"quantity"`
	SelectedPrice decimal.Decimal `json:"selected_price"`
}

// InvoiceDraft is the input of InvoiceService.Create.
type InvoiceDraft struct {
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	Lines         []LineDraft          `json:"items"`
	PaymentMode   models.PaymentMode   `json:"payment_mode"`
	Status        models.InvoiceStatus `json:"status"`
}

// normalize fills defaults and validates everything that does not need the store.
func (d *InvoiceDraft) normalize() error {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	if d.CustomerName == "" {
		d.CustomerName = models.DefaultCustomerName
	}
	d.CustomerPhone = strings.TrimSpace(d.CustomerPhone)

	if d.PaymentMode == "" {
		d.PaymentMode = models.PaymentCash
	}
	if !d.PaymentMode.Valid() {
		return invalid("payment_mode", "must be one of Cash, Card, UPI, Credit, got %q", d.PaymentMode)
	}

	if d.Status == "" {
		d.Status = models.InvoiceStatusCompleted
	}
	if d.Status != models.InvoiceStatusOngoing && d.Status != models.InvoiceStatusCompleted {
		return invalid("status", "must be ongoing or completed, got %q", d.Status)
	}

	if len(d.Lines) == 0 {
		return invalid("items", "at least one line is required")
	}
	for i, l := range d.Lines {
		if l.ItemID == "" {
			return invalid("items", "line %d: item_id is required", i+1)
		}
		if l.Quantity < 1 {
			return invalid("items", "line %d: quantity must be at least 1", i+1)
		}
		if l.SelectedPrice.IsNegative() {
			return invalid("items", "line %d: selected_price must not be negative", i+1)
		}
	}
	return nil
}

// InvoiceService is the invoice ledger: it owns invoices and applies the stock
// effect of each status transition in the same atomic unit as the transition.
//
//	create(completed)  -> completed  stock -qty
//	create(ongoing)    -> ongoing    no stock change
//	ongoing.complete() -> completed  stock -qty
//	ongoing.delete()   -> deleted    no stock change
//	completed.delete() -> deleted    stock +qty
//	deleted.*          -> InvalidStateError
type InvoiceService struct {
	store     store.Store
	numberer  InvoiceNumberer
	publisher EventPublisher
	now       func() time.Time
	shopName  string
	loc       *time.Location
	log       *zap.Logger
}

func NewInvoiceService(st store.Store) *InvoiceService {
	return &InvoiceService{
		store:     st,
		numberer:  StoreNumberer{},
		publisher: nopPublisher{},
		now:       time.Now,
		log:       logger.Named("ledger"),
	}
}

// SetNumberer swaps the invoice number source.
func (s *InvoiceService) SetNumberer(n InvoiceNumberer) {
	if n != nil {
		s.numberer = n
	}
}

func (s *InvoiceService) SetPublisher(p EventPublisher) {
	if p == nil {
		p = nopPublisher{}
	}
	s.publisher = p
}

// SetClock overrides time.Now, for tests.
func (s *InvoiceService) SetClock(now func() time.Time) {
	s.now = now
}

// Create validates draft and stores a new invoice in the requested status.
// A completed invoice takes its stock in the same transaction; if any line
// cannot be covered nothing is stored.
func (s *InvoiceService) Create(ctx context.Context, draft InvoiceDraft) (*models.Invoice, error) {
	if err := draft.normalize(); err != nil {
		return nil, err
	}

	var (
		created *models.Invoice
		touched []*models.Item
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		items, err := tx.GetItemsForUpdate(ctx, draftItemIDs(draft))
		if err != nil {
			return err
		}

		inv := &models.Invoice{
			ID:            uuid.New().String(),
			CustomerName:  draft.CustomerName,
			CustomerPhone: draft.CustomerPhone,
			PaymentMode:   draft.PaymentMode,
			Status:        draft.Status,
			CreatedAt:     s.now(),
		}
		for i, l := range draft.Lines {
			item, ok := items[l.ItemID]
			if !ok {
				return invalid("items", "line %d: unknown item %s", i+1, l.ItemID)
			}
			inv.Lines = append(inv.Lines, models.InvoiceLine{
				ItemID:        item.ID,
				SKU:           item.SKU,
				Name:          item.Name,
				Quantity:      l.Quantity,
				SelectedPrice: l.SelectedPrice,
			})
		}
		inv.Recalculate()

		if inv.InvoiceNumber, err = s.numberer.Next(ctx, tx); err != nil {
			return err
		}
		if inv.IsCompleted() {
			completedAt := inv.CreatedAt
			inv.CompletedAt = &completedAt
			if touched, err = s.takeStock(ctx, tx, inv, items); err != nil {
				return err
			}
		}
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		s.logFailure("create", "", err)
		return nil, err
	}

	s.log.Info("🧾 Invoice created",
		zap.String("invoice_id", created.ID),
		zap.String("number", created.InvoiceNumber),
		zap.String("status", string(created.Status)),
		zap.String("total", created.FinalTotal.StringFixed(2)))
	s.publishTransition(ctx, models.EventInvoiceCreated, created, touched)
	return created, nil
}

// Complete moves an ongoing invoice to completed and takes its stock.
// On InsufficientStockError the invoice stays ongoing and no stock changes.
func (s *InvoiceService) Complete(ctx context.Context, id string) (*models.Invoice, error) {
	var (
		done    *models.Invoice
		touched []*models.Item
	)
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		inv, err := s.lockInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if !inv.IsOngoing() {
			return &InvalidStateError{InvoiceID: id, Status: inv.Status, Action: "complete"}
		}

		items, err := tx.GetItemsForUpdate(ctx, invoiceItemIDs(inv))
		if err != nil {
			return err
		}
		if touched, err = s.takeStock(ctx, tx, inv, items); err != nil {
			return err
		}

		now := s.now()
		inv.Status = models.InvoiceStatusCompleted
		inv.CompletedAt = &now
		if err := tx.UpdateInvoiceStatus(ctx, inv); err != nil {
			return err
		}
		done = inv
		return nil
	})
	if err != nil {
		s.logFailure("complete", id, err)
		return nil, err
	}

	s.log.Info("✅ Invoice completed",
		zap.String("invoice_id", id),
		zap.String("number", done.InvoiceNumber))
	s.publishTransition(ctx, models.EventInvoiceCompleted, done, touched)
	return done, nil
}

// Delete moves an ongoing or completed invoice to deleted. Deleting a
// completed invoice returns every line's quantity to stock.
func (s *InvoiceService) Delete(ctx context.Context, id string) (*models.Invoice, error) {
	var deleted *models.Invoice
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		inv, err := s.lockInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		if inv.IsDeleted() {
			return &InvalidStateError{InvoiceID: id, Status: inv.Status, Action: "delete"}
		}

		if inv.IsCompleted() {
			items, err := tx.GetItemsForUpdate(ctx, invoiceItemIDs(inv))
			if err != nil {
				return err
			}
			if err := s.returnStock(ctx, tx, inv, items); err != nil {
				return err
			}
		}

		now := s.now()
		inv.Status = models.InvoiceStatusDeleted
		inv.DeletedAt = &now
		if err := tx.UpdateInvoiceStatus(ctx, inv); err != nil {
			return err
		}
		deleted = inv
		return nil
	})
	if err != nil {
		s.logFailure("delete", id, err)
		return nil, err
	}

	s.log.Info("🗑️ Invoice deleted",
		zap.String("invoice_id", id),
		zap.String("number", deleted.InvoiceNumber))
	s.publishTransition(ctx, models.EventInvoiceDeleted, deleted, nil)
	return deleted, nil
}

// ListOngoing returns ongoing invoices in creation order.
func (s *InvoiceService) ListOngoing(ctx context.Context) ([]models.Invoice, error) {
	return s.store.ListInvoices(ctx, store.InvoiceFilter{
		Statuses: []models.InvoiceStatus{models.InvoiceStatusOngoing},
	})
}

// List returns invoices in creation order, optionally restricted to one status.
func (s *InvoiceService) List(ctx context.Context, status models.InvoiceStatus) ([]models.Invoice, error) {
	var f store.InvoiceFilter
	if status != "" {
		switch status {
		case models.InvoiceStatusOngoing, models.InvoiceStatusCompleted, models.InvoiceStatusDeleted:
		default:
			return nil, invalid("status", "unknown status %q", status)
		}
		f.Statuses = []models.InvoiceStatus{status}
	}
	return s.store.ListInvoices(ctx, f)
}

func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "invoice", ID: id}
	}
	return inv, err
}

func (s *InvoiceService) lockInvoice(ctx context.Context, tx store.Store, id string) (*models.Invoice, error) {
	inv, err := tx.GetInvoiceForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "invoice", ID: id}
	}
	return inv, err
}

// takeStock checks every line against stock before decrementing any of them.
func (s *InvoiceService) takeStock(ctx context.Context, tx store.Store, inv *models.Invoice, items map[string]*models.Item) ([]*models.Item, error) {
	need := inv.Quantities()
	ids := sortedKeys(need)

	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			return nil, &NotFoundError{Kind: "item", ID: id}
		}
		if item.StockQuantity < need[id] {
			return nil, &InsufficientStockError{
				ItemID:    item.ID,
				SKU:       item.SKU,
				Name:      item.Name,
				Available: item.StockQuantity,
				Requested: need[id],
			}
		}
	}

	touched := make([]*models.Item, 0, len(ids))
	for _, id := range ids {
		err := applyStockChange(ctx, tx, items[id], stockChange{
			delta:     -need[id],
			kind:      models.MovementSale,
			invoiceID: &inv.ID,
			notes:     inv.InvoiceNumber,
			enforce:   true,
		})
		if err != nil {
			return nil, err
		}
		touched = append(touched, items[id])
	}
	return touched, nil
}

// returnStock reverses takeStock. It is never rejected.
func (s *InvoiceService) returnStock(ctx context.Context, tx store.Store, inv *models.Invoice, items map[string]*models.Item) error {
	need := inv.Quantities()
	for _, id := range sortedKeys(need) {
		item, ok := items[id]
		if !ok {
			return &NotFoundError{Kind: "item", ID: id}
		}
		err := applyStockChange(ctx, tx, item, stockChange{
			delta:     need[id],
			kind:      models.MovementReversal,
			invoiceID: &inv.ID,
			notes:     inv.InvoiceNumber,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *InvoiceService) publishTransition(ctx context.Context, typ models.LedgerEventType, inv *models.Invoice, touched []*models.Item) {
	now := s.now()
	s.emit(ctx, models.LedgerEvent{Type: typ, InvoiceID: inv.ID, Invoice: inv, OccurredAt: now})
	for _, item := range touched {
		if item.IsLowStock() {
			s.emit(ctx, models.LedgerEvent{Type: models.EventStockLow, Item: item, OccurredAt: now})
		}
	}
}

func (s *InvoiceService) emit(ctx context.Context, evt models.LedgerEvent) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("⚠️ Failed to publish event", zap.String("type", string(evt.Type)), zap.Error(err))
	}
}

func (s *InvoiceService) logFailure(action, id string, err error) {
	fields := []zap.Field{zap.String("action", action), zap.Error(err)}
	if id != "" {
		fields = append(fields, zap.String("invoice_id", id))
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound):
		s.log.Info("⚠️ Invoice transition rejected", fields...)
	default:
		s.log.Error("❌ Invoice transition failed", fields...)
	}
}

func draftItemIDs(d InvoiceDraft) []string {
	set := make(map[string]int, len(d.Lines))
	for _, l := range d.Lines {
		set[l.ItemID] += l.Quantity
	}
	return sortedKeys(set)
}

func invoiceItemIDs(inv *models.Invoice) []string {
	return sortedKeys(inv.Quantities())
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
