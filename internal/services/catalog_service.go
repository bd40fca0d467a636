package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"partsledger/internal/logger"
	"partsledger/internal/models"
	"partsledger/internal/store"
)

// SearchLimit caps the number of items returned by Search.
const SearchLimit = 20

// ItemDraft is the input of CatalogService.Add.
type ItemDraft struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	SubCategory   string          `json:"sub_category"`
	Brand         string          `json:"brand"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
	MinStock      *int            `json:"min_stock"`
}

// Validate checks the draft and returns the first problem found.
func (d *ItemDraft) Validate() error {
	if strings.TrimSpace(d.SKU) == "" {
		return invalid("sku", "is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", "is required")
	}
	if d.CostPrice.IsNegative() {
		return invalid("cost_price", "must not be negative")
	}
	if d.SellingPrice.IsNegative() {
		return invalid("selling_price", "must not be negative")
	}
	if d.StockQuantity < 0 {
		return invalid("stock_quantity", "must not be negative")
	}
	if d.MinStock != nil && *d.MinStock < 0 {
		return invalid("min_stock", "must not be negative")
	}
	return nil
}

func (d *ItemDraft) item() *models.Item {
	minStock := models.DefaultMinStock
	if d.MinStock != nil {
		minStock = *d.MinStock
	}
	return &models.Item{
		SKU:           strings.TrimSpace(d.SKU),
		Name:          strings.TrimSpace(d.Name),
		Category:      strings.TrimSpace(d.Category),
		SubCategory:   strings.TrimSpace(d.SubCategory),
		Brand:         strings.TrimSpace(d.Brand),
		CostPrice:     d.CostPrice,
		SellingPrice:  d.SellingPrice,
		StockQuantity: d.StockQuantity,
		MinStock:      minStock,
	}
}

// CatalogService owns the item catalog and every direct stock change.
type CatalogService struct {
	store         store.Store
	publisher     EventPublisher
	importCharset *charmap.Charmap
	log           *zap.Logger
}

func NewCatalogService(st store.Store) *CatalogService {
	return &CatalogService{
		store:     st,
		publisher: nopPublisher{},
		log:       logger.Named("catalog"),
	}
}

// SetPublisher wires the event sink. nil disables publishing.
func (s *CatalogService) SetPublisher(p EventPublisher) {
	if p == nil {
		p = nopPublisher{}
	}
	s.publisher = p
}

// SearchItems filters items by a case-insensitive substring of name, SKU,
// category or sub-category. Matches sharing a SKU are placed next to each
// other in the order their SKU was first seen, then the result is cut to limit.
// An empty query matches nothing.
func SearchItems(items []models.Item, query string, limit int) []models.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.Item{}
	}

	groupOf := make(map[string]int)
	var groups [][]models.Item
	for _, it := range items {
		if !matchesQuery(it, q) {
			continue
		}
		idx, ok := groupOf[it.SKU]
		if !ok {
			idx = len(groups)
			groupOf[it.SKU] = idx
			groups = append(groups, nil)
		}
		groups[idx] = append(groups[idx], it)
	}

	out := make([]models.Item, 0, limit)
	for _, g := range groups {
		for _, it := range g {
			if len(out) == limit {
				return out
			}
			out = append(out, it)
		}
	}
	return out
}

func matchesQuery(it models.Item, q string) bool {
	for _, field := range []string{it.Name, it.SKU, it.Category, it.SubCategory} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Search returns up to SearchLimit items matching query.
func (s *CatalogService) Search(ctx context.Context, query string) ([]models.Item, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Item{}, nil
	}
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return SearchItems(items, query, SearchLimit), nil
}

// List returns the whole catalog when query is empty and Search results otherwise.
func (s *CatalogService) List(ctx context.Context, query string) ([]models.Item, error) {
	if strings.TrimSpace(query) != "" {
		return s.Search(ctx, query)
	}
	return s.store.ListItems(ctx)
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "item", ID: id}
	}
	return item, err
}

// Add validates draft and stores it as a new item.
func (s *CatalogService) Add(ctx context.Context, draft ItemDraft) (*models.Item, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	item := draft.item()
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.log.Info("✅ Item added",
		zap.String("item_id", item.ID),
		zap.String("sku", item.SKU),
		zap.Int("stock", item.StockQuantity))
	s.publish(ctx, models.LedgerEvent{Type: models.EventItemAdded, Item: item})
	return item, nil
}

// ItemPatch carries the fields Update may change. Nil fields are kept.
// Stock is not patchable; use AdjustStock or Restock.
type ItemPatch struct {
	Name         *string          `json:"name"`
	Category     *string          `json:"category"`
	SubCategory  *string          `json:"sub_category"`
	Brand        *string          `json:"brand"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	SellingPrice *decimal.Decimal `json:"selling_price"`
	MinStock     *int             `json:"min_stock"`
}

func (p *ItemPatch) apply(item *models.Item) error {
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return invalid("name", "is required")
		}
		item.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		item.Category = strings.TrimSpace(*p.Category)
	}
	if p.SubCategory != nil {
		item.SubCategory = strings.TrimSpace(*p.SubCategory)
	}
	if p.Brand != nil {
		item.Brand = strings.TrimSpace(*p.Brand)
	}
	if p.CostPrice != nil {
		if p.CostPrice.IsNegative() {
			return invalid("cost_price", "must not be negative")
		}
		item.CostPrice = *p.CostPrice
	}
	if p.SellingPrice != nil {
		if p.SellingPrice.IsNegative() {
			return invalid("selling_price", "must not be negative")
		}
		item.SellingPrice = *p.SellingPrice
	}
	if p.MinStock != nil {
		if *p.MinStock < 0 {
			return invalid("min_stock", "must not be negative")
		}
		item.MinStock = *p.MinStock
	}
	return nil
}

// Update edits an item's descriptive fields, prices or minimum stock.
// Invoices already issued keep the prices they were sold at.
func (s *CatalogService) Update(ctx context.Context, id string, patch ItemPatch) (*models.Item, error) {
	var updated *models.Item
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		items, err := tx.GetItemsForUpdate(ctx, []string{id})
		if err != nil {
			return err
		}
		item, ok := items[id]
		if !ok {
			return &NotFoundError{Kind: "item", ID: id}
		}
		if err := patch.apply(item); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("✏️ Item updated", zap.String("item_id", id))
	if updated.IsLowStock() {
		s.publish(ctx, models.LedgerEvent{Type: models.EventStockLow, Item: updated})
	}
	return updated, nil
}

// GetLowStock returns items whose stock is at or below their minimum, in catalog order.
func (s *CatalogService) GetLowStock(ctx context.Context) ([]models.Item, error) {
	return s.store.ListLowStockItems(ctx)
}

// AdjustStock applies a manual correction. A delta that would take stock
// below zero fails with InsufficientStockError and changes nothing.
func (s *CatalogService) AdjustStock(ctx context.Context, itemID string, delta int, notes, performedBy string) (*models.Item, error) {
	if delta == 0 {
		return nil, invalid("quantity", "must not be zero")
	}
	return s.changeStock(ctx, itemID, stockChange{
		delta:       delta,
		kind:        models.MovementAdjustment,
		notes:       notes,
		performedBy: performedBy,
		enforce:     true,
	})
}

// Restock records a delivery of quantity units.
func (s *CatalogService) Restock(ctx context.Context, itemID string, quantity int, notes, performedBy string) (*models.Item, error) {
	if quantity <= 0 {
		return nil, invalid("quantity", "must be positive")
	}
	item, err := s.changeStock(ctx, itemID, stockChange{
		delta:       quantity,
		kind:        models.MovementRestock,
		notes:       notes,
		performedBy: performedBy,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.LedgerEvent{Type: models.EventStockRestocked, Item: item})
	return item, nil
}

// Movements returns the stock audit trail of one item.
func (s *CatalogService) Movements(ctx context.Context, itemID string) ([]models.StockMovement, error) {
	if _, err := s.Get(ctx, itemID); err != nil {
		return nil, err
	}
	return s.store.ListMovements(ctx, itemID)
}

func (s *CatalogService) changeStock(ctx context.Context, itemID string, ch stockChange) (*models.Item, error) {
	var updated *models.Item
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		items, err := tx.GetItemsForUpdate(ctx, []string{itemID})
		if err != nil {
			return err
		}
		item, ok := items[itemID]
		if !ok {
			return &NotFoundError{Kind: "item", ID: itemID}
		}
		if err := applyStockChange(ctx, tx, item, ch); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("📦 Stock changed",
		zap.String("item_id", itemID),
		zap.String("movement", string(ch.kind)),
		zap.Int("delta", ch.delta),
		zap.Int("stock", updated.StockQuantity))
	if updated.IsLowStock() {
		s.publish(ctx, models.LedgerEvent{Type: models.EventStockLow, Item: updated})
	}
	return updated, nil
}

func (s *CatalogService) publish(ctx context.Context, evt models.LedgerEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("⚠️ Failed to publish event", zap.String("type", string(evt.Type)), zap.Error(err))
	}
}

// stockChange describes one stock delta and its audit record.
type stockChange struct {
	delta       int
	kind        models.MovementType
	invoiceID   *string
	notes       string
	performedBy string
	// enforce rejects a result below zero. Reversals of earlier decrements
	// are applied without the check.
	enforce bool
}

// applyStockChange writes the new stock level and its movement through tx and
// updates item in place.
func applyStockChange(ctx context.Context, tx store.Store, item *models.Item, ch stockChange) error {
	next := item.StockQuantity + ch.delta
	if ch.enforce && next < 0 {
		return &InsufficientStockError{
			ItemID:    item.ID,
			SKU:       item.SKU,
			Name:      item.Name,
			Available: item.StockQuantity,
			Requested: -ch.delta,
		}
	}
	if err := tx.UpdateStock(ctx, item.ID, next); err != nil {
		return fmt.Errorf("failed to update stock for item %s: %w", item.ID, err)
	}
	item.StockQuantity = next

	mv := &models.StockMovement{
		ItemID:       item.ID,
		Quantity:     ch.delta,
		StockAfter:   next,
		MovementType: ch.kind,
		InvoiceID:    ch.invoiceID,
		PerformedBy:  ch.performedBy,
		Notes:        ch.notes,
	}
	if err := tx.RecordMovement(ctx, mv); err != nil {
		return err
	}
	return nil
}
