package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"partsledger/internal/models"
)

// GormStore persists the catalog and ledger in PostgreSQL.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGormStore wraps an open connection. Run models.AutoMigrate first.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// locking adds FOR UPDATE inside a transaction only.
func (s *GormStore) locking(ctx context.Context) *gorm.DB {
	db := s.conn(ctx)
	if s.inTx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := s.conn(ctx).Order("created_at, id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (s *GormStore) ListLowStockItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.conn(ctx).
		Where("stock_quantity <= min_stock").
		Order("created_at, id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock items: %w", err)
	}
	return items, nil
}

func (s *GormStore) CountItems(ctx context.Context) (int, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Item{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return int(n), nil
}

func (s *GormStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := s.conn(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// GetItemsForUpdate locks rows in id order so concurrent transitions touching
// the same items cannot deadlock.
func (s *GormStore) GetItemsForUpdate(ctx context.Context, ids []string) (map[string]*models.Item, error) {
	if len(ids) == 0 {
		return map[string]*models.Item{}, nil
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var items []models.Item
	err := s.locking(ctx).
		Where("id = ANY(?)", pq.Array(sorted)).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock items: %w", err)
	}

	out := make(map[string]*models.Item, len(items))
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

func (s *GormStore) CreateItem(ctx context.Context, item *models.Item) error {
	if err := s.conn(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateItem(ctx context.Context, item *models.Item) error {
	res := s.conn(ctx).Model(&models.Item{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"name":          item.Name,
		"category":      item.Category,
		"sub_category":  item.SubCategory,
		"brand":         item.Brand,
		"cost_price":    item.CostPrice,
		"selling_price": item.SellingPrice,
		"min_stock":     item.MinStock,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateStock(ctx context.Context, itemID string, quantity int) error {
	res := s.conn(ctx).Model(&models.Item{}).Where("id = ?", itemID).Update("stock_quantity", quantity)
	if res.Error != nil {
		return fmt.Errorf("failed to update stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) RecordMovement(ctx context.Context, m *models.StockMovement) error {
	if err := s.conn(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	return nil
}

func (s *GormStore) ListMovements(ctx context.Context, itemID string) ([]models.StockMovement, error) {
	var out []models.StockMovement
	q := s.conn(ctx).Order("created_at, id")
	if itemID != "" {
		q = q.Where("item_id = ?", itemID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return out, nil
}

func (s *GormStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	if err := s.conn(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

func (s *GormStore) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.conn(ctx).Preload("Lines", orderedLines).Where("id = ?", id).First(&inv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *GormStore) GetInvoiceForUpdate(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.locking(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, notFound(err)
	}
	if err := s.conn(ctx).Where("invoice_id = ?", id).Order("position").Find(&inv.Lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load invoice lines: %w", err)
	}
	return &inv, nil
}

func (s *GormStore) UpdateInvoiceStatus(ctx context.Context, inv *models.Invoice) error {
	res := s.conn(ctx).Model(&models.Invoice{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
		"status":       inv.Status,
		"completed_at": inv.CompletedAt,
		"deleted_at":   inv.DeletedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update invoice status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func applyFilter(db *gorm.DB, f InvoiceFilter) *gorm.DB {
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if !f.CreatedFrom.IsZero() {
		db = db.Where("created_at >= ?", f.CreatedFrom)
	}
	if !f.CreatedBefore.IsZero() {
		db = db.Where("created_at < ?", f.CreatedBefore)
	}
	return db
}

func (s *GormStore) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	var out []models.Invoice
	err := applyFilter(s.conn(ctx), filter).
		Preload("Lines", orderedLines).
		Order("created_at, invoice_number").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return out, nil
}

func (s *GormStore) SumInvoices(ctx context.Context, filter InvoiceFilter) (int, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.Decimal
	}
	err := applyFilter(s.conn(ctx).Model(&models.Invoice{}), filter).
		Select("COUNT(*) AS count, COALESCE(SUM(final_total), 0) AS total").
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to sum invoices: %w", err)
	}
	return int(row.Count), row.Total, nil
}

func (s *GormStore) NextInvoiceSeq(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn(ctx).Raw("SELECT nextval('" + models.InvoiceNumberSequence + "')").Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to draw invoice number: %w", err)
	}
	return n, nil
}

// Atomic runs fn inside one database transaction.
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&GormStore{db: tx, inTx: true}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
