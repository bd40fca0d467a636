package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultMinStock is the low-stock threshold applied when an item is added without one.
const DefaultMinStock = 5

// Item is one sellable catalog row. Several rows may share a SKU as price variants.
//
// Columns carry no gorm defaults: gorm substitutes a tag default for a zero
// field, which would turn an explicit MinStock of 0 into 5. DefaultMinStock
// is applied when the item is drafted.
type Item struct {
	ID            string          `json:"id" gorm:"type:uuid;primaryKey"`
	SKU           string          `json:"sku" gorm:"type:varchar(100);not null;index"`
	Name          string          `json:"name" gorm:"type:varchar(255);not null"`
	Category      string          `json:"category" gorm:"type:varchar(255);index"`
	SubCategory   string          `json:"sub_category" gorm:"type:varchar(255)"`
	Brand         string          `json:"brand" gorm:"type:varchar(255)"`
	CostPrice     decimal.Decimal `json:"cost_price" gorm:"type:numeric;not null"`
	SellingPrice  decimal.Decimal `json:"selling_price" gorm:"type:numeric;not null"`
	StockQuantity int             `json:"stock_quantity" gorm:"not null;check:stock_quantity >= 0"`
	MinStock      int             `json:"min_stock" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name.
func (Item) TableName() string {
	return "items"
}

// BeforeCreate assigns the identifier when the caller left it empty.
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// IsLowStock reports stock at or below the item's minimum.
func (i *Item) IsLowStock() bool {
	return i.StockQuantity <= i.MinStock
}
