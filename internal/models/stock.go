package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementSale       MovementType = "sale"       // invoice completed
	MovementReversal   MovementType = "reversal"   // completed invoice deleted
	MovementRestock    MovementType = "restock"    // delivery
	MovementAdjustment MovementType = "adjustment" // manual correction
)

// StockMovement is the audit record of a single stock change.
// Quantity is signed: positive = in, negative = out.
type StockMovement struct {
	ID           string       `json:"id" gorm:"type:uuid;primaryKey"`
	ItemID       string       `json:"item_id" gorm:"type:uuid;not null;index"`
	Quantity     int          `json:"quantity" gorm:"not null"`
	StockAfter   int          `json:"stock_after" gorm:"not null"`
	MovementType MovementType `json:"movement_type" gorm:"type:varchar(20);not null;index"`
	InvoiceID    *string      `json:"invoice_id,omitempty" gorm:"type:uuid;index"`
	PerformedBy  string       `json:"performed_by" gorm:"type:varchar(255)"`
	Notes        string       `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the table name.
func (StockMovement) TableName() string {
	return "stock_movements"
}

// BeforeCreate assigns the UUID.
func (sm *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if sm.ID == "" {
		sm.ID = uuid.New().String()
	}
	return nil
}
