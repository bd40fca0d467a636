package models

import (
	"fmt"

	"gorm.io/gorm"
)

// InvoiceNumberSequence backs invoice numbering in PostgreSQL.
const InvoiceNumberSequence = "invoice_number_seq"

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Item{}, &Invoice{}, &InvoiceLine{}, &StockMovement{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Sequence values are never handed out twice, even when the transaction
	// that drew them rolls back.
	if err := db.Exec("CREATE SEQUENCE IF NOT EXISTS " + InvoiceNumberSequence + " START 1").Error; err != nil {
		return fmt.Errorf("create invoice number sequence: %w", err)
	}

	return nil
}
