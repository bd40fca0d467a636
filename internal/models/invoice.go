package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of a sales invoice.
type InvoiceStatus string

const (
	InvoiceStatusOngoing   InvoiceStatus = "ongoing"   // parked, stock untouched
	InvoiceStatusCompleted InvoiceStatus = "completed" // sold, stock decremented
	InvoiceStatusDeleted   InvoiceStatus = "deleted"   // terminal
)

// PaymentMode is how the customer settled the invoice.
type PaymentMode string

const (
	PaymentCash   PaymentMode = "Cash"
	PaymentCard   PaymentMode = "Card"
	PaymentUPI    PaymentMode = "UPI"
	PaymentCredit PaymentMode = "Credit"
)

// DefaultCustomerName is used when an invoice is saved without a customer.
const DefaultCustomerName = "Walk-in Customer"

// Valid reports whether m is one of the accepted payment modes.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentCredit:
		return true
	}
	return false
}

// InvoiceLine is one item entry of an invoice. SelectedPrice is frozen when the line is added.
type InvoiceLine struct {
	ID            string          `json:"id" gorm:"type:uuid;primaryKey"`
	InvoiceID     string          `json:"invoice_id" gorm:"type:uuid;not null;index"`
	Position      int             `json:"position" gorm:"not null"`
	ItemID        string          `json:"item_id" gorm:"type:uuid;not null;index"`
	SKU           string          `json:"sku" gorm:"type:varchar(100)"`
	Name          string          `json:"name" gorm:"type:varchar(255)"`
	Quantity      int             `json:"quantity" gorm:"not null;check:quantity >= 1"`
	SelectedPrice decimal.Decimal `json:"selected_price" gorm:"type:numeric;not null"`
	LineTotal     decimal.Decimal `json:"line_total" gorm:"type:numeric;not null"`
}

// TableName returns the table name.
func (InvoiceLine) TableName() string {
	return "invoice_lines"
}

// BeforeCreate assigns the UUID.
func (l *InvoiceLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Total is quantity × selected price.
func (l InvoiceLine) Total() decimal.Decimal {
	return l.SelectedPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Invoice is a sales invoice. FinalTotal is derived from Lines by Recalculate.
type Invoice struct {
	ID            string          `json:"id" gorm:"type:uuid;primaryKey"`
	InvoiceNumber string          `json:"invoice_number" gorm:"type:varchar(32);not null;uniqueIndex"`
	CustomerName  string          `json:"customer_name" gorm:"type:varchar(255);not null"`
	CustomerPhone string          `json:"customer_phone" gorm:"type:varchar(50)"`
	PaymentMode   PaymentMode     `json:"payment_mode" gorm:"type:varchar(20);not null;default:'Cash'"`
	Status        InvoiceStatus   `json:"status" gorm:"type:varchar(20);not null;index"`
	FinalTotal    decimal.Decimal `json:"final_total" gorm:"type:numeric;not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null;index"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`

	Lines []InvoiceLine `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name.
func (Invoice) TableName() string {
	return "invoices"
}

// BeforeCreate fills the identifier and timestamps left empty by the caller.
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	return nil
}

// Recalculate refreshes every line total and the invoice's FinalTotal.
func (i *Invoice) Recalculate() {
	total := decimal.Zero
	for idx := range i.Lines {
		i.Lines[idx].Position = idx
		i.Lines[idx].InvoiceID = i.ID
		i.Lines[idx].LineTotal = i.Lines[idx].Total()
		total = total.Add(i.Lines[idx].LineTotal)
	}
	i.FinalTotal = total
}

// Quantities sums line quantities per item id.
func (i *Invoice) Quantities() map[string]int {
	out := make(map[string]int, len(i.Lines))
	for _, l := range i.Lines {
		out[l.ItemID] += l.Quantity
	}
	return out
}

func (i *Invoice) IsOngoing() bool {
	return i.Status == InvoiceStatusOngoing
}

func (i *Invoice) IsCompleted() bool {
	return i.Status == InvoiceStatusCompleted
}

func (i *Invoice) IsDeleted() bool {
	return i.Status == InvoiceStatusDeleted
}

// Clone returns a deep copy so callers cannot mutate stored lines.
func (i *Invoice) Clone() *Invoice {
	c := *i
	c.Lines = append([]InvoiceLine(nil), i.Lines...)
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	if i.DeletedAt != nil {
		t := *i.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
