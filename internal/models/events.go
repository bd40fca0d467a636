package models

import "time"

// LedgerEventType names a committed ledger change.
type LedgerEventType string

const (
	EventInvoiceCreated   LedgerEventType = "invoice.created"
	EventInvoiceCompleted LedgerEventType = "invoice.completed"
	EventInvoiceDeleted   LedgerEventType = "invoice.deleted"
	EventItemAdded        LedgerEventType = "item.added"
	EventStockRestocked   LedgerEventType = "stock.restocked"
	EventStockLow         LedgerEventType = "stock.low"
)

// LedgerEvent is published after a change has been committed.
type LedgerEvent struct {
	Type       LedgerEventType `json:"type"`
	InvoiceID  string          `json:"invoice_id,omitempty"`
	Invoice    *Invoice        `json:"invoice,omitempty"`
	Item       *Item           `json:"item,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Key is the partition key used by the event log.
func (e LedgerEvent) Key() string {
	if e.InvoiceID != "" {
		return e.InvoiceID
	}
	if e.Item != nil {
		return e.Item.ID
	}
	return string(e.Type)
}

// RestockEvent is an inbound delivery notice consumed from the event log.
type RestockEvent struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Supplier string `json:"supplier"`
	Note     string `json:"note"`
}
