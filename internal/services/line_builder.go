package services

import (
	"github.com/shopspring/decimal"

	"partsledger/internal/models"
)

// LineBuilder accumulates the lines of one invoice while it is being composed.
// It is not safe for concurrent use and never touches the store.
type LineBuilder struct {
	lines []models.InvoiceLine
}

func NewLineBuilder() *LineBuilder {
	return &LineBuilder{}
}

func (b *LineBuilder) find(itemID string) int {
	for i := range b.lines {
		if b.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// AddItem adds one unit of item. A new line takes the item's current selling price.
func (b *LineBuilder) AddItem(item models.Item) {
	if i := b.find(item.ID); i >= 0 {
		b.lines[i].Quantity++
		return
	}
	b.lines = append(b.lines, models.InvoiceLine{
		ItemID:        item.ID,
		SKU:           item.SKU,
		Name:          item.Name,
		Quantity:      1,
		SelectedPrice: item.SellingPrice,
	})
}

// SetQuantity overwrites the line quantity; zero or less removes the line.
func (b *LineBuilder) SetQuantity(itemID string, quantity int) {
	i := b.find(itemID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		b.lines = append(b.lines[:i], b.lines[i+1:]...)
		return
	}
	b.lines[i].Quantity = quantity
}

// SetPrice overrides the line's selected price.
func (b *LineBuilder) SetPrice(itemID string, price decimal.Decimal) {
	if i := b.find(itemID); i >= 0 {
		b.lines[i].SelectedPrice = price
	}
}

// ComputeTotal returns Σ quantity × selected price at full precision.
func (b *LineBuilder) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.lines {
		total = total.Add(l.Total())
	}
	return total
}

// Lines returns a copy of the current lines.
func (b *LineBuilder) Lines() []models.InvoiceLine {
	return append([]models.InvoiceLine(nil), b.lines...)
}

func (b *LineBuilder) Len() int { return len(b.lines) }

func (b *LineBuilder) Reset() { b.lines = nil }

// Draft turns the lines into an InvoiceDraft for InvoiceService.Create.
func (b *LineBuilder) Draft(customerName, customerPhone string, mode models.PaymentMode, status models.InvoiceStatus) InvoiceDraft {
	d := InvoiceDraft{
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
		PaymentMode:   mode,
		Status:        status,
	}
	for _, l := range b.lines {
		d.Lines = append(d.Lines, LineDraft{
			ItemID:        l.ItemID,
			Quantity:      l.Quantity,
			SelectedPrice: l.SelectedPrice,
		})
	}
	return d
}
