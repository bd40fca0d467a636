package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"partsledger/internal/models"
)

// ReceiptWidth is the character width of a thermal printer roll.
const ReceiptWidth = 48

// DefaultShopName heads receipts when no shop name is configured.
const DefaultShopName = "SPARE PARTS STORE"

// RenderReceipt formats inv as plain text for a 48-column thermal printer.
// Timestamps are shown in loc.
func RenderReceipt(shopName string, inv *models.Invoice, loc *time.Location) string {
	if shopName == "" {
		shopName = DefaultShopName
	}
	if loc == nil {
		loc = time.Local
	}

	heavy := strings.Repeat("=", ReceiptWidth)
	light := strings.Repeat("-", ReceiptWidth)

	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("%s", heavy)
	line("%s", center(shopName, ReceiptWidth))
	line("%s", heavy)
	line("Invoice: %s", inv.InvoiceNumber)
	line("Date: %s", inv.CreatedAt.In(loc).Format("02/01/2006 15:04"))
	line("Customer: %s", inv.CustomerName)
	if inv.CustomerPhone != "" {
		line("Phone: %s", inv.CustomerPhone)
	}
	line("Status: %s", strings.ToUpper(string(inv.Status)))
	line("%s", light)
	line("%-20s %4s %10s %11s", "ITEM", "QTY", "RATE", "AMOUNT")
	line("%s", light)
	for _, l := range inv.Lines {
		line("%-20s %4d %10s %11s",
			truncate(l.Name, 20), l.Quantity, l.SelectedPrice.StringFixed(2), l.Total().StringFixed(2))
	}
	line("%s", heavy)
	line("%-32s%16s", "TOTAL:", inv.FinalTotal.StringFixed(2))
	line("%s", heavy)
	line("Payment Mode: %s", inv.PaymentMode)
	line("")
	line("%s", center("Thank you for your business!", ReceiptWidth))
	b.WriteString(heavy)
	return b.String()
}

func center(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return truncate(s, width)
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SetReceiptOptions sets the shop name and display zone used by Receipt.
func (s *InvoiceService) SetReceiptOptions(shopName string, loc *time.Location) {
	s.shopName = shopName
	s.loc = loc
}

// Receipt renders the thermal receipt of invoice id.
func (s *InvoiceService) Receipt(ctx context.Context, id string) (string, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return RenderReceipt(s.shopName, inv, s.loc), nil
}
