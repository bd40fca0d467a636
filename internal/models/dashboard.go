package models

import "github.com/shopspring/decimal"

// DashboardStats is the aggregate view served on the dashboard.
type DashboardStats struct {
	TotalItems      int             `json:"total_items"`
	TotalInvoices   int             `json:"total_invoices"`
	TodayInvoices   int             `json:"today_invoices"`
	TodayRevenue    decimal.Decimal `json:"today_revenue"`
	OngoingInvoices int             `json:"ongoing_invoices"`
	LowStockItems   int             `json:"low_stock_items"`
}
