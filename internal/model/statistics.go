package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStatistics aggregates PO balance health and billing activity
type DashboardStatistics struct {
	TotalPurchaseOrders int64            `json:"total_purchase_orders"`
	POCountByStatus     map[string]int64 `json:"po_count_by_status"`

	TotalAuthorized decimal.Decimal `json:"total_authorized"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	TotalRemaining  decimal.Decimal `json:"total_remaining"`

	UnreadNotifications int64 `json:"unread_notifications"`

	BillingRunsCompleted int64           `json:"billing_runs_completed"`
	BilledInRange        decimal.Decimal `json:"billed_in_range"`

	TopCustomersBySpend []CustomerSpendRanking `json:"top_customers_by_spend"`

	TimeRangeStartDate time.Time `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time `json:"time_range_end_date"`
}

// CustomerSpendRanking represents a customer ranked by accumulated PO spend
type CustomerSpendRanking struct {
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	CustomerCode string          `json:"customer_code"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	POCount      int             `json:"po_count"`
}
