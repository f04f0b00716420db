package service

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.DashboardStatistics, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetStatistics aggregates PO balance health and billing activity for the
// dashboard. Totals over POs are global; billing figures honor the range.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.DashboardStatistics, error) {
	var response model.DashboardStatistics
	response.TimeRangeStartDate = startDate
	response.TimeRangeEndDate = endDate
	response.POCountByStatus = make(map[string]int64)

	// PO counts by status
	var statusCounts []struct {
		Status string
		Count  int64
	}
	s.db.WithContext(ctx).Table("purchase_orders").
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusCounts)
	for _, sc := range statusCounts {
		response.POCountByStatus[sc.Status] = sc.Count
		response.TotalPurchaseOrders += sc.Count
	}

	// Authorized, spent, and remaining across all POs. Sums stay in decimal
	// end to end; float64 would drift on large books.
	var totals struct {
		Authorized decimal.Decimal
		Spent      decimal.Decimal
	}
	s.db.WithContext(ctx).Table("purchase_orders").
		Select("COALESCE(SUM(total_amount), 0) as authorized, COALESCE(SUM(spent_amount), 0) as spent").
		Scan(&totals)
	response.TotalAuthorized = totals.Authorized
	response.TotalSpent = totals.Spent
	response.TotalRemaining = totals.Authorized.Sub(totals.Spent)

	// Unread threshold notifications
	s.db.WithContext(ctx).Table("po_balance_notifications").
		Where("is_read = ?", false).
		Count(&response.UnreadNotifications)

	// Billing activity in the requested range
	var billed struct {
		Count  int64
		Amount decimal.Decimal
	}
	s.db.WithContext(ctx).Table("billing_runs").
		Select("COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Where("status = ? AND billing_date >= ? AND billing_date <= ?", model.RunStatusCompleted, startDate, endDate).
		Scan(&billed)
	response.BillingRunsCompleted = billed.Count
	response.BilledInRange = billed.Amount

	// Top customers by accumulated PO spend
	var topCustomers []model.CustomerSpendRanking
	s.db.WithContext(ctx).Table("purchase_orders").
		Select("customers.id as customer_id, customers.name as customer_name, customers.code as customer_code, SUM(purchase_orders.spent_amount) as total_spent, COUNT(purchase_orders.id) as po_count").
		Joins("JOIN customers ON customers.id = purchase_orders.customer_id").
		Group("customers.id, customers.name, customers.code").
		Order("total_spent DESC").
		Limit(5).
		Scan(&topCustomers)
	response.TopCustomersBySpend = topCustomers

	return response, nil
}
