package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewStatisticsService(env.db)

	po := env.createPO(t, "1000", "")
	env.createPO(t, "2000", "1900") // low_balance with three unread notifications

	run := env.createRun(t, po.ID, "600")
	_, err := env.billing.CompleteBillingRun(ctx, run.ID, env.userID)
	require.NoError(t, err)

	stats, err := svc.GetStatistics(ctx, time.Now().AddDate(0, -1, 0), time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.EqualValues(t, 2, stats.TotalPurchaseOrders)
	assert.EqualValues(t, 1, stats.POCountByStatus[model.POStatusActive])
	assert.EqualValues(t, 1, stats.POCountByStatus[model.POStatusLowBalance])
	assert.True(t, stats.TotalAuthorized.Equal(decimal.NewFromInt(3000)), "authorized %s", stats.TotalAuthorized)
	assert.True(t, stats.TotalSpent.Equal(decimal.NewFromInt(2500)), "spent %s", stats.TotalSpent)
	assert.True(t, stats.TotalRemaining.Equal(decimal.NewFromInt(500)), "remaining %s", stats.TotalRemaining)

	// Three backfilled on the second PO plus the 50% crossing from the run.
	assert.EqualValues(t, 4, stats.UnreadNotifications)
	assert.EqualValues(t, 1, stats.BillingRunsCompleted)
	assert.True(t, stats.BilledInRange.Equal(decimal.NewFromInt(600)), "billed %s", stats.BilledInRange)

	require.Len(t, stats.TopCustomersBySpend, 1)
	assert.Equal(t, "Acme Corp", stats.TopCustomersBySpend[0].CustomerName)
	assert.True(t, stats.TopCustomersBySpend[0].TotalSpent.Equal(decimal.NewFromInt(2500)))
	assert.EqualValues(t, 2, stats.TopCustomersBySpend[0].POCount)
}

func TestGetStatisticsEmptyDatabase(t *testing.T) {
	env := newTestEnv(t)
	svc := NewStatisticsService(env.db)

	stats, err := svc.GetStatistics(context.Background(), time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalPurchaseOrders)
	assert.True(t, stats.TotalAuthorized.IsZero())
	assert.Empty(t, stats.TopCustomersBySpend)
}
