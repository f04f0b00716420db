package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"backend/internal/database"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the real repositories and services against an in-memory
// sqlite database, so the threshold engine is exercised against an actual
// unique index rather than a mock.
type testEnv struct {
	db          *gorm.DB
	poRepo      repository.PurchaseOrderRepository
	notifRepo   repository.NotificationRepository
	runRepo     repository.BillingRunRepository
	accountRepo repository.AccountRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	accounts    AccountService
	pos         PurchaseOrderService
	billing     BillingService

	customer model.Customer
	account  model.Account
	userID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// A named shared-cache DSN keeps every pooled connection on one database.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	customerRepo := repository.NewCustomerRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	runRepo := repository.NewBillingRunRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	accounts := NewAccountService(accountRepo, customerRepo, poRepo, auditRepo)
	pos := NewPurchaseOrderService(poRepo, notifRepo, customerRepo, accountRepo, auditRepo, txManager, accounts, nil)
	billing := NewBillingService(runRepo, poRepo, accountRepo, auditRepo, txManager, pos)

	env := &testEnv{
		db:          db,
		poRepo:      poRepo,
		notifRepo:   notifRepo,
		runRepo:     runRepo,
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		accounts:    accounts,
		pos:         pos,
		billing:     billing,
		userID:      uuid.NewString(),
	}

	env.customer = model.Customer{
		Name:      "Acme Corp",
		Code:      "ACME",
		Email:     "billing@acme.example",
		IsActive:  true,
		CreatedBy: uuid.MustParse(env.userID),
	}
	require.NoError(t, db.Create(&env.customer).Error)

	env.account = model.Account{
		CustomerID:   env.customer.ID,
		Name:         "Acme US",
		AccountID:    "ACME-US-01",
		BillingCycle: model.CycleMonthly,
		Currency:     "USD",
		Status:       model.AccountStatusMissingPO,
		IsActive:     true,
		CreatedBy:    uuid.MustParse(env.userID),
	}
	require.NoError(t, db.Create(&env.account).Error)

	return env
}

func (e *testEnv) createPO(t *testing.T, total, spent string) PurchaseOrderResponse {
	t.Helper()
	resp, err := e.pos.CreatePurchaseOrder(context.Background(), CreatePurchaseOrderRequest{
		CustomerID:  e.customer.ID.String(),
		AccountID:   e.account.ID.String(),
		TotalAmount: total,
		SpentAmount: spent,
		ValidFrom:   time.Now().AddDate(0, 0, -30).Format("2006-01-02"),
		ValidUntil:  time.Now().AddDate(0, 0, 90).Format("2006-01-02"),
	}, e.userID)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) notificationThresholds(t *testing.T, poID string) []int {
	t.Helper()
	var thresholds []int
	err := e.db.Model(&model.POBalanceNotification{}).
		Where("purchase_order_id = ?", poID).
		Order("threshold_percent").
		Pluck("threshold_percent", &thresholds).Error
	require.NoError(t, err)
	return thresholds
}

func (e *testEnv) accountStatus(t *testing.T) string {
	t.Helper()
	var account model.Account
	require.NoError(t, e.db.First(&account, "id = ?", e.account.ID).Error)
	return account.Status
}

func TestCreatePurchaseOrder(t *testing.T) {
	env := newTestEnv(t)

	resp := env.createPO(t, "1000", "")
	assert.Equal(t, model.POStatusActive, resp.Status)
	assert.Equal(t, "1000.00", resp.RemainingBalance)
	assert.Equal(t, "0.00", resp.UtilizationPercent)
	assert.Contains(t, resp.PONumber, "PO-ACM")
	assert.Empty(t, env.notificationThresholds(t, resp.ID))
}

func TestCreatePurchaseOrderBackfillsThresholds(t *testing.T) {
	env := newTestEnv(t)

	// Imported with 95% prior spend: every threshold is already behind it.
	resp := env.createPO(t, "1000", "950")
	assert.Equal(t, model.POStatusLowBalance, resp.Status)
	assert.Equal(t, []int{50, 75, 90}, env.notificationThresholds(t, resp.ID))
}

func TestCreatePurchaseOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := CreatePurchaseOrderRequest{
		CustomerID:  env.customer.ID.String(),
		TotalAmount: "1000",
		ValidFrom:   "2026-01-01",
		ValidUntil:  "2026-12-31",
	}

	tests := []struct {
		name   string
		mutate func(*CreatePurchaseOrderRequest)
	}{
		{"zero total", func(r *CreatePurchaseOrderRequest) { r.TotalAmount = "0" }},
		{"negative total", func(r *CreatePurchaseOrderRequest) { r.TotalAmount = "-10" }},
		{"garbage total", func(r *CreatePurchaseOrderRequest) { r.TotalAmount = "abc" }},
		{"spend above total", func(r *CreatePurchaseOrderRequest) { r.SpentAmount = "1001" }},
		{"negative spend", func(r *CreatePurchaseOrderRequest) { r.SpentAmount = "-1" }},
		{"bad date", func(r *CreatePurchaseOrderRequest) { r.ValidFrom = "01/01/2026" }},
		{"inverted window", func(r *CreatePurchaseOrderRequest) { r.ValidFrom, r.ValidUntil = r.ValidUntil, r.ValidFrom }},
		{"bad currency", func(r *CreatePurchaseOrderRequest) { r.Currency = "DOLLARS" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := env.pos.CreatePurchaseOrder(ctx, req, env.userID)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}

	t.Run("unknown customer", func(t *testing.T) {
		req := base
		req.CustomerID = uuid.NewString()
		_, err := env.pos.CreatePurchaseOrder(ctx, req, env.userID)
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("account of another customer", func(t *testing.T) {
		other := model.Customer{Name: "Other", Code: "OTH", Email: "x@example.com", CreatedBy: uuid.New()}
		require.NoError(t, env.db.Create(&other).Error)
		req := base
		req.CustomerID = other.ID.String()
		req.AccountID = env.account.ID.String()
		_, err := env.pos.CreatePurchaseOrder(ctx, req, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})
}

func TestCreatePurchaseOrderDraftSkipsDerivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.pos.CreatePurchaseOrder(ctx, CreatePurchaseOrderRequest{
		CustomerID:  env.customer.ID.String(),
		TotalAmount: "1000",
		SpentAmount: "950",
		ValidFrom:   time.Now().Format("2006-01-02"),
		ValidUntil:  time.Now().AddDate(0, 0, 90).Format("2006-01-02"),
		Draft:       true,
	}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusDraft, resp.Status)

	// The first write recomputes the status; there is no way back to draft.
	notes := "activated"
	updated, err := env.pos.UpdatePurchaseOrder(ctx, resp.ID, UpdatePurchaseOrderRequest{Notes: &notes}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusLowBalance, updated.Status)
}

func TestRecordSpendThresholdRatchet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")

	// 50% crossing produces exactly one notification.
	resp, err := env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "500"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusActive, resp.Status)
	assert.Equal(t, []int{50}, env.notificationThresholds(t, po.ID))

	// Jumping over 75 and 90 in one write emits both.
	resp, err = env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "950"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusLowBalance, resp.Status)
	assert.Equal(t, []int{50, 75, 90}, env.notificationThresholds(t, po.ID))

	// Spend correction downwards retracts nothing.
	resp, err = env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "600"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusActive, resp.Status)
	assert.Equal(t, []int{50, 75, 90}, env.notificationThresholds(t, po.ID))

	// Re-crossing the same thresholds stays silent: one row per pair, ever.
	resp, err = env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "970"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusLowBalance, resp.Status)
	assert.Equal(t, []int{50, 75, 90}, env.notificationThresholds(t, po.ID))
}

func TestRecordSpendExactThreshold(t *testing.T) {
	env := newTestEnv(t)
	po := env.createPO(t, "1000", "")

	// Landing exactly on 50.0000 counts as a crossing.
	_, err := env.pos.RecordSpend(context.Background(), po.ID, RecordSpendRequest{SpentAmount: "500.00"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, []int{50}, env.notificationThresholds(t, po.ID))
}

func TestRecordSpendIdempotentValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")

	_, err := env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "800"}, env.userID)
	require.NoError(t, err)
	_, err = env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "800"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, []int{50, 75}, env.notificationThresholds(t, po.ID))
}

func TestRecordSpendWithExistingThresholdRow(t *testing.T) {
	env := newTestEnv(t)
	po := env.createPO(t, "1000", "")

	// The 50% row is already there, as if a concurrent writer inserted it
	// between our read and our write.
	seeded := model.POBalanceNotification{
		PurchaseOrderID:    uuid.MustParse(po.ID),
		ThresholdPercent:   50,
		UtilizationPercent: decimal.RequireFromString("50"),
		RemainingBalance:   decimal.RequireFromString("500"),
	}
	require.NoError(t, env.db.Create(&seeded).Error)

	// The colliding insert must not sink the whole spend transaction.
	resp, err := env.pos.RecordSpend(context.Background(), po.ID, RecordSpendRequest{SpentAmount: "800"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, "200.00", resp.RemainingBalance)
	assert.Equal(t, []int{50, 75}, env.notificationThresholds(t, po.ID))
}

func TestRecordSpendRejectsOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "400")

	_, err := env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "1000.01"}, env.userID)
	assert.True(t, IsValidation(err), "expected validation error, got %v", err)

	// The rejected write left nothing behind.
	stored, err := env.poRepo.FindByID(ctx, uuid.MustParse(po.ID))
	require.NoError(t, err)
	assert.True(t, stored.SpentAmount.Equal(decimal.RequireFromString("400")))
	assert.Empty(t, env.notificationThresholds(t, po.ID))
}

func TestRecordSpendDepletionExpires(t *testing.T) {
	env := newTestEnv(t)
	po := env.createPO(t, "1000", "")

	resp, err := env.pos.RecordSpend(context.Background(), po.ID, RecordSpendRequest{SpentAmount: "1000"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.POStatusExpired, resp.Status)
	assert.Equal(t, "0.00", resp.RemainingBalance)
	assert.Equal(t, []int{50, 75, 90}, env.notificationThresholds(t, po.ID))
}

func TestAccountStatusPropagation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Equal(t, model.AccountStatusMissingPO, env.accountStatus(t))

	po := env.createPO(t, "1000", "")
	assert.Equal(t, model.AccountStatusActive, env.accountStatus(t))

	// 850 spent leaves 15% remaining, under the 20% account alarm line.
	_, err := env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "850"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusLowPOBalance, env.accountStatus(t))

	// Full depletion expires the PO and leaves the account with nothing usable.
	_, err = env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "1000"}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusInactive, env.accountStatus(t))

	require.NoError(t, env.pos.DeletePurchaseOrder(ctx, po.ID, env.userID))
	assert.Equal(t, model.AccountStatusMissingPO, env.accountStatus(t))
}

func TestAccountStatusCombinedBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Two POs: 1000 nearly drained plus a fresh 4000. Combined remaining is
	// 4100 of 5000, comfortably above the alarm line despite the first PO.
	po1 := env.createPO(t, "1000", "")
	_, err := env.pos.RecordSpend(ctx, po1.ID, RecordSpendRequest{SpentAmount: "900"}, env.userID)
	require.NoError(t, err)
	env.createPO(t, "4000", "")
	assert.Equal(t, model.AccountStatusActive, env.accountStatus(t))
}

func TestReassignPORefreshesBothAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 850 of 1000 spent drives the owning account under the 20% alarm line.
	po := env.createPO(t, "1000", "850")
	require.Equal(t, model.AccountStatusLowPOBalance, env.accountStatus(t))

	second := model.Account{
		CustomerID:   env.customer.ID,
		Name:         "Acme EU",
		AccountID:    "ACME-EU-01",
		BillingCycle: model.CycleMonthly,
		Currency:     "EUR",
		Status:       model.AccountStatusMissingPO,
		IsActive:     true,
		CreatedBy:    uuid.MustParse(env.userID),
	}
	require.NoError(t, env.db.Create(&second).Error)

	target := second.ID.String()
	_, err := env.pos.UpdatePurchaseOrder(ctx, po.ID, UpdatePurchaseOrderRequest{AccountID: &target}, env.userID)
	require.NoError(t, err)

	// The old owner no longer holds any PO; the new one inherits the alarm.
	assert.Equal(t, model.AccountStatusMissingPO, env.accountStatus(t))
	var moved model.Account
	require.NoError(t, env.db.First(&moved, "id = ?", second.ID).Error)
	assert.Equal(t, model.AccountStatusLowPOBalance, moved.Status)
}

func TestRefreshStatusesPicksUpExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")

	// Move the validity window into the past behind the service's back,
	// the way a nightly tick would find it.
	yesterday := time.Now().AddDate(0, 0, -1)
	require.NoError(t, env.db.Model(&model.PurchaseOrder{}).
		Where("id = ?", po.ID).
		Update("valid_until", yesterday).Error)

	updated, err := env.pos.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	stored, err := env.poRepo.FindByID(ctx, uuid.MustParse(po.ID))
	require.NoError(t, err)
	assert.Equal(t, model.POStatusExpired, stored.Status)
	// The calendar moved, not the utilization: no notifications.
	assert.Empty(t, env.notificationThresholds(t, po.ID))
	assert.Equal(t, model.AccountStatusInactive, env.accountStatus(t))

	// A second pass finds nothing to do.
	updated, err = env.pos.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestListPurchaseOrdersFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createPO(t, "1000", "")
	lowPO := env.createPO(t, "1000", "950")

	all, total, err := env.pos.ListPurchaseOrders(ctx, POFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	low, total, err := env.pos.ListPurchaseOrders(ctx, POFilter{Status: model.POStatusLowBalance})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, low, 1)
	assert.Equal(t, lowPO.ID, low[0].ID)
}

func TestNotificationsReadFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "950")

	unread, total, err := env.pos.ListNotifications(ctx, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, unread, 3)
	assert.Equal(t, po.PONumber, unread[0].PONumber)

	require.NoError(t, env.pos.MarkNotificationRead(ctx, unread[0].ID))
	_, total, err = env.pos.ListNotifications(ctx, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	count, err := env.pos.MarkAllNotificationsRead(ctx, po.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, total, err = env.pos.ListNotifications(ctx, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	env := newTestEnv(t)
	err := env.pos.MarkNotificationRead(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}
