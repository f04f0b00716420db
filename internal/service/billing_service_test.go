package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createRun(t *testing.T, poID, amount string) BillingRunResponse {
	t.Helper()
	run, err := e.billing.CreateBillingRun(context.Background(), CreateBillingRunRequest{
		PurchaseOrderID: poID,
		Amount:          amount,
		BillingDate:     time.Now().Format("2006-01-02"),
	}, e.userID)
	require.NoError(t, err)
	return run
}

func TestCreateBillingRun(t *testing.T) {
	env := newTestEnv(t)
	po := env.createPO(t, "1000", "")

	run := env.createRun(t, po.ID, "250")
	assert.Equal(t, model.RunStatusPending, run.Status)
	assert.Equal(t, model.BillingTypeManual, run.BillingType)
	assert.Equal(t, "250.00", run.Amount)
	assert.Equal(t, po.PONumber, run.PONumber)
	assert.Contains(t, run.RunID, "BR-"+time.Now().Format("20060102"))

	// Creating a run reserves nothing: spend moves only on completion.
	stored, err := env.poRepo.FindByID(context.Background(), uuid.MustParse(po.ID))
	require.NoError(t, err)
	assert.True(t, stored.SpentAmount.IsZero())
}

func TestCreateBillingRunSequentialRunIDs(t *testing.T) {
	env := newTestEnv(t)
	po := env.createPO(t, "1000", "")

	prefix := "BR-" + time.Now().Format("20060102")
	first := env.createRun(t, po.ID, "100")
	second := env.createRun(t, po.ID, "100")
	assert.Equal(t, prefix+"-0001", first.RunID)
	assert.Equal(t, prefix+"-0002", second.RunID)
}

func TestCreateBillingRunValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "400")

	t.Run("amount exceeds remaining balance", func(t *testing.T) {
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID: po.ID,
			Amount:          "600.01",
			BillingDate:     "2026-03-01",
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID: po.ID,
			Amount:          "0",
			BillingDate:     "2026-03-01",
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("unknown billing type", func(t *testing.T) {
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID: po.ID,
			Amount:          "100",
			BillingDate:     "2026-03-01",
			BillingType:     "quarterly",
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("inverted billing period", func(t *testing.T) {
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID:  po.ID,
			Amount:           "100",
			BillingDate:      "2026-03-01",
			BillingStartDate: "2026-03-01",
			BillingEndDate:   "2026-02-01",
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("unbillable PO", func(t *testing.T) {
		drained := env.createPO(t, "1000", "999")
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID: drained.ID,
			Amount:          "1",
			BillingDate:     "2026-03-01",
		}, env.userID)
		assert.True(t, IsValidation(err), "low_balance PO should not be billable, got %v", err)
	})

	t.Run("unknown PO", func(t *testing.T) {
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID: uuid.NewString(),
			Amount:          "1",
			BillingDate:     "2026-03-01",
		}, env.userID)
		assert.ErrorIs(t, err, ErrPONotFound)
	})
}

func TestCreateBillingRunLineItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "2000", "")

	run, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
		PurchaseOrderID: po.ID,
		BillingDate:     "2026-03-01",
		BillingType:     model.BillingTypeWizard,
		LineItems: []BillingLineItemRequest{
			{Description: "Support hours", Quantity: "12.5", UnitRate: "80"},
			{Description: "Platform fee", UnitRate: "150", Category: "fixed"},
		},
	}, env.userID)
	require.NoError(t, err)

	// 12.5*80 + 1*150
	assert.Equal(t, "1150.00", run.Amount)
	require.Len(t, run.LineItems, 2)
	assert.Equal(t, "1000.00", run.LineItems[0].TotalAmount)
	assert.Equal(t, "150.00", run.LineItems[1].TotalAmount)

	t.Run("explicit amount must match the line total", func(t *testing.T) {
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID: po.ID,
			Amount:          "1200",
			BillingDate:     "2026-03-01",
			LineItems: []BillingLineItemRequest{
				{Description: "Support hours", Quantity: "12.5", UnitRate: "80"},
				{Description: "Platform fee", UnitRate: "150"},
			},
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := env.billing.CreateBillingRun(ctx, CreateBillingRunRequest{
			PurchaseOrderID: po.ID,
			BillingDate:     "2026-03-01",
			LineItems:       []BillingLineItemRequest{{Description: "x", Quantity: "0", UnitRate: "80"}},
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})
}

func TestCompleteBillingRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")
	run := env.createRun(t, po.ID, "600")

	completed, err := env.billing.CompleteBillingRun(ctx, run.ID, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, completed.Status)
	assert.NotEmpty(t, completed.ProcessedAt)

	// The run's amount went through the full spend pipeline.
	stored, err := env.poRepo.FindByID(ctx, uuid.MustParse(po.ID))
	require.NoError(t, err)
	assert.True(t, stored.SpentAmount.Equal(decimal.RequireFromString("600")))
	assert.Equal(t, model.POStatusActive, stored.Status)
	assert.Equal(t, []int{50}, env.notificationThresholds(t, po.ID))

	// Completion stamps the owning account.
	var account model.Account
	require.NoError(t, env.db.First(&account, "id = ?", env.account.ID).Error)
	require.NotNil(t, account.LastBillingRun)
	assert.Equal(t, time.Now().Format("2006-01-02"), account.LastBillingRun.Format("2006-01-02"))

	t.Run("cannot complete twice", func(t *testing.T) {
		_, err := env.billing.CompleteBillingRun(ctx, run.ID, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})
}

func TestCompleteBillingRunDrivesStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")
	run := env.createRun(t, po.ID, "950")

	_, err := env.billing.CompleteBillingRun(ctx, run.ID, env.userID)
	require.NoError(t, err)

	stored, err := env.poRepo.FindByID(ctx, uuid.MustParse(po.ID))
	require.NoError(t, err)
	assert.Equal(t, model.POStatusLowBalance, stored.Status)
	assert.Equal(t, []int{50, 75, 90}, env.notificationThresholds(t, po.ID))
	assert.Equal(t, model.AccountStatusLowPOBalance, env.accountStatus(t))
}

// brokenUpdateRunRepo fails the next Update, standing in for a connection
// drop between recording the spend and flipping the run status.
type brokenUpdateRunRepo struct {
	repository.BillingRunRepository
	failNext bool
}

func (r *brokenUpdateRunRepo) Update(ctx context.Context, run *model.BillingRun) error {
	if r.failNext {
		r.failNext = false
		return errors.New("connection reset by peer")
	}
	return r.BillingRunRepository.Update(ctx, run)
}

func TestCompleteBillingRunFailureRollsBackSpend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")
	run := env.createRun(t, po.ID, "600")

	flaky := &brokenUpdateRunRepo{BillingRunRepository: env.runRepo, failNext: true}
	billing := NewBillingService(flaky, env.poRepo, env.accountRepo, env.auditRepo, env.txManager, env.pos)

	_, err := billing.CompleteBillingRun(ctx, run.ID, env.userID)
	require.Error(t, err)

	// The spend rolled back with the status flip; the run is still pending.
	stored, findErr := env.poRepo.FindByID(ctx, uuid.MustParse(po.ID))
	require.NoError(t, findErr)
	assert.True(t, stored.SpentAmount.IsZero())
	storedRun, findErr := env.runRepo.FindByID(ctx, uuid.MustParse(run.ID))
	require.NoError(t, findErr)
	assert.Equal(t, model.RunStatusPending, storedRun.Status)

	// Retrying charges the PO exactly once.
	completed, err := billing.CompleteBillingRun(ctx, run.ID, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, completed.Status)
	stored, findErr = env.poRepo.FindByID(ctx, uuid.MustParse(po.ID))
	require.NoError(t, findErr)
	assert.True(t, stored.SpentAmount.Equal(decimal.RequireFromString("600")))
}

func TestCompleteBillingRunOverdrawFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")
	run := env.createRun(t, po.ID, "800")

	// A competing spend shrinks the balance between create and complete.
	_, err := env.pos.RecordSpend(ctx, po.ID, RecordSpendRequest{SpentAmount: "500"}, env.userID)
	require.NoError(t, err)

	_, err = env.billing.CompleteBillingRun(ctx, run.ID, env.userID)
	require.Error(t, err)

	// The failed run is parked, the PO untouched beyond the earlier spend.
	stored, findErr := env.runRepo.FindByID(ctx, uuid.MustParse(run.ID))
	require.NoError(t, findErr)
	assert.Equal(t, model.RunStatusFailed, stored.Status)

	storedPO, findErr := env.poRepo.FindByID(ctx, uuid.MustParse(po.ID))
	require.NoError(t, findErr)
	assert.True(t, storedPO.SpentAmount.Equal(decimal.RequireFromString("500")))
}

func TestCancelBillingRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")
	run := env.createRun(t, po.ID, "300")

	cancelled, err := env.billing.CancelBillingRun(ctx, run.ID, env.userID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, cancelled.Status)

	t.Run("cancelled run cannot be completed", func(t *testing.T) {
		_, err := env.billing.CompleteBillingRun(ctx, run.ID, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("completed run cannot be cancelled", func(t *testing.T) {
		other := env.createRun(t, po.ID, "300")
		_, err := env.billing.CompleteBillingRun(ctx, other.ID, env.userID)
		require.NoError(t, err)
		_, err = env.billing.CancelBillingRun(ctx, other.ID, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})
}

func TestListBillingRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	po := env.createPO(t, "1000", "")
	run := env.createRun(t, po.ID, "100")
	env.createRun(t, po.ID, "200")

	_, err := env.billing.CancelBillingRun(ctx, run.ID, env.userID)
	require.NoError(t, err)

	all, total, err := env.billing.ListBillingRuns(ctx, BillingRunListQuery{PurchaseOrderID: po.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	pending, total, err := env.billing.ListBillingRuns(ctx, BillingRunListQuery{Status: model.RunStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, "200.00", pending[0].Amount)
}
