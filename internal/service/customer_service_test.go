package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewCustomerService(repository.NewCustomerRepository(env.db), repository.NewAuditRepository(env.db))

	created, err := svc.CreateCustomer(ctx, CreateCustomerRequest{
		Name:  "Globex",
		Code:  "glbx",
		Email: "ap@globex.example",
	}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, "GLBX", created.Code)
	assert.True(t, created.IsActive)

	t.Run("code is unique case-insensitively", func(t *testing.T) {
		_, err := svc.CreateCustomer(ctx, CreateCustomerRequest{
			Name:  "Globex Again",
			Code:  "GLBX",
			Email: "other@globex.example",
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("deactivate and filter", func(t *testing.T) {
		inactive := false
		_, err := svc.UpdateCustomer(ctx, created.ID, UpdateCustomerRequest{IsActive: &inactive}, env.userID)
		require.NoError(t, err)

		active, _, err := svc.ListCustomers(ctx, true, 1, 20)
		require.NoError(t, err)
		for _, c := range active {
			assert.NotEqual(t, created.ID, c.ID)
		}
	})
}

func TestAccountCRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.accounts.CreateAccount(ctx, CreateAccountRequest{
		CustomerID: env.customer.ID.String(),
		Name:       "Acme EU",
		AccountID:  "ACME-EU-01",
		Currency:   "eur",
	}, env.userID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", created.Currency)
	assert.Equal(t, model.CycleMonthly, created.BillingCycle)
	assert.Equal(t, model.AccountStatusMissingPO, created.Status)

	t.Run("unknown billing cycle", func(t *testing.T) {
		_, err := env.accounts.CreateAccount(ctx, CreateAccountRequest{
			CustomerID:   env.customer.ID.String(),
			Name:         "Acme APAC",
			AccountID:    "ACME-AP-01",
			BillingCycle: "fortnightly",
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("update", func(t *testing.T) {
		cycle := model.CycleQuarterly
		updated, err := env.accounts.UpdateAccount(ctx, created.ID, UpdateAccountRequest{BillingCycle: &cycle}, env.userID)
		require.NoError(t, err)
		assert.Equal(t, model.CycleQuarterly, updated.BillingCycle)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, env.accounts.DeleteAccount(ctx, created.ID))
		_, err := env.accounts.GetAccount(ctx, created.ID)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestRateCardLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewRateCardService(
		repository.NewRateCardRepository(env.db),
		repository.NewCustomerRepository(env.db),
		repository.NewAuditRepository(env.db),
	)

	created, err := svc.CreateRateCard(ctx, CreateRateCardRequest{
		CustomerID: env.customer.ID.String(),
		Region:     "EMEA",
		Currency:   "EUR",
		ServiceRates: []ServiceRateRequest{
			{Category: "L1 Support", RateType: model.RateTypeHourly, RateValue: "85"},
			{Category: "Site Visit", RateType: model.RateTypeFixed, RateValue: "400", TravelCharge: "50"},
		},
	}, env.userID)
	require.NoError(t, err)
	require.Len(t, created.ServiceRates, 2)

	t.Run("invalid rate type", func(t *testing.T) {
		_, err := svc.CreateRateCard(ctx, CreateRateCardRequest{
			CustomerID:   env.customer.ID.String(),
			ServiceRates: []ServiceRateRequest{{Category: "L1", RateType: "weekly", RateValue: "85"}},
		}, env.userID)
		assert.True(t, IsValidation(err), "expected validation error, got %v", err)
	})

	t.Run("service rates replaced wholesale", func(t *testing.T) {
		updated, err := svc.UpdateRateCard(ctx, created.ID, UpdateRateCardRequest{
			ServiceRates: []ServiceRateRequest{
				{Category: "L2 Support", RateType: model.RateTypeDay, RateValue: "600"},
			},
		}, env.userID)
		require.NoError(t, err)
		require.Len(t, updated.ServiceRates, 1)
		assert.Equal(t, "L2 Support", updated.ServiceRates[0].Category)
	})
}
