package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateAccountRequest struct {
	CustomerID   string `json:"customer_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	AccountID    string `json:"account_id" binding:"required"` // business key, e.g. ACME-US-01
	Region       string `json:"region"`
	CountryCode  string `json:"country_code"`
	BillingCycle string `json:"billing_cycle"`
	Currency     string `json:"currency"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Notes        string `json:"notes"`
}

type UpdateAccountRequest struct {
	Name         *string `json:"name"`
	Region       *string `json:"region"`
	CountryCode  *string `json:"country_code"`
	BillingCycle *string `json:"billing_cycle"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
	Notes        *string `json:"notes"`
	IsActive     *bool   `json:"is_active"`
}

type AccountResponse struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	CustomerName   string `json:"customer_name,omitempty"`
	Name           string `json:"name"`
	AccountID      string `json:"account_id"`
	Region         string `json:"region,omitempty"`
	CountryCode    string `json:"country_code,omitempty"`
	BillingCycle   string `json:"billing_cycle"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	LastBillingRun string `json:"last_billing_run,omitempty"`
	ContactEmail   string `json:"contact_email,omitempty"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	Notes          string `json:"notes,omitempty"`
	IsActive       bool   `json:"is_active"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type AccountService interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest, userID string) (AccountResponse, error)
	GetAccount(ctx context.Context, id string) (AccountResponse, error)
	ListAccounts(ctx context.Context, customerID string, page, limit int) ([]AccountResponse, int64, error)
	UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest, userID string) (AccountResponse, error)
	DeleteAccount(ctx context.Context, id string) error

	// UpdateAccountStatus re-derives the account status from its purchase
	// orders. Called by the PO pipeline after every committed PO write.
	UpdateAccountStatus(ctx context.Context, accountID string) error
}

type accountService struct {
	accountRepo  repository.AccountRepository
	customerRepo repository.CustomerRepository
	poRepo       repository.PurchaseOrderRepository
	auditRepo    repository.AuditRepository
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	customerRepo repository.CustomerRepository,
	poRepo repository.PurchaseOrderRepository,
	auditRepo repository.AuditRepository,
) AccountService {
	return &accountService{
		accountRepo:  accountRepo,
		customerRepo: customerRepo,
		poRepo:       poRepo,
		auditRepo:    auditRepo,
	}
}

func (s *accountService) CreateAccount(ctx context.Context, req CreateAccountRequest, userID string) (AccountResponse, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return AccountResponse{}, validationErr("customer_id", "invalid uuid")
	}
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return AccountResponse{}, ErrCustomerNotFound
	}

	creatorID, err := uuid.Parse(userID)
	if err != nil {
		return AccountResponse{}, validationErr("user_id", "invalid uuid")
	}

	cycle := req.BillingCycle
	if cycle == "" {
		cycle = model.CycleMonthly
	}
	if !model.ValidBillingCycle(cycle) {
		return AccountResponse{}, validationErr("billing_cycle", "unknown billing cycle")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return AccountResponse{}, validationErr("currency", "expected a 3-letter ISO code")
	}

	account := model.Account{
		CustomerID:   customerID,
		Name:         req.Name,
		AccountID:    strings.TrimSpace(req.AccountID),
		Region:       req.Region,
		CountryCode:  strings.ToUpper(req.CountryCode),
		BillingCycle: cycle,
		Currency:     currency,
		// New accounts have no purchase orders yet.
		Status:       model.AccountStatusMissingPO,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Notes:        req.Notes,
		IsActive:     true,
		CreatedBy:    creatorID,
	}
	if account.AccountID == "" {
		return AccountResponse{}, validationErr("account_id", "must not be blank")
	}

	if err := s.accountRepo.Create(ctx, &account); err != nil {
		return AccountResponse{}, fmt.Errorf("failed to create account: %w", err)
	}
	account.Customer = customer

	s.logAction(ctx, creatorID, model.ActionCreateAccount, &account)
	return toAccountResponse(&account), nil
}

func (s *accountService) GetAccount(ctx context.Context, id string) (AccountResponse, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return AccountResponse{}, ErrAccountNotFound
	}
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return AccountResponse{}, ErrAccountNotFound
	}
	return toAccountResponse(account), nil
}

func (s *accountService) ListAccounts(ctx context.Context, customerID string, page, limit int) ([]AccountResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var filterID *uuid.UUID
	if customerID != "" {
		parsed, err := uuid.Parse(customerID)
		if err != nil {
			return nil, 0, validationErr("customer_id", "invalid uuid")
		}
		filterID = &parsed
	}

	accounts, total, err := s.accountRepo.List(ctx, filterID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	result := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		result = append(result, toAccountResponse(&accounts[i]))
	}
	return result, total, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest, userID string) (AccountResponse, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return AccountResponse{}, ErrAccountNotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return AccountResponse{}, validationErr("user_id", "invalid uuid")
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return AccountResponse{}, ErrAccountNotFound
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Region != nil {
		account.Region = *req.Region
	}
	if req.CountryCode != nil {
		account.CountryCode = strings.ToUpper(*req.CountryCode)
	}
	if req.BillingCycle != nil {
		if !model.ValidBillingCycle(*req.BillingCycle) {
			return AccountResponse{}, validationErr("billing_cycle", "unknown billing cycle")
		}
		account.BillingCycle = *req.BillingCycle
	}
	if req.ContactEmail != nil {
		account.ContactEmail = *req.ContactEmail
	}
	if req.ContactPhone != nil {
		account.ContactPhone = *req.ContactPhone
	}
	if req.Notes != nil {
		account.Notes = *req.Notes
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return AccountResponse{}, fmt.Errorf("failed to update account: %w", err)
	}

	s.logAction(ctx, actorID, model.ActionUpdateAccount, account)
	return toAccountResponse(account), nil
}

func (s *accountService) DeleteAccount(ctx context.Context, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	if _, err := s.accountRepo.FindByID(ctx, accountID); err != nil {
		return ErrAccountNotFound
	}
	if err := s.accountRepo.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// lowPOBalanceFraction is the account-level alarm line: when the combined
// remaining balance of an account's usable POs drops to a fifth of their
// combined authorization, the account surfaces as low_po_balance.
var lowPOBalanceFraction = decimal.NewFromFloat(0.2)

func (s *accountService) UpdateAccountStatus(ctx context.Context, accountID string) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return ErrAccountNotFound
	}
	account, err := s.accountRepo.FindByID(ctx, id)
	if err != nil {
		return ErrAccountNotFound
	}

	pos, err := s.poRepo.ListByAccount(ctx, id, "")
	if err != nil {
		return fmt.Errorf("failed to fetch purchase orders for account %s: %w", account.AccountID, err)
	}

	totalAuthorized := decimal.Zero
	totalRemaining := decimal.Zero
	usable := 0
	for i := range pos {
		po := &pos[i]
		switch po.Status {
		case model.POStatusActive, model.POStatusExpiringSoon, model.POStatusLowBalance:
			usable++
			totalAuthorized = totalAuthorized.Add(po.TotalAmount)
			totalRemaining = totalRemaining.Add(po.RemainingBalance())
		}
	}

	status := model.AccountStatusActive
	switch {
	case len(pos) == 0:
		status = model.AccountStatusMissingPO
	case usable == 0:
		status = model.AccountStatusInactive
	case totalAuthorized.IsPositive() && totalRemaining.LessThanOrEqual(totalAuthorized.Mul(lowPOBalanceFraction)):
		status = model.AccountStatusLowPOBalance
	}

	if status == account.Status {
		return nil
	}

	if err := s.accountRepo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	log.Printf("account %s status changed %s -> %s", account.AccountID, account.Status, status)
	return nil
}

func (s *accountService) logAction(ctx context.Context, userID uuid.UUID, action string, account *model.Account) {
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   account.ID.String(),
		EntityName: account.AccountID,
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		log.Printf("failed to write audit entry for account %s: %v", account.AccountID, err)
	}
}

func toAccountResponse(account *model.Account) AccountResponse {
	resp := AccountResponse{
		ID:           account.ID.String(),
		CustomerID:   account.CustomerID.String(),
		Name:         account.Name,
		AccountID:    account.AccountID,
		Region:       account.Region,
		CountryCode:  account.CountryCode,
		BillingCycle: account.BillingCycle,
		Currency:     account.Currency,
		Status:       account.Status,
		ContactEmail: account.ContactEmail,
		ContactPhone: account.ContactPhone,
		Notes:        account.Notes,
		IsActive:     account.IsActive,
		CreatedAt:    account.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    account.UpdatedAt.Format(time.RFC3339),
	}
	if account.Customer != nil {
		resp.CustomerName = account.Customer.Name
	}
	if account.LastBillingRun != nil {
		resp.LastBillingRun = account.LastBillingRun.Format("2006-01-02")
	}
	return resp
}
