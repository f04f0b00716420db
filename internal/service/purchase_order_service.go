package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreatePurchaseOrderRequest struct {
	PONumber         string `json:"po_number"` // optional, generated when absent
	CustomerID       string `json:"customer_id" binding:"required"`
	AccountID        string `json:"account_id"`
	TotalAmount      string `json:"total_amount" binding:"required"`
	SpentAmount      string `json:"spent_amount"` // optional, for imported POs with prior spend
	Currency         string `json:"currency"`
	ValidFrom        string `json:"valid_from" binding:"required"` // YYYY-MM-DD
	ValidUntil       string `json:"valid_until" binding:"required"`
	Draft            bool   `json:"draft"` // keep the explicit draft status instead of deriving one
	Department       string `json:"department"`
	ProjectCode      string `json:"project_code"`
	ItemsDescription string `json:"items_description"`
	DeliveryTerms    string `json:"delivery_terms"`
	PaymentTerms     string `json:"payment_terms"`
	ReferenceNumber  string `json:"reference_number"`
	Notes            string `json:"notes"`
}

// UpdatePurchaseOrderRequest edits descriptive fields only. Financial state
// changes go through RecordSpend; status is never writable directly.
type UpdatePurchaseOrderRequest struct {
	AccountID        *string `json:"account_id"`
	ValidFrom        *string `json:"valid_from"`
	ValidUntil       *string `json:"valid_until"`
	Department       *string `json:"department"`
	ProjectCode      *string `json:"project_code"`
	ItemsDescription *string `json:"items_description"`
	DeliveryTerms    *string `json:"delivery_terms"`
	PaymentTerms     *string `json:"payment_terms"`
	ReferenceNumber  *string `json:"reference_number"`
	Notes            *string `json:"notes"`
}

type RecordSpendRequest struct {
	SpentAmount string `json:"spent_amount" binding:"required"` // new absolute spent amount
}

type POFilter struct {
	Status     string
	CustomerID string
	AccountID  string
	PONumber   string
	Page       int
	Limit      int
}

type NotificationFilter struct {
	PurchaseOrderID string
	UnreadOnly      bool
	Page            int
	Limit           int
}

type PurchaseOrderResponse struct {
	ID                 string  `json:"id"`
	PONumber           string  `json:"po_number"`
	CustomerID         string  `json:"customer_id"`
	CustomerName       string  `json:"customer_name,omitempty"`
	AccountID          *string `json:"account_id"`
	AccountName        string  `json:"account_name,omitempty"`
	TotalAmount        string  `json:"total_amount"`
	SpentAmount        string  `json:"spent_amount"`
	RemainingBalance   string  `json:"remaining_balance"`
	UtilizationPercent string  `json:"utilization_percent"`
	Currency           string  `json:"currency"`
	ValidFrom          string  `json:"valid_from"`
	ValidUntil         string  `json:"valid_until"`
	DaysUntilExpiry    int     `json:"days_until_expiry"`
	Status             string  `json:"status"`
	Department         string  `json:"department,omitempty"`
	ProjectCode        string  `json:"project_code,omitempty"`
	ItemsDescription   string  `json:"items_description,omitempty"`
	DeliveryTerms      string  `json:"delivery_terms,omitempty"`
	PaymentTerms       string  `json:"payment_terms,omitempty"`
	ReferenceNumber    string  `json:"reference_number,omitempty"`
	Notes              string  `json:"notes,omitempty"`
	CreatedBy          string  `json:"created_by"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

type NotificationResponse struct {
	ID                 string `json:"id"`
	PurchaseOrderID    string `json:"purchase_order_id"`
	PONumber           string `json:"po_number,omitempty"`
	ThresholdPercent   int    `json:"threshold_percent"`
	UtilizationPercent string `json:"utilization_percent"`
	RemainingBalance   string `json:"remaining_balance"`
	Severity           string `json:"severity"`
	Message            string `json:"message"`
	IsRead             bool   `json:"is_read"`
	CreatedAt          string `json:"created_at"`
}

// --- Interface ---

type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest, userID string) (PurchaseOrderResponse, error)
	GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrderResponse, error)
	ListPurchaseOrders(ctx context.Context, filter POFilter) ([]PurchaseOrderResponse, int64, error)
	UpdatePurchaseOrder(ctx context.Context, id string, req UpdatePurchaseOrderRequest, userID string) (PurchaseOrderResponse, error)
	RecordSpend(ctx context.Context, id string, req RecordSpendRequest, userID string) (PurchaseOrderResponse, error)
	DeletePurchaseOrder(ctx context.Context, id string, userID string) error
	RefreshStatuses(ctx context.Context) (int, error)

	ListNotifications(ctx context.Context, filter NotificationFilter) ([]NotificationResponse, int64, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, poID string) (int64, error)
}

type purchaseOrderService struct {
	poRepo           repository.PurchaseOrderRepository
	notificationRepo repository.NotificationRepository
	customerRepo     repository.CustomerRepository
	accountRepo      repository.AccountRepository
	auditRepo        repository.AuditRepository
	txManager        repository.TransactionManager
	accounts         AccountService // status propagation collaborator
	hub              *ws.Hub        // optional, nil when live updates are disabled
}

func NewPurchaseOrderService(
	poRepo repository.PurchaseOrderRepository,
	notificationRepo repository.NotificationRepository,
	customerRepo repository.CustomerRepository,
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	accounts AccountService,
	hub *ws.Hub,
) PurchaseOrderService {
	return &purchaseOrderService{
		poRepo:           poRepo,
		notificationRepo: notificationRepo,
		customerRepo:     customerRepo,
		accountRepo:      accountRepo,
		auditRepo:        auditRepo,
		txManager:        txManager,
		accounts:         accounts,
		hub:              hub,
	}
}

// --- Create ---

func (s *purchaseOrderService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest, userID string) (PurchaseOrderResponse, error) {
	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("total_amount", "invalid decimal value")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return PurchaseOrderResponse{}, validationErr("total_amount", "must be greater than zero")
	}

	spent := decimal.Zero
	if req.SpentAmount != "" {
		spent, err = decimal.NewFromString(req.SpentAmount)
		if err != nil {
			return PurchaseOrderResponse{}, validationErr("spent_amount", "invalid decimal value")
		}
	}
	if spent.IsNegative() {
		return PurchaseOrderResponse{}, validationErr("spent_amount", "cannot be negative")
	}
	if spent.GreaterThan(total) {
		return PurchaseOrderResponse{}, validationErr("spent_amount", "cannot exceed total_amount")
	}

	validFrom, err := parseDate(req.ValidFrom)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("valid_from", "expected YYYY-MM-DD")
	}
	validUntil, err := parseDate(req.ValidUntil)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("valid_until", "expected YYYY-MM-DD")
	}
	if validFrom.After(validUntil) {
		return PurchaseOrderResponse{}, validationErr("valid_from", "must not be after valid_until")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return PurchaseOrderResponse{}, validationErr("currency", "expected a 3-letter ISO code")
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("customer_id", "invalid uuid")
	}
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return PurchaseOrderResponse{}, ErrCustomerNotFound
	}

	var accountID *uuid.UUID
	if req.AccountID != "" {
		parsed, parseErr := uuid.Parse(req.AccountID)
		if parseErr != nil {
			return PurchaseOrderResponse{}, validationErr("account_id", "invalid uuid")
		}
		account, findErr := s.accountRepo.FindByID(ctx, parsed)
		if findErr != nil {
			return PurchaseOrderResponse{}, ErrAccountNotFound
		}
		if account.CustomerID != customerID {
			return PurchaseOrderResponse{}, validationErr("account_id", "account does not belong to the customer")
		}
		accountID = &parsed
	}

	creatorID, err := uuid.Parse(userID)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("user_id", "invalid uuid")
	}

	poNumber := strings.TrimSpace(req.PONumber)
	if poNumber == "" {
		poNumber, err = s.generatePONumber(ctx, customer.Name)
		if err != nil {
			return PurchaseOrderResponse{}, fmt.Errorf("failed to generate po number: %w", err)
		}
	}

	po := model.PurchaseOrder{
		PONumber:         poNumber,
		CustomerID:       customerID,
		AccountID:        accountID,
		TotalAmount:      total.Round(2),
		SpentAmount:      spent.Round(2),
		Currency:         currency,
		ValidFrom:        validFrom,
		ValidUntil:       validUntil,
		Status:           model.POStatusDraft,
		Department:       req.Department,
		ProjectCode:      req.ProjectCode,
		ItemsDescription: req.ItemsDescription,
		DeliveryTerms:    req.DeliveryTerms,
		PaymentTerms:     req.PaymentTerms,
		ReferenceNumber:  req.ReferenceNumber,
		Notes:            req.Notes,
		CreatedBy:        creatorID,
	}

	if !req.Draft {
		status, deriveErr := model.DeriveStatus(po.TotalAmount, po.RemainingBalance(), po.ValidUntil, time.Now())
		if deriveErr != nil {
			return PurchaseOrderResponse{}, validationErr("total_amount", deriveErr.Error())
		}
		po.Status = status
	}

	var created []model.POBalanceNotification
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.poRepo.Create(txCtx, &po); createErr != nil {
			return fmt.Errorf("failed to create purchase order: %w", createErr)
		}
		// A brand-new record counts as coming from zero utilization, so a PO
		// imported with prior spend backfills every threshold it already sits
		// above in this same transaction.
		var notifyErr error
		created, notifyErr = s.emitThresholdNotifications(txCtx, &po, decimal.Zero)
		return notifyErr
	})
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	s.afterWrite(ctx, &po, created)
	s.audit(ctx, creatorID, model.ActionCreatePurchaseOrder, &po, map[string]interface{}{
		"total_amount": po.TotalAmount.StringFixed(2),
		"currency":     po.Currency,
		"status":       po.Status,
	})

	return s.toResponse(ctx, &po), nil
}

// --- Read ---

func (s *purchaseOrderService) GetPurchaseOrder(ctx context.Context, id string) (PurchaseOrderResponse, error) {
	poID, err := uuid.Parse(id)
	if err != nil {
		return PurchaseOrderResponse{}, ErrPONotFound
	}
	po, err := s.poRepo.FindByIDWithRelations(ctx, poID)
	if err != nil {
		return PurchaseOrderResponse{}, ErrPONotFound
	}
	return s.toResponse(ctx, po), nil
}

func (s *purchaseOrderService) ListPurchaseOrders(ctx context.Context, filter POFilter) ([]PurchaseOrderResponse, int64, error) {
	repoFilter := repository.POListFilter{
		Status:   filter.Status,
		PONumber: filter.PONumber,
		Page:     filter.Page,
		Limit:    filter.Limit,
	}
	if repoFilter.Page <= 0 {
		repoFilter.Page = 1
	}
	if repoFilter.Limit <= 0 {
		repoFilter.Limit = 20
	}
	if filter.CustomerID != "" {
		parsed, err := uuid.Parse(filter.CustomerID)
		if err != nil {
			return nil, 0, validationErr("customer_id", "invalid uuid")
		}
		repoFilter.CustomerID = &parsed
	}
	if filter.AccountID != "" {
		parsed, err := uuid.Parse(filter.AccountID)
		if err != nil {
			return nil, 0, validationErr("account_id", "invalid uuid")
		}
		repoFilter.AccountID = &parsed
	}

	pos, total, err := s.poRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchase orders: %w", err)
	}

	result := make([]PurchaseOrderResponse, 0, len(pos))
	for i := range pos {
		result = append(result, s.toResponse(ctx, &pos[i]))
	}
	return result, total, nil
}

// --- Update ---

func (s *purchaseOrderService) UpdatePurchaseOrder(ctx context.Context, id string, req UpdatePurchaseOrderRequest, userID string) (PurchaseOrderResponse, error) {
	poID, err := uuid.Parse(id)
	if err != nil {
		return PurchaseOrderResponse{}, ErrPONotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("user_id", "invalid uuid")
	}

	var po *model.PurchaseOrder
	var created []model.POBalanceNotification
	var previousAccountID *uuid.UUID
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		po, findErr = s.poRepo.FindByID(txCtx, poID)
		if findErr != nil {
			return ErrPONotFound
		}

		if po.AccountID != nil {
			held := *po.AccountID
			previousAccountID = &held
		}

		oldUtilization, utilErr := po.UtilizationPercent()
		if utilErr != nil {
			return validationErr("total_amount", utilErr.Error())
		}

		if applyErr := s.applyUpdate(txCtx, po, req); applyErr != nil {
			return applyErr
		}

		// Every persisted change recomputes the status; this is the one-way
		// exit out of draft.
		status, deriveErr := model.DeriveStatus(po.TotalAmount, po.RemainingBalance(), po.ValidUntil, time.Now())
		if deriveErr != nil {
			return validationErr("total_amount", deriveErr.Error())
		}
		po.Status = status

		if updateErr := s.poRepo.Update(txCtx, po); updateErr != nil {
			return fmt.Errorf("failed to update purchase order: %w", updateErr)
		}

		var notifyErr error
		created, notifyErr = s.emitThresholdNotifications(txCtx, po, oldUtilization)
		return notifyErr
	})
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	s.afterWrite(ctx, po, created)
	// Reassigning the PO changes both accounts' balance pictures; the old
	// owner must drop the status it earned while it still held this PO.
	if previousAccountID != nil && (po.AccountID == nil || *po.AccountID != *previousAccountID) {
		s.refreshAccount(ctx, previousAccountID, po.PONumber)
	}
	s.audit(ctx, actorID, model.ActionUpdatePurchaseOrder, po, map[string]interface{}{"status": po.Status})

	return s.toResponse(ctx, po), nil
}

func (s *purchaseOrderService) applyUpdate(ctx context.Context, po *model.PurchaseOrder, req UpdatePurchaseOrderRequest) error {
	if req.AccountID != nil {
		if *req.AccountID == "" {
			po.AccountID = nil
		} else {
			parsed, err := uuid.Parse(*req.AccountID)
			if err != nil {
				return validationErr("account_id", "invalid uuid")
			}
			account, err := s.accountRepo.FindByID(ctx, parsed)
			if err != nil {
				return ErrAccountNotFound
			}
			if account.CustomerID != po.CustomerID {
				return validationErr("account_id", "account does not belong to the customer")
			}
			po.AccountID = &parsed
		}
	}

	if req.ValidFrom != nil {
		parsed, err := parseDate(*req.ValidFrom)
		if err != nil {
			return validationErr("valid_from", "expected YYYY-MM-DD")
		}
		po.ValidFrom = parsed
	}
	if req.ValidUntil != nil {
		parsed, err := parseDate(*req.ValidUntil)
		if err != nil {
			return validationErr("valid_until", "expected YYYY-MM-DD")
		}
		po.ValidUntil = parsed
	}
	if po.ValidFrom.After(po.ValidUntil) {
		return validationErr("valid_from", "must not be after valid_until")
	}

	if req.Department != nil {
		po.Department = *req.Department
	}
	if req.ProjectCode != nil {
		po.ProjectCode = *req.ProjectCode
	}
	if req.ItemsDescription != nil {
		po.ItemsDescription = *req.ItemsDescription
	}
	if req.DeliveryTerms != nil {
		po.DeliveryTerms = *req.DeliveryTerms
	}
	if req.PaymentTerms != nil {
		po.PaymentTerms = *req.PaymentTerms
	}
	if req.ReferenceNumber != nil {
		po.ReferenceNumber = *req.ReferenceNumber
	}
	if req.Notes != nil {
		po.Notes = *req.Notes
	}
	return nil
}

// --- RecordSpend: the core pipeline trigger ---

func (s *purchaseOrderService) RecordSpend(ctx context.Context, id string, req RecordSpendRequest, userID string) (PurchaseOrderResponse, error) {
	poID, err := uuid.Parse(id)
	if err != nil {
		return PurchaseOrderResponse{}, ErrPONotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("user_id", "invalid uuid")
	}

	newSpent, err := decimal.NewFromString(req.SpentAmount)
	if err != nil {
		return PurchaseOrderResponse{}, validationErr("spent_amount", "invalid decimal value")
	}
	if newSpent.IsNegative() {
		return PurchaseOrderResponse{}, validationErr("spent_amount", "cannot be negative")
	}

	var po *model.PurchaseOrder
	var created []model.POBalanceNotification
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		po, findErr = s.poRepo.FindByID(txCtx, poID)
		if findErr != nil {
			return ErrPONotFound
		}

		if newSpent.GreaterThan(po.TotalAmount) {
			return validationErr("spent_amount", "remaining balance would become negative")
		}

		// Previous persisted utilization is the crossing baseline.
		oldUtilization, utilErr := po.UtilizationPercent()
		if utilErr != nil {
			return validationErr("total_amount", utilErr.Error())
		}

		po.SpentAmount = newSpent.Round(2)

		status, deriveErr := model.DeriveStatus(po.TotalAmount, po.RemainingBalance(), po.ValidUntil, time.Now())
		if deriveErr != nil {
			return validationErr("total_amount", deriveErr.Error())
		}
		po.Status = status

		if updateErr := s.poRepo.Update(txCtx, po); updateErr != nil {
			return fmt.Errorf("failed to record spend: %w", updateErr)
		}

		var notifyErr error
		created, notifyErr = s.emitThresholdNotifications(txCtx, po, oldUtilization)
		return notifyErr
	})
	if err != nil {
		return PurchaseOrderResponse{}, err
	}

	s.afterWrite(ctx, po, created)
	s.audit(ctx, actorID, model.ActionRecordSpend, po, map[string]interface{}{
		"spent_amount":      po.SpentAmount.StringFixed(2),
		"remaining_balance": po.RemainingBalance().StringFixed(2),
		"status":            po.Status,
	})

	return s.toResponse(ctx, po), nil
}

// --- Delete ---

func (s *purchaseOrderService) DeletePurchaseOrder(ctx context.Context, id string, userID string) error {
	poID, err := uuid.Parse(id)
	if err != nil {
		return ErrPONotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return validationErr("user_id", "invalid uuid")
	}

	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return ErrPONotFound
	}

	// Notification rows go with the PO via the FK cascade.
	if err := s.poRepo.Delete(ctx, poID); err != nil {
		return fmt.Errorf("failed to delete purchase order: %w", err)
	}

	s.propagateAccountStatus(ctx, po)
	s.audit(ctx, actorID, model.ActionDeletePurchaseOrder, po, nil)
	return nil
}

// --- Reconciliation ---

// RefreshStatuses re-derives the status of every PO from the current date,
// picking up expiries that happened without a write trigger. It reuses the
// same derivation as the write path and emits no notifications: utilization
// does not change when only the calendar moves.
func (s *purchaseOrderService) RefreshStatuses(ctx context.Context) (int, error) {
	pos, err := s.poRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch purchase orders: %w", err)
	}

	today := time.Now()
	updated := 0
	for i := range pos {
		po := &pos[i]
		status, deriveErr := model.DeriveStatus(po.TotalAmount, po.RemainingBalance(), po.ValidUntil, today)
		if deriveErr != nil {
			log.Printf("skipping PO %s during status refresh: %v", po.PONumber, deriveErr)
			continue
		}
		if status == po.Status {
			continue
		}
		po.Status = status
		if updateErr := s.poRepo.Update(ctx, po); updateErr != nil {
			return updated, fmt.Errorf("failed to refresh PO %s: %w", po.PONumber, updateErr)
		}
		s.propagateAccountStatus(ctx, po)
		updated++
	}
	return updated, nil
}

// --- Notification engine ---

// emitThresholdNotifications creates one notification per threshold crossed
// between the old and new utilization. The insert is guarded by the composite
// unique index, never by a prior existence check: under concurrent writers
// both may detect the same crossing, and the loser's insert lands as an
// ON CONFLICT no-op that leaves the enclosing transaction intact. Crossings
// are one-way; a later spend reduction does not retract anything.
func (s *purchaseOrderService) emitThresholdNotifications(ctx context.Context, po *model.PurchaseOrder, oldUtilization decimal.Decimal) ([]model.POBalanceNotification, error) {
	newUtilization, err := po.UtilizationPercent()
	if err != nil {
		return nil, validationErr("total_amount", err.Error())
	}

	var created []model.POBalanceNotification
	for _, threshold := range model.NotificationThresholds {
		t := decimal.NewFromInt(int64(threshold))
		if !(oldUtilization.LessThan(t) && newUtilization.GreaterThanOrEqual(t)) {
			continue
		}

		notification := model.POBalanceNotification{
			PurchaseOrderID:    po.ID,
			ThresholdPercent:   threshold,
			UtilizationPercent: newUtilization.Round(2),
			RemainingBalance:   po.RemainingBalance(),
		}
		inserted, createErr := s.notificationRepo.Create(ctx, &notification)
		if createErr != nil {
			return nil, fmt.Errorf("failed to create %d%% notification for PO %s: %w", threshold, po.PONumber, createErr)
		}
		if !inserted {
			// A concurrent writer got there first.
			log.Printf("debug: %d%% notification for PO %s already exists, skipping", threshold, po.PONumber)
			continue
		}
		created = append(created, notification)
	}
	return created, nil
}

// afterWrite runs the best-effort side effects once the PO transaction has
// committed: account status propagation and live dashboard broadcast. Neither
// may fail the caller's request.
func (s *purchaseOrderService) afterWrite(ctx context.Context, po *model.PurchaseOrder, created []model.POBalanceNotification) {
	s.propagateAccountStatus(ctx, po)

	if s.hub == nil {
		return
	}
	for i := range created {
		n := &created[i]
		s.hub.NotifyBalanceAlert(ws.BalanceAlert{
			PurchaseOrderID:    n.PurchaseOrderID.String(),
			PONumber:           po.PONumber,
			ThresholdPercent:   n.ThresholdPercent,
			UtilizationPercent: n.UtilizationPercent.StringFixed(2),
			RemainingBalance:   n.RemainingBalance.StringFixed(2),
			Severity:           n.Severity(),
			Message:            n.Message(po.PONumber),
		})
	}
}

// propagateAccountStatus cascades the PO change to the owning account.
// Deliberately a separate failure domain: the PO write has already been
// reported durable, so a failed cascade is logged and dropped.
func (s *purchaseOrderService) propagateAccountStatus(ctx context.Context, po *model.PurchaseOrder) {
	s.refreshAccount(ctx, po.AccountID, po.PONumber)
}

func (s *purchaseOrderService) refreshAccount(ctx context.Context, accountID *uuid.UUID, poNumber string) {
	if accountID == nil || s.accounts == nil {
		return
	}
	if err := s.accounts.UpdateAccountStatus(ctx, accountID.String()); err != nil {
		log.Printf("account status propagation failed for PO %s (account %s): %v", poNumber, accountID, err)
	}
}

// --- Notifications API ---

func (s *purchaseOrderService) ListNotifications(ctx context.Context, filter NotificationFilter) ([]NotificationResponse, int64, error) {
	repoFilter := repository.NotificationListFilter{
		UnreadOnly: filter.UnreadOnly,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}
	if repoFilter.Page <= 0 {
		repoFilter.Page = 1
	}
	if repoFilter.Limit <= 0 {
		repoFilter.Limit = 20
	}
	if filter.PurchaseOrderID != "" {
		parsed, err := uuid.Parse(filter.PurchaseOrderID)
		if err != nil {
			return nil, 0, validationErr("purchase_order_id", "invalid uuid")
		}
		repoFilter.PurchaseOrderID = &parsed
	}

	notifications, total, err := s.notificationRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	result := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		result = append(result, toNotificationResponse(&notifications[i]))
	}
	return result, total, nil
}

func (s *purchaseOrderService) MarkNotificationRead(ctx context.Context, id string) error {
	notificationID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotificationNotFound
	}
	if err := s.notificationRepo.MarkRead(ctx, notificationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *purchaseOrderService) MarkAllNotificationsRead(ctx context.Context, poID string) (int64, error) {
	var filterID *uuid.UUID
	if poID != "" {
		parsed, err := uuid.Parse(poID)
		if err != nil {
			return 0, validationErr("purchase_order_id", "invalid uuid")
		}
		filterID = &parsed
	}
	count, err := s.notificationRepo.MarkAllRead(ctx, filterID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return count, nil
}

// --- Helpers ---

// generatePONumber builds PO-<CODE>-<YEAR>-<SUFFIX> from the first three
// letters of the customer name, retrying with a counter suffix on collision.
func (s *purchaseOrderService) generatePONumber(ctx context.Context, customerName string) (string, error) {
	code := "PO"
	trimmed := strings.ToUpper(strings.ReplaceAll(customerName, " ", ""))
	if len(trimmed) >= 3 {
		code = trimmed[:3]
	} else if trimmed != "" {
		code = trimmed
	}

	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	base := fmt.Sprintf("PO-%s-%d-%s", code, time.Now().Year(), suffix)

	poNumber := base
	for counter := 1; ; counter++ {
		exists, err := s.poRepo.ExistsByNumber(ctx, poNumber)
		if err != nil {
			return "", err
		}
		if !exists {
			return poNumber, nil
		}
		poNumber = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (s *purchaseOrderService) audit(ctx context.Context, userID uuid.UUID, action string, po *model.PurchaseOrder, details map[string]interface{}) {
	payload := ""
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			payload = string(raw)
		}
	}
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   po.ID.String(),
		EntityName: po.PONumber,
		Details:    payload,
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		log.Printf("failed to write audit entry for PO %s: %v", po.PONumber, err)
	}
}

func (s *purchaseOrderService) toResponse(ctx context.Context, po *model.PurchaseOrder) PurchaseOrderResponse {
	utilization := decimal.Zero
	if u, err := po.UtilizationPercent(); err == nil {
		utilization = u
	}

	resp := PurchaseOrderResponse{
		ID:                 po.ID.String(),
		PONumber:           po.PONumber,
		CustomerID:         po.CustomerID.String(),
		TotalAmount:        po.TotalAmount.StringFixed(2),
		SpentAmount:        po.SpentAmount.StringFixed(2),
		RemainingBalance:   po.RemainingBalance().StringFixed(2),
		UtilizationPercent: utilization.StringFixed(2),
		Currency:           po.Currency,
		ValidFrom:          po.ValidFrom.Format("2006-01-02"),
		ValidUntil:         po.ValidUntil.Format("2006-01-02"),
		DaysUntilExpiry:    po.DaysUntilExpiry(time.Now()),
		Status:             po.Status,
		Department:         po.Department,
		ProjectCode:        po.ProjectCode,
		ItemsDescription:   po.ItemsDescription,
		DeliveryTerms:      po.DeliveryTerms,
		PaymentTerms:       po.PaymentTerms,
		ReferenceNumber:    po.ReferenceNumber,
		Notes:              po.Notes,
		CreatedBy:          po.CreatedBy.String(),
		CreatedAt:          po.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          po.UpdatedAt.Format(time.RFC3339),
	}

	if po.Customer != nil {
		resp.CustomerName = po.Customer.Name
	}
	if po.AccountID != nil {
		id := po.AccountID.String()
		resp.AccountID = &id
	}
	if po.Account != nil {
		resp.AccountName = po.Account.Name
	}
	return resp
}

func toNotificationResponse(n *model.POBalanceNotification) NotificationResponse {
	poNumber := ""
	if n.PurchaseOrder != nil {
		poNumber = n.PurchaseOrder.PONumber
	}
	return NotificationResponse{
		ID:                 n.ID.String(),
		PurchaseOrderID:    n.PurchaseOrderID.String(),
		PONumber:           poNumber,
		ThresholdPercent:   n.ThresholdPercent,
		UtilizationPercent: n.UtilizationPercent.StringFixed(2),
		RemainingBalance:   n.RemainingBalance.StringFixed(2),
		Severity:           n.Severity(),
		Message:            n.Message(poNumber),
		IsRead:             n.IsRead,
		CreatedAt:          n.CreatedAt.Format(time.RFC3339),
	}
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
