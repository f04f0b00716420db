package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BillingLineItemRequest struct {
	Description     string `json:"description" binding:"required"`
	Quantity        string `json:"quantity"`
	UnitRate        string `json:"unit_rate" binding:"required"`
	TicketReference string `json:"ticket_reference"`
	WorkDate        string `json:"work_date"`
	Category        string `json:"category"`
}

type CreateBillingRunRequest struct {
	PurchaseOrderID  string                   `json:"purchase_order_id" binding:"required"`
	Amount           string                   `json:"amount"` // required unless line items are given
	BillingDate      string                   `json:"billing_date" binding:"required"`
	BillingStartDate string                   `json:"billing_start_date"`
	BillingEndDate   string                   `json:"billing_end_date"`
	BillingType      string                   `json:"billing_type"`
	TicketsCount     int                      `json:"tickets_count"`
	RateCardID       string                   `json:"rate_card_id"`
	Notes            string                   `json:"notes"`
	LineItems        []BillingLineItemRequest `json:"line_items"`
}

type BillingRunListQuery struct {
	Status          string
	CustomerID      string
	PurchaseOrderID string
	Page            int
	Limit           int
}

type BillingRunResponse struct {
	ID           string                  `json:"id"`
	RunID        string                  `json:"run_id"`
	CustomerID   string                  `json:"customer_id"`
	CustomerName string                  `json:"customer_name,omitempty"`
	AccountID    *string                 `json:"account_id,omitempty"`
	POID         string                  `json:"purchase_order_id"`
	PONumber     string                  `json:"po_number,omitempty"`
	Amount       string                  `json:"amount"`
	BillingDate  string                  `json:"billing_date"`
	PeriodStart  string                  `json:"billing_start_date,omitempty"`
	PeriodEnd    string                  `json:"billing_end_date,omitempty"`
	Status       string                  `json:"status"`
	BillingType  string                  `json:"billing_type"`
	ProcessedBy  string                  `json:"processed_by"`
	ProcessedAt  string                  `json:"processed_at,omitempty"`
	TicketsCount int                     `json:"tickets_count"`
	Notes        string                  `json:"notes,omitempty"`
	LineItems    []BillingLineItemDetail `json:"line_items,omitempty"`
	CreatedAt    string                  `json:"created_at"`
}

type BillingLineItemDetail struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	Quantity        string `json:"quantity"`
	UnitRate        string `json:"unit_rate"`
	TotalAmount     string `json:"total_amount"`
	TicketReference string `json:"ticket_reference,omitempty"`
	WorkDate        string `json:"work_date,omitempty"`
	Category        string `json:"category,omitempty"`
}

type BillingService interface {
	CreateBillingRun(ctx context.Context, req CreateBillingRunRequest, userID string) (BillingRunResponse, error)
	GetBillingRun(ctx context.Context, id string) (BillingRunResponse, error)
	ListBillingRuns(ctx context.Context, query BillingRunListQuery) ([]BillingRunResponse, int64, error)
	CompleteBillingRun(ctx context.Context, id string, userID string) (BillingRunResponse, error)
	CancelBillingRun(ctx context.Context, id string, userID string) (BillingRunResponse, error)
}

type billingService struct {
	runRepo     repository.BillingRunRepository
	poRepo      repository.PurchaseOrderRepository
	accountRepo repository.AccountRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	poService   PurchaseOrderService
}

func NewBillingService(
	runRepo repository.BillingRunRepository,
	poRepo repository.PurchaseOrderRepository,
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	poService PurchaseOrderService,
) BillingService {
	return &billingService{
		runRepo:     runRepo,
		poRepo:      poRepo,
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		poService:   poService,
	}
}

func (s *billingService) CreateBillingRun(ctx context.Context, req CreateBillingRunRequest, userID string) (BillingRunResponse, error) {
	poID, err := uuid.Parse(req.PurchaseOrderID)
	if err != nil {
		return BillingRunResponse{}, validationErr("purchase_order_id", "invalid uuid")
	}
	processorID, err := uuid.Parse(userID)
	if err != nil {
		return BillingRunResponse{}, validationErr("user_id", "invalid uuid")
	}

	po, err := s.poRepo.FindByID(ctx, poID)
	if err != nil {
		return BillingRunResponse{}, ErrPONotFound
	}
	if !po.CanBeBilled() {
		return BillingRunResponse{}, validationErr("purchase_order_id",
			fmt.Sprintf("PO %s cannot be billed in status %s", po.PONumber, po.Status))
	}

	billingDate, err := parseDate(req.BillingDate)
	if err != nil {
		return BillingRunResponse{}, validationErr("billing_date", "expected YYYY-MM-DD")
	}

	var periodStart, periodEnd *time.Time
	if req.BillingStartDate != "" {
		parsed, parseErr := parseDate(req.BillingStartDate)
		if parseErr != nil {
			return BillingRunResponse{}, validationErr("billing_start_date", "expected YYYY-MM-DD")
		}
		periodStart = &parsed
	}
	if req.BillingEndDate != "" {
		parsed, parseErr := parseDate(req.BillingEndDate)
		if parseErr != nil {
			return BillingRunResponse{}, validationErr("billing_end_date", "expected YYYY-MM-DD")
		}
		periodEnd = &parsed
	}
	if periodStart != nil && periodEnd != nil && periodStart.After(*periodEnd) {
		return BillingRunResponse{}, validationErr("billing_start_date", "must not be after billing_end_date")
	}

	billingType := req.BillingType
	if billingType == "" {
		billingType = model.BillingTypeManual
	}
	switch billingType {
	case model.BillingTypeManual, model.BillingTypeWizard, model.BillingTypeAutomated:
	default:
		return BillingRunResponse{}, validationErr("billing_type", "unknown billing type")
	}

	lineItems, lineTotal, err := buildLineItems(req.LineItems)
	if err != nil {
		return BillingRunResponse{}, err
	}

	amount := lineTotal
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			return BillingRunResponse{}, validationErr("amount", "invalid decimal value")
		}
		if len(lineItems) > 0 && !amount.Equal(lineTotal) {
			return BillingRunResponse{}, validationErr("amount", "does not match the line item total")
		}
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return BillingRunResponse{}, validationErr("amount", "must be greater than zero")
	}
	if amount.GreaterThan(po.RemainingBalance()) {
		return BillingRunResponse{}, validationErr("amount",
			fmt.Sprintf("exceeds PO %s remaining balance of %s", po.PONumber, po.RemainingBalance().StringFixed(2)))
	}

	var rateCardID *uuid.UUID
	if req.RateCardID != "" {
		parsed, parseErr := uuid.Parse(req.RateCardID)
		if parseErr != nil {
			return BillingRunResponse{}, validationErr("rate_card_id", "invalid uuid")
		}
		rateCardID = &parsed
	}

	runID, err := s.generateRunID(ctx)
	if err != nil {
		return BillingRunResponse{}, fmt.Errorf("failed to generate run id: %w", err)
	}

	run := model.BillingRun{
		RunID:            runID,
		CustomerID:       po.CustomerID,
		AccountID:        po.AccountID,
		PurchaseOrderID:  po.ID,
		Amount:           amount.Round(2),
		BillingDate:      billingDate,
		BillingStartDate: periodStart,
		BillingEndDate:   periodEnd,
		Status:           model.RunStatusPending,
		BillingType:      billingType,
		ProcessedBy:      processorID,
		TicketsCount:     req.TicketsCount,
		RateCardID:       rateCardID,
		Notes:            req.Notes,
		LineItems:        lineItems,
	}
	if err := s.runRepo.Create(ctx, &run); err != nil {
		return BillingRunResponse{}, fmt.Errorf("failed to create billing run: %w", err)
	}
	run.PurchaseOrder = po

	s.logAction(ctx, processorID, model.ActionCreateBillingRun, &run)
	return toBillingRunResponse(&run), nil
}

func (s *billingService) GetBillingRun(ctx context.Context, id string) (BillingRunResponse, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return BillingRunResponse{}, ErrBillingRunNotFound
	}
	run, err := s.runRepo.FindByIDWithRelations(ctx, runID)
	if err != nil {
		return BillingRunResponse{}, ErrBillingRunNotFound
	}
	return toBillingRunResponse(run), nil
}

func (s *billingService) ListBillingRuns(ctx context.Context, query BillingRunListQuery) ([]BillingRunResponse, int64, error) {
	filter := repository.BillingRunListFilter{
		Status: query.Status,
		Page:   query.Page,
		Limit:  query.Limit,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if query.CustomerID != "" {
		parsed, err := uuid.Parse(query.CustomerID)
		if err != nil {
			return nil, 0, validationErr("customer_id", "invalid uuid")
		}
		filter.CustomerID = &parsed
	}
	if query.PurchaseOrderID != "" {
		parsed, err := uuid.Parse(query.PurchaseOrderID)
		if err != nil {
			return nil, 0, validationErr("purchase_order_id", "invalid uuid")
		}
		filter.PurchaseOrderID = &parsed
	}

	runs, total, err := s.runRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch billing runs: %w", err)
	}

	result := make([]BillingRunResponse, 0, len(runs))
	for i := range runs {
		result = append(result, toBillingRunResponse(&runs[i]))
	}
	return result, total, nil
}

// CompleteBillingRun records the run's amount as spend on the PO and marks the
// run completed. Spend and status flip share one transaction (RecordSpend
// nests via SAVEPOINT), so a failure after the spend rolls both back and the
// run stays pending and completable without double-charging the PO. Only a
// rejected spend parks the run as failed.
func (s *billingService) CompleteBillingRun(ctx context.Context, id string, userID string) (BillingRunResponse, error) {
	runUUID, err := uuid.Parse(id)
	if err != nil {
		return BillingRunResponse{}, ErrBillingRunNotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return BillingRunResponse{}, validationErr("user_id", "invalid uuid")
	}

	run, err := s.runRepo.FindByID(ctx, runUUID)
	if err != nil {
		return BillingRunResponse{}, ErrBillingRunNotFound
	}
	if !run.CanBeProcessed() {
		return BillingRunResponse{}, validationErr("status",
			fmt.Sprintf("billing run %s cannot be completed in status %s", run.RunID, run.Status))
	}

	var spendErr error
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		po, findErr := s.poRepo.FindByID(txCtx, run.PurchaseOrderID)
		if findErr != nil {
			return ErrPONotFound
		}

		newSpent := po.SpentAmount.Add(run.Amount)
		if _, recordErr := s.poService.RecordSpend(txCtx, po.ID.String(), RecordSpendRequest{
			SpentAmount: newSpent.StringFixed(2),
		}, userID); recordErr != nil {
			spendErr = recordErr
			return recordErr
		}

		now := time.Now()
		run.Status = model.RunStatusCompleted
		run.ProcessedBy = actorID
		run.ProcessedAt = &now
		return s.runRepo.Update(txCtx, run)
	})
	if err != nil {
		if spendErr != nil {
			run.Status = model.RunStatusFailed
			run.ProcessedAt = nil
			if updateErr := s.runRepo.Update(ctx, run); updateErr != nil {
				log.Printf("failed to mark billing run %s failed: %v", run.RunID, updateErr)
			}
			return BillingRunResponse{}, fmt.Errorf("failed to record spend for billing run %s: %w", run.RunID, spendErr)
		}
		return BillingRunResponse{}, fmt.Errorf("failed to complete billing run: %w", err)
	}

	if run.AccountID != nil {
		if account, findErr := s.accountRepo.FindByID(ctx, *run.AccountID); findErr == nil {
			account.LastBillingRun = &run.BillingDate
			if updateErr := s.accountRepo.Update(ctx, account); updateErr != nil {
				log.Printf("failed to stamp last billing run on account %s: %v", account.AccountID, updateErr)
			}
		}
	}

	s.logAction(ctx, actorID, model.ActionCompleteBillingRun, run)
	return toBillingRunResponse(run), nil
}

func (s *billingService) CancelBillingRun(ctx context.Context, id string, userID string) (BillingRunResponse, error) {
	runUUID, err := uuid.Parse(id)
	if err != nil {
		return BillingRunResponse{}, ErrBillingRunNotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return BillingRunResponse{}, validationErr("user_id", "invalid uuid")
	}

	run, err := s.runRepo.FindByID(ctx, runUUID)
	if err != nil {
		return BillingRunResponse{}, ErrBillingRunNotFound
	}
	if !run.CanBeCancelled() {
		return BillingRunResponse{}, validationErr("status",
			fmt.Sprintf("billing run %s cannot be cancelled in status %s", run.RunID, run.Status))
	}

	run.Status = model.RunStatusCancelled
	if err := s.runRepo.Update(ctx, run); err != nil {
		return BillingRunResponse{}, fmt.Errorf("failed to cancel billing run: %w", err)
	}

	s.logAction(ctx, actorID, model.ActionCancelBillingRun, run)
	return toBillingRunResponse(run), nil
}

// generateRunID builds BR-<YYYYMMDD>-<sequence> from today's run count.
func (s *billingService) generateRunID(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("BR-%s", time.Now().Format("20060102"))
	count, err := s.runRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", prefix, count+1), nil
}

func buildLineItems(reqs []BillingLineItemRequest) ([]model.BillingRunLineItem, decimal.Decimal, error) {
	items := make([]model.BillingRunLineItem, 0, len(reqs))
	total := decimal.Zero
	for i, req := range reqs {
		quantity := decimal.NewFromInt(1)
		if req.Quantity != "" {
			parsed, err := decimal.NewFromString(req.Quantity)
			if err != nil || parsed.LessThanOrEqual(decimal.Zero) {
				return nil, decimal.Zero, validationErr(fmt.Sprintf("line_items[%d].quantity", i), "must be a positive decimal")
			}
			quantity = parsed
		}
		unitRate, err := decimal.NewFromString(req.UnitRate)
		if err != nil || unitRate.IsNegative() {
			return nil, decimal.Zero, validationErr(fmt.Sprintf("line_items[%d].unit_rate", i), "must be a non-negative decimal")
		}

		item := model.BillingRunLineItem{
			Description:     req.Description,
			Quantity:        quantity,
			UnitRate:        unitRate,
			TotalAmount:     quantity.Mul(unitRate).Round(2),
			TicketReference: req.TicketReference,
			Category:        req.Category,
		}
		if req.WorkDate != "" {
			parsed, parseErr := parseDate(req.WorkDate)
			if parseErr != nil {
				return nil, decimal.Zero, validationErr(fmt.Sprintf("line_items[%d].work_date", i), "expected YYYY-MM-DD")
			}
			item.WorkDate = &parsed
		}
		total = total.Add(item.TotalAmount)
		items = append(items, item)
	}
	return items, total, nil
}

func (s *billingService) logAction(ctx context.Context, userID uuid.UUID, action string, run *model.BillingRun) {
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   run.ID.String(),
		EntityName: run.RunID,
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		log.Printf("failed to write audit entry for billing run %s: %v", run.RunID, err)
	}
}

func toBillingRunResponse(run *model.BillingRun) BillingRunResponse {
	resp := BillingRunResponse{
		ID:           run.ID.String(),
		RunID:        run.RunID,
		CustomerID:   run.CustomerID.String(),
		POID:         run.PurchaseOrderID.String(),
		Amount:       run.Amount.StringFixed(2),
		BillingDate:  run.BillingDate.Format("2006-01-02"),
		Status:       run.Status,
		BillingType:  run.BillingType,
		ProcessedBy:  run.ProcessedBy.String(),
		TicketsCount: run.TicketsCount,
		Notes:        run.Notes,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
	}
	if run.Customer != nil {
		resp.CustomerName = run.Customer.Name
	}
	if run.AccountID != nil {
		id := run.AccountID.String()
		resp.AccountID = &id
	}
	if run.PurchaseOrder != nil {
		resp.PONumber = run.PurchaseOrder.PONumber
	}
	if run.BillingStartDate != nil {
		resp.PeriodStart = run.BillingStartDate.Format("2006-01-02")
	}
	if run.BillingEndDate != nil {
		resp.PeriodEnd = run.BillingEndDate.Format("2006-01-02")
	}
	if run.ProcessedAt != nil {
		resp.ProcessedAt = run.ProcessedAt.Format(time.RFC3339)
	}
	for i := range run.LineItems {
		li := &run.LineItems[i]
		detail := BillingLineItemDetail{
			ID:              li.ID.String(),
			Description:     li.Description,
			Quantity:        li.Quantity.String(),
			UnitRate:        li.UnitRate.String(),
			TotalAmount:     li.TotalAmount.StringFixed(2),
			TicketReference: li.TicketReference,
			Category:        li.Category,
		}
		if li.WorkDate != nil {
			detail.WorkDate = li.WorkDate.Format("2006-01-02")
		}
		resp.LineItems = append(resp.LineItems, detail)
	}
	return resp
}
