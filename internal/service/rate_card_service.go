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

type ServiceRateRequest struct {
	Category             string `json:"category" binding:"required"`
	Region               string `json:"region"`
	RateType             string `json:"rate_type"`
	RateValue            string `json:"rate_value" binding:"required"`
	AfterHoursMultiplier string `json:"after_hours_multiplier"`
	WeekendMultiplier    string `json:"weekend_multiplier"`
	TravelCharge         string `json:"travel_charge"`
	Remarks              string `json:"remarks"`
}

type CreateRateCardRequest struct {
	CustomerID   string               `json:"customer_id" binding:"required"`
	Region       string               `json:"region"`
	Country      string               `json:"country"`
	Supplier     string               `json:"supplier"`
	Currency     string               `json:"currency"`
	Entity       string               `json:"entity"`
	PaymentTerms string               `json:"payment_terms"`
	Status       string               `json:"status"`
	ServiceRates []ServiceRateRequest `json:"service_rates"`
}

type UpdateRateCardRequest struct {
	Region       *string              `json:"region"`
	Country      *string              `json:"country"`
	Supplier     *string              `json:"supplier"`
	Entity       *string              `json:"entity"`
	PaymentTerms *string              `json:"payment_terms"`
	Status       *string              `json:"status"`
	ServiceRates []ServiceRateRequest `json:"service_rates"` // full replacement when present
}

type ServiceRateDetail struct {
	ID                   string `json:"id"`
	Category             string `json:"category"`
	Region               string `json:"region,omitempty"`
	RateType             string `json:"rate_type"`
	RateValue            string `json:"rate_value"`
	AfterHoursMultiplier string `json:"after_hours_multiplier,omitempty"`
	WeekendMultiplier    string `json:"weekend_multiplier,omitempty"`
	TravelCharge         string `json:"travel_charge"`
	Remarks              string `json:"remarks,omitempty"`
}

type RateCardResponse struct {
	ID           string              `json:"id"`
	CustomerID   string              `json:"customer_id"`
	CustomerName string              `json:"customer_name,omitempty"`
	Region       string              `json:"region,omitempty"`
	Country      string              `json:"country,omitempty"`
	Supplier     string              `json:"supplier,omitempty"`
	Currency     string              `json:"currency"`
	Entity       string              `json:"entity,omitempty"`
	PaymentTerms string              `json:"payment_terms,omitempty"`
	Status       string              `json:"status"`
	ServiceRates []ServiceRateDetail `json:"service_rates,omitempty"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
}

type RateCardService interface {
	CreateRateCard(ctx context.Context, req CreateRateCardRequest, userID string) (RateCardResponse, error)
	GetRateCard(ctx context.Context, id string) (RateCardResponse, error)
	ListRateCards(ctx context.Context, customerID, status string, page, limit int) ([]RateCardResponse, int64, error)
	UpdateRateCard(ctx context.Context, id string, req UpdateRateCardRequest, userID string) (RateCardResponse, error)
	DeleteRateCard(ctx context.Context, id string) error
}

type rateCardService struct {
	rateCardRepo repository.RateCardRepository
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditRepository
}

func NewRateCardService(
	rateCardRepo repository.RateCardRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditRepository,
) RateCardService {
	return &rateCardService{
		rateCardRepo: rateCardRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
	}
}

func (s *rateCardService) CreateRateCard(ctx context.Context, req CreateRateCardRequest, userID string) (RateCardResponse, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return RateCardResponse{}, validationErr("customer_id", "invalid uuid")
	}
	if _, err := s.customerRepo.FindByID(ctx, customerID); err != nil {
		return RateCardResponse{}, ErrCustomerNotFound
	}
	creatorID, err := uuid.Parse(userID)
	if err != nil {
		return RateCardResponse{}, validationErr("user_id", "invalid uuid")
	}

	status := req.Status
	if status == "" {
		status = model.RateCardActive
	}
	if !validRateCardStatus(status) {
		return RateCardResponse{}, validationErr("status", "unknown rate card status")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	rates, err := buildServiceRates(req.ServiceRates)
	if err != nil {
		return RateCardResponse{}, err
	}

	card := model.RateCard{
		CustomerID:   customerID,
		Region:       req.Region,
		Country:      req.Country,
		Supplier:     req.Supplier,
		Currency:     currency,
		Entity:       req.Entity,
		PaymentTerms: req.PaymentTerms,
		Status:       status,
		ServiceRates: rates,
		CreatedBy:    creatorID,
	}
	if err := s.rateCardRepo.Create(ctx, &card); err != nil {
		return RateCardResponse{}, fmt.Errorf("failed to create rate card: %w", err)
	}

	s.logAction(ctx, creatorID, model.ActionCreateRateCard, &card)
	return toRateCardResponse(&card), nil
}

func (s *rateCardService) GetRateCard(ctx context.Context, id string) (RateCardResponse, error) {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return RateCardResponse{}, ErrRateCardNotFound
	}
	card, err := s.rateCardRepo.FindByID(ctx, cardID)
	if err != nil {
		return RateCardResponse{}, ErrRateCardNotFound
	}
	return toRateCardResponse(card), nil
}

func (s *rateCardService) ListRateCards(ctx context.Context, customerID, status string, page, limit int) ([]RateCardResponse, int64, error) {
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

	cards, total, err := s.rateCardRepo.List(ctx, filterID, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch rate cards: %w", err)
	}

	result := make([]RateCardResponse, 0, len(cards))
	for i := range cards {
		result = append(result, toRateCardResponse(&cards[i]))
	}
	return result, total, nil
}

func (s *rateCardService) UpdateRateCard(ctx context.Context, id string, req UpdateRateCardRequest, userID string) (RateCardResponse, error) {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return RateCardResponse{}, ErrRateCardNotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return RateCardResponse{}, validationErr("user_id", "invalid uuid")
	}

	card, err := s.rateCardRepo.FindByID(ctx, cardID)
	if err != nil {
		return RateCardResponse{}, ErrRateCardNotFound
	}

	if req.Region != nil {
		card.Region = *req.Region
	}
	if req.Country != nil {
		card.Country = *req.Country
	}
	if req.Supplier != nil {
		card.Supplier = *req.Supplier
	}
	if req.Entity != nil {
		card.Entity = *req.Entity
	}
	if req.PaymentTerms != nil {
		card.PaymentTerms = *req.PaymentTerms
	}
	if req.Status != nil {
		if !validRateCardStatus(*req.Status) {
			return RateCardResponse{}, validationErr("status", "unknown rate card status")
		}
		card.Status = *req.Status
	}

	if err := s.rateCardRepo.Update(ctx, card); err != nil {
		return RateCardResponse{}, fmt.Errorf("failed to update rate card: %w", err)
	}

	if req.ServiceRates != nil {
		rates, buildErr := buildServiceRates(req.ServiceRates)
		if buildErr != nil {
			return RateCardResponse{}, buildErr
		}
		if err := s.rateCardRepo.ReplaceServiceRates(ctx, card.ID, rates); err != nil {
			return RateCardResponse{}, fmt.Errorf("failed to replace service rates: %w", err)
		}
		card, err = s.rateCardRepo.FindByID(ctx, card.ID)
		if err != nil {
			return RateCardResponse{}, fmt.Errorf("failed to reload rate card: %w", err)
		}
	}

	s.logAction(ctx, actorID, model.ActionUpdateRateCard, card)
	return toRateCardResponse(card), nil
}

func (s *rateCardService) DeleteRateCard(ctx context.Context, id string) error {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return ErrRateCardNotFound
	}
	if _, err := s.rateCardRepo.FindByID(ctx, cardID); err != nil {
		return ErrRateCardNotFound
	}
	if err := s.rateCardRepo.Delete(ctx, cardID); err != nil {
		return fmt.Errorf("failed to delete rate card: %w", err)
	}
	return nil
}

func validRateCardStatus(status string) bool {
	switch status {
	case model.RateCardActive, model.RateCardPending, model.RateCardInactive:
		return true
	}
	return false
}

func buildServiceRates(reqs []ServiceRateRequest) ([]model.ServiceRate, error) {
	rates := make([]model.ServiceRate, 0, len(reqs))
	for i, req := range reqs {
		rateType := req.RateType
		if rateType == "" {
			rateType = model.RateTypeHourly
		}
		switch rateType {
		case model.RateTypeHourly, model.RateTypeDay, model.RateTypeMonthly, model.RateTypeFixed:
		default:
			return nil, validationErr(fmt.Sprintf("service_rates[%d].rate_type", i), "unknown rate type")
		}

		rateValue, err := decimal.NewFromString(req.RateValue)
		if err != nil || rateValue.IsNegative() {
			return nil, validationErr(fmt.Sprintf("service_rates[%d].rate_value", i), "must be a non-negative decimal")
		}

		rate := model.ServiceRate{
			Category:  req.Category,
			Region:    req.Region,
			RateType:  rateType,
			RateValue: rateValue,
			Remarks:   req.Remarks,
		}
		if req.AfterHoursMultiplier != "" {
			parsed, parseErr := decimal.NewFromString(req.AfterHoursMultiplier)
			if parseErr != nil {
				return nil, validationErr(fmt.Sprintf("service_rates[%d].after_hours_multiplier", i), "invalid decimal value")
			}
			rate.AfterHoursMultiplier = &parsed
		}
		if req.WeekendMultiplier != "" {
			parsed, parseErr := decimal.NewFromString(req.WeekendMultiplier)
			if parseErr != nil {
				return nil, validationErr(fmt.Sprintf("service_rates[%d].weekend_multiplier", i), "invalid decimal value")
			}
			rate.WeekendMultiplier = &parsed
		}
		if req.TravelCharge != "" {
			parsed, parseErr := decimal.NewFromString(req.TravelCharge)
			if parseErr != nil || parsed.IsNegative() {
				return nil, validationErr(fmt.Sprintf("service_rates[%d].travel_charge", i), "must be a non-negative decimal")
			}
			rate.TravelCharge = parsed
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func (s *rateCardService) logAction(ctx context.Context, userID uuid.UUID, action string, card *model.RateCard) {
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   card.ID.String(),
		EntityName: fmt.Sprintf("%s/%s", card.Region, card.Country),
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		log.Printf("failed to write audit entry for rate card %s: %v", card.ID, err)
	}
}

func toRateCardResponse(card *model.RateCard) RateCardResponse {
	resp := RateCardResponse{
		ID:           card.ID.String(),
		CustomerID:   card.CustomerID.String(),
		Region:       card.Region,
		Country:      card.Country,
		Supplier:     card.Supplier,
		Currency:     card.Currency,
		Entity:       card.Entity,
		PaymentTerms: card.PaymentTerms,
		Status:       card.Status,
		CreatedAt:    card.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    card.UpdatedAt.Format(time.RFC3339),
	}
	if card.Customer != nil {
		resp.CustomerName = card.Customer.Name
	}
	for i := range card.ServiceRates {
		sr := &card.ServiceRates[i]
		detail := ServiceRateDetail{
			ID:           sr.ID.String(),
			Category:     sr.Category,
			Region:       sr.Region,
			RateType:     sr.RateType,
			RateValue:    sr.RateValue.StringFixed(2),
			TravelCharge: sr.TravelCharge.StringFixed(2),
			Remarks:      sr.Remarks,
		}
		if sr.AfterHoursMultiplier != nil {
			detail.AfterHoursMultiplier = sr.AfterHoursMultiplier.StringFixed(2)
		}
		if sr.WeekendMultiplier != nil {
			detail.WeekendMultiplier = sr.WeekendMultiplier.StringFixed(2)
		}
		resp.ServiceRates = append(resp.ServiceRates, detail)
	}
	return resp
}
