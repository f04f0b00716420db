package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Code    string `json:"code" binding:"required"` // short unique identifier, e.g. ACME
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type UpdateCustomerRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	IsActive *bool   `json:"is_active"`
}

type CustomerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type CustomerService interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest, userID string) (CustomerResponse, error)
	GetCustomer(ctx context.Context, id string) (CustomerResponse, error)
	ListCustomers(ctx context.Context, activeOnly bool, page, limit int) ([]CustomerResponse, int64, error)
	UpdateCustomer(ctx context.Context, id string, req UpdateCustomerRequest, userID string) (CustomerResponse, error)
	DeleteCustomer(ctx context.Context, id string) error
}

type customerService struct {
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditRepository
}

func NewCustomerService(customerRepo repository.CustomerRepository, auditRepo repository.AuditRepository) CustomerService {
	return &customerService{customerRepo: customerRepo, auditRepo: auditRepo}
}

func (s *customerService) CreateCustomer(ctx context.Context, req CreateCustomerRequest, userID string) (CustomerResponse, error) {
	creatorID, err := uuid.Parse(userID)
	if err != nil {
		return CustomerResponse{}, validationErr("user_id", "invalid uuid")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return CustomerResponse{}, validationErr("code", "must not be blank")
	}
	if existing, findErr := s.customerRepo.FindByCode(ctx, code); findErr == nil && existing != nil {
		return CustomerResponse{}, validationErr("code", "already in use")
	}

	customer := model.Customer{
		Name:      strings.TrimSpace(req.Name),
		Code:      code,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		IsActive:  true,
		CreatedBy: creatorID,
	}
	if err := s.customerRepo.Create(ctx, &customer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return CustomerResponse{}, validationErr("code", "already in use")
		}
		return CustomerResponse{}, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logAction(ctx, creatorID, model.ActionCreateCustomer, &customer)
	return toCustomerResponse(&customer), nil
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (CustomerResponse, error) {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return CustomerResponse{}, ErrCustomerNotFound
	}
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return CustomerResponse{}, ErrCustomerNotFound
	}
	return toCustomerResponse(customer), nil
}

func (s *customerService) ListCustomers(ctx context.Context, activeOnly bool, page, limit int) ([]CustomerResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	customers, total, err := s.customerRepo.List(ctx, activeOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch customers: %w", err)
	}

	result := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		result = append(result, toCustomerResponse(&customers[i]))
	}
	return result, total, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, id string, req UpdateCustomerRequest, userID string) (CustomerResponse, error) {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return CustomerResponse{}, ErrCustomerNotFound
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return CustomerResponse{}, validationErr("user_id", "invalid uuid")
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return CustomerResponse{}, ErrCustomerNotFound
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Email != nil {
		customer.Email = *req.Email
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}
	if req.IsActive != nil {
		customer.IsActive = *req.IsActive
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return CustomerResponse{}, fmt.Errorf("failed to update customer: %w", err)
	}

	s.logAction(ctx, actorID, model.ActionUpdateCustomer, customer)
	return toCustomerResponse(customer), nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, id string) error {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return ErrCustomerNotFound
	}
	if _, err := s.customerRepo.FindByID(ctx, customerID); err != nil {
		return ErrCustomerNotFound
	}
	if err := s.customerRepo.Delete(ctx, customerID); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

func (s *customerService) logAction(ctx context.Context, userID uuid.UUID, action string, customer *model.Customer) {
	entry := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   customer.ID.String(),
		EntityName: customer.Code,
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		log.Printf("failed to write audit entry for customer %s: %v", customer.Code, err)
	}
}

func toCustomerResponse(customer *model.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        customer.ID.String(),
		Name:      customer.Name,
		Code:      customer.Code,
		Email:     customer.Email,
		Phone:     customer.Phone,
		Address:   customer.Address,
		IsActive:  customer.IsActive,
		CreatedAt: customer.CreatedAt.Format(time.RFC3339),
		UpdatedAt: customer.UpdatedAt.Format(time.RFC3339),
	}
}
