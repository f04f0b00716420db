package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingRunListFilter narrows List results
type BillingRunListFilter struct {
	Status          string
	CustomerID      *uuid.UUID
	PurchaseOrderID *uuid.UUID
	Page            int
	Limit           int
}

type BillingRunRepository interface {
	Create(ctx context.Context, run *model.BillingRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BillingRun, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.BillingRun, error)
	List(ctx context.Context, filter BillingRunListFilter) ([]model.BillingRun, int64, error)
	Update(ctx context.Context, run *model.BillingRun) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
}

type billingRunRepository struct {
	db *gorm.DB
}

func NewBillingRunRepository(db *gorm.DB) BillingRunRepository {
	return &billingRunRepository{db: db}
}

func (r *billingRunRepository) Create(ctx context.Context, run *model.BillingRun) error {
	return GetDB(ctx, r.db).Create(run).Error
}

func (r *billingRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.BillingRun, error) {
	var run model.BillingRun
	if err := GetDB(ctx, r.db).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *billingRunRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.BillingRun, error) {
	var run model.BillingRun
	err := GetDB(ctx, r.db).
		Preload("Customer").
		Preload("Account").
		Preload("PurchaseOrder").
		Preload("LineItems").
		First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *billingRunRepository) List(ctx context.Context, filter BillingRunListFilter) ([]model.BillingRun, int64, error) {
	var runs []model.BillingRun
	var total int64

	db := GetDB(ctx, r.db)
	applyFilter := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.CustomerID != nil {
			q = q.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.PurchaseOrderID != nil {
			q = q.Where("purchase_order_id = ?", *filter.PurchaseOrderID)
		}
		return q
	}

	if err := applyFilter(db.Model(&model.BillingRun{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := applyFilter(db.Preload("Customer").Preload("PurchaseOrder"))
	if err := query.Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

func (r *billingRunRepository) Update(ctx context.Context, run *model.BillingRun) error {
	return GetDB(ctx, r.db).Save(run).Error
}

func (r *billingRunRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.BillingRun{}).Where("run_id LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
