package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// POListFilter narrows List results
type POListFilter struct {
	Status     string
	CustomerID *uuid.UUID
	AccountID  *uuid.UUID
	PONumber   string // partial match
	Page       int
	Limit      int
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *model.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	List(ctx context.Context, filter POListFilter) ([]model.PurchaseOrder, int64, error)
	ListAll(ctx context.Context) ([]model.PurchaseOrder, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, status string) ([]model.PurchaseOrder, error)
	Update(ctx context.Context, po *model.PurchaseOrder) error
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsByNumber(ctx context.Context, poNumber string) (bool, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) Create(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Create(po).Error
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := GetDB(ctx, r.db).First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var po model.PurchaseOrder
	if err := GetDB(ctx, r.db).Preload("Customer").Preload("Account").First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, filter POListFilter) ([]model.PurchaseOrder, int64, error) {
	var pos []model.PurchaseOrder
	var total int64

	db := GetDB(ctx, r.db)
	applyFilter := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.CustomerID != nil {
			q = q.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.AccountID != nil {
			q = q.Where("account_id = ?", *filter.AccountID)
		}
		if filter.PONumber != "" {
			q = q.Where("po_number LIKE ?", "%"+filter.PONumber+"%")
		}
		return q
	}

	if err := applyFilter(db.Model(&model.PurchaseOrder{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := applyFilter(db.Preload("Customer").Preload("Account"))
	if err := query.Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&pos).Error; err != nil {
		return nil, 0, err
	}

	return pos, total, nil
}

func (r *purchaseOrderRepository) ListAll(ctx context.Context) ([]model.PurchaseOrder, error) {
	var pos []model.PurchaseOrder
	if err := GetDB(ctx, r.db).Order("created_at desc").Find(&pos).Error; err != nil {
		return nil, err
	}
	return pos, nil
}

func (r *purchaseOrderRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, status string) ([]model.PurchaseOrder, error) {
	var pos []model.PurchaseOrder
	query := GetDB(ctx, r.db).Where("account_id = ?", accountID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at desc").Find(&pos).Error; err != nil {
		return nil, err
	}
	return pos, nil
}

func (r *purchaseOrderRepository) Update(ctx context.Context, po *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Save(po).Error
}

func (r *purchaseOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.PurchaseOrder{}, "id = ?", id).Error
}

func (r *purchaseOrderRepository) ExistsByNumber(ctx context.Context, poNumber string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Where("po_number = ?", poNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
