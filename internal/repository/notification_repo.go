package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationListFilter narrows List results
type NotificationListFilter struct {
	PurchaseOrderID *uuid.UUID
	UnreadOnly      bool
	Page            int
	Limit           int
}

type NotificationRepository interface {
	// Create inserts a notification row unless the (purchase_order, threshold)
	// pair already has one; returns false when the row was left untouched.
	Create(ctx context.Context, n *model.POBalanceNotification) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.POBalanceNotification, error)
	List(ctx context.Context, filter NotificationListFilter) ([]model.POBalanceNotification, int64, error)
	CountUnread(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, poID *uuid.UUID) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create relies on ON CONFLICT DO NOTHING rather than catching the unique
// violation: on postgres a constraint error aborts the whole transaction,
// which would poison the PO update sharing it.
func (r *notificationRepository) Create(ctx context.Context, n *model.POBalanceNotification) (bool, error) {
	result := GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "purchase_order_id"}, {Name: "threshold_percent"}},
		DoNothing: true,
	}).Create(n)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.POBalanceNotification, error) {
	var n model.POBalanceNotification
	if err := GetDB(ctx, r.db).Preload("PurchaseOrder").First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, filter NotificationListFilter) ([]model.POBalanceNotification, int64, error) {
	var notifications []model.POBalanceNotification
	var total int64

	db := GetDB(ctx, r.db)
	applyFilter := func(q *gorm.DB) *gorm.DB {
		if filter.PurchaseOrderID != nil {
			q = q.Where("purchase_order_id = ?", *filter.PurchaseOrderID)
		}
		if filter.UnreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}

	if err := applyFilter(db.Model(&model.POBalanceNotification{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	query := applyFilter(db.Preload("PurchaseOrder"))
	if err := query.Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.POBalanceNotification{}).Where("is_read = ?", false).Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Model(&model.POBalanceNotification{}).Where("id = ?", id).Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, poID *uuid.UUID) (int64, error) {
	query := GetDB(ctx, r.db).Model(&model.POBalanceNotification{}).Where("is_read = ?", false)
	if poID != nil {
		query = query.Where("purchase_order_id = ?", *poID)
	}
	result := query.Update("is_read", true)
	return result.RowsAffected, result.Error
}
