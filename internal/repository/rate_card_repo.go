package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RateCardRepository interface {
	Create(ctx context.Context, card *model.RateCard) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RateCard, error)
	List(ctx context.Context, customerID *uuid.UUID, status string, page, limit int) ([]model.RateCard, int64, error)
	Update(ctx context.Context, card *model.RateCard) error
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceServiceRates(ctx context.Context, cardID uuid.UUID, rates []model.ServiceRate) error
}

type rateCardRepository struct {
	db *gorm.DB
}

func NewRateCardRepository(db *gorm.DB) RateCardRepository {
	return &rateCardRepository{db: db}
}

func (r *rateCardRepository) Create(ctx context.Context, card *model.RateCard) error {
	return GetDB(ctx, r.db).Create(card).Error
}

func (r *rateCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RateCard, error) {
	var card model.RateCard
	if err := GetDB(ctx, r.db).Preload("Customer").Preload("ServiceRates").First(&card, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *rateCardRepository) List(ctx context.Context, customerID *uuid.UUID, status string, page, limit int) ([]model.RateCard, int64, error) {
	var cards []model.RateCard
	var total int64

	db := GetDB(ctx, r.db)
	applyFilter := func(q *gorm.DB) *gorm.DB {
		if customerID != nil {
			q = q.Where("customer_id = ?", *customerID)
		}
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	if err := applyFilter(db.Model(&model.RateCard{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	query := applyFilter(db.Preload("Customer").Preload("ServiceRates"))
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&cards).Error; err != nil {
		return nil, 0, err
	}

	return cards, total, nil
}

func (r *rateCardRepository) Update(ctx context.Context, card *model.RateCard) error {
	return GetDB(ctx, r.db).Save(card).Error
}

func (r *rateCardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.RateCard{}, "id = ?", id).Error
}

func (r *rateCardRepository) ReplaceServiceRates(ctx context.Context, cardID uuid.UUID, rates []model.ServiceRate) error {
	db := GetDB(ctx, r.db)
	if err := db.Delete(&model.ServiceRate{}, "rate_card_id = ?", cardID).Error; err != nil {
		return err
	}
	if len(rates) == 0 {
		return nil
	}
	for i := range rates {
		rates[i].RateCardID = cardID
	}
	return db.Create(&rates).Error
}
