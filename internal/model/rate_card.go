package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateCard status enum constants
const (
	RateCardActive   = "Active"
	RateCardPending  = "Pending"
	RateCardInactive = "Inactive"
)

// ServiceRate rate type enum constants
const (
	RateTypeHourly  = "hourly"
	RateTypeDay     = "day"
	RateTypeMonthly = "monthly"
	RateTypeFixed   = "fixed"
)

// RateCard holds agreed pricing for a customer in a region/country
type RateCard struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer   *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`

	Region       string `gorm:"type:varchar(64)" json:"region,omitempty"`
	Country      string `gorm:"type:varchar(64)" json:"country,omitempty"`
	Supplier     string `gorm:"type:varchar(128)" json:"supplier,omitempty"`
	Currency     string `gorm:"type:varchar(8);not null;default:'USD'" json:"currency"`
	Entity       string `gorm:"type:varchar(128)" json:"entity,omitempty"`
	PaymentTerms string `gorm:"type:varchar(64)" json:"payment_terms,omitempty"`
	Status       string `gorm:"type:varchar(20);not null;default:'Active'" json:"status"`

	ServiceRates []ServiceRate `gorm:"foreignKey:RateCardID;constraint:OnDelete:CASCADE" json:"service_rates,omitempty"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (rc *RateCard) BeforeCreate(tx *gorm.DB) error {
	if rc.ID == uuid.Nil {
		rc.ID = uuid.New()
	}
	return nil
}

// ServiceRate is a single priced service category on a rate card
type ServiceRate struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RateCardID uuid.UUID `gorm:"type:uuid;not null;index" json:"rate_card_id"`

	Category string `gorm:"type:varchar(64);not null" json:"category"` // e.g. Dispatch, FTE, Scheduled Visit
	Region   string `gorm:"type:varchar(128)" json:"region,omitempty"`
	RateType string `gorm:"type:varchar(32);not null;default:'hourly'" json:"rate_type"`

	RateValue            decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"rate_value"`
	AfterHoursMultiplier *decimal.Decimal `gorm:"type:decimal(5,2)" json:"after_hours_multiplier,omitempty"`
	WeekendMultiplier    *decimal.Decimal `gorm:"type:decimal(5,2)" json:"weekend_multiplier,omitempty"`
	TravelCharge         decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"travel_charge"`
	Remarks              string           `gorm:"type:text" json:"remarks,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (sr *ServiceRate) BeforeCreate(tx *gorm.DB) error {
	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	return nil
}
