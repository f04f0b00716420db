package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingCycle enum constants
const (
	CycleWeekly     = "weekly"
	CycleMonthly    = "monthly"
	CycleBiMonthly  = "bi_monthly"
	CycleQuarterly  = "quarterly"
	CycleBiAnnually = "bi_annually"
	CycleAnnually   = "annually"
)

// Account status enum constants
const (
	AccountStatusActive       = "active"
	AccountStatusInactive     = "inactive"
	AccountStatusMissingPO    = "missing_po"
	AccountStatusLowPOBalance = "low_po_balance"
)

// Customer is the top-level brand/client entity owning accounts and POs
type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Email     string    `gorm:"type:varchar(255);not null" json:"email"`
	Phone     string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Address   string    `gorm:"type:text" json:"address,omitempty"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Account is a customer's billable unit (one per region/entity). Its status
// is derived from the state of its purchase orders and is recomputed after
// every PO write that touches the account.
type Account struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer   *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`

	Name      string `gorm:"type:varchar(200);not null" json:"name"`
	AccountID string `gorm:"type:varchar(100);uniqueIndex;not null" json:"account_id"`

	Region      string `gorm:"type:varchar(100)" json:"region,omitempty"`
	CountryCode string `gorm:"type:varchar(3)" json:"country_code,omitempty"`

	BillingCycle string `gorm:"type:varchar(20);not null;default:'monthly'" json:"billing_cycle"`
	Currency     string `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	Status         string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	LastBillingRun *time.Time `gorm:"type:date" json:"last_billing_run,omitempty"`

	ContactEmail string `gorm:"type:varchar(255)" json:"contact_email,omitempty"`
	ContactPhone string `gorm:"type:varchar(20)" json:"contact_phone,omitempty"`
	Notes        string `gorm:"type:text" json:"notes,omitempty"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ValidBillingCycle reports whether the given cycle is a known configuration.
func ValidBillingCycle(cycle string) bool {
	switch cycle {
	case CycleWeekly, CycleMonthly, CycleBiMonthly, CycleQuarterly, CycleBiAnnually, CycleAnnually:
		return true
	}
	return false
}
