package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BillingRun status enum constants
const (
	RunStatusDraft      = "draft"
	RunStatusPending    = "pending"
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
)

// BillingType enum constants
const (
	BillingTypeManual    = "manual"
	BillingTypeWizard    = "wizard"
	BillingTypeAutomated = "automated"
)

// BillingRun draws an amount against a purchase order for a billing period.
// Completing a run records its amount as spend on the PO, which drives the
// PO lifecycle pipeline (status recompute, threshold notifications, account
// status propagation).
type BillingRun struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"run_id"`
	CustomerID uuid.UUID  `gorm:"type:uuid;not null;index:idx_run_customer_created" json:"customer_id"`
	Customer   *Customer  `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
	AccountID  *uuid.UUID `gorm:"type:uuid;index" json:"account_id"`
	Account    *Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"account,omitempty"`

	PurchaseOrderID uuid.UUID      `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	PurchaseOrder   *PurchaseOrder `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"purchase_order,omitempty"`

	Amount           decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	BillingDate      time.Time       `gorm:"type:date;not null" json:"billing_date"`
	BillingStartDate *time.Time      `gorm:"type:date" json:"billing_start_date,omitempty"`
	BillingEndDate   *time.Time      `gorm:"type:date" json:"billing_end_date,omitempty"`

	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_run_status_created" json:"status"`
	BillingType string     `gorm:"type:varchar(20);not null;default:'manual'" json:"billing_type"`
	ProcessedBy uuid.UUID  `gorm:"type:uuid;not null" json:"processed_by"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	TicketsCount int        `gorm:"not null;default:0" json:"tickets_count"`
	RateCardID   *uuid.UUID `gorm:"type:uuid" json:"rate_card_id,omitempty"`
	RateCard     *RateCard  `gorm:"foreignKey:RateCardID;constraint:OnDelete:SET NULL" json:"rate_card,omitempty"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`

	LineItems []BillingRunLineItem `gorm:"foreignKey:BillingRunID;constraint:OnDelete:CASCADE" json:"line_items,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_run_customer_created;index:idx_run_status_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (br *BillingRun) BeforeCreate(tx *gorm.DB) error {
	if br.ID == uuid.Nil {
		br.ID = uuid.New()
	}
	return nil
}

// CanBeCancelled reports whether the run has not yet been processed.
func (br *BillingRun) CanBeCancelled() bool {
	return br.Status == RunStatusDraft || br.Status == RunStatusPending
}

// CanBeProcessed reports whether the run is still eligible for completion.
func (br *BillingRun) CanBeProcessed() bool {
	return br.Status == RunStatusDraft || br.Status == RunStatusPending
}

// BillingRunLineItem is an individual charge within a billing run
type BillingRunLineItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BillingRunID uuid.UUID `gorm:"type:uuid;not null;index" json:"billing_run_id"`

	Description string          `gorm:"type:varchar(500);not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:1" json:"quantity"`
	UnitRate    decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"unit_rate"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`

	TicketReference string     `gorm:"type:varchar(100)" json:"ticket_reference,omitempty"`
	WorkDate        *time.Time `gorm:"type:date" json:"work_date,omitempty"`
	Category        string     `gorm:"type:varchar(100)" json:"category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (li *BillingRunLineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}
