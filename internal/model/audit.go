package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateCustomer = "CREATE_CUSTOMER"
	ActionUpdateCustomer = "UPDATE_CUSTOMER"
	ActionCreateAccount  = "CREATE_ACCOUNT"
	ActionUpdateAccount  = "UPDATE_ACCOUNT"

	// Purchase order lifecycle actions
	ActionCreatePurchaseOrder = "CREATE_PURCHASE_ORDER"
	ActionUpdatePurchaseOrder = "UPDATE_PURCHASE_ORDER"
	ActionDeletePurchaseOrder = "DELETE_PURCHASE_ORDER"
	ActionRecordSpend         = "RECORD_SPEND"

	// Billing run actions
	ActionCreateBillingRun   = "CREATE_BILLING_RUN"
	ActionCompleteBillingRun = "COMPLETE_BILLING_RUN"
	ActionCancelBillingRun   = "CANCEL_BILLING_RUN"

	ActionCreateRateCard = "CREATE_RATE_CARD"
	ActionUpdateRateCard = "UPDATE_RATE_CARD"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated job
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/po number)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:text" json:"details"`                       // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
