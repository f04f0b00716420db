package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrder status enum constants
const (
	POStatusDraft        = "draft"
	POStatusActive       = "active"
	POStatusExpiringSoon = "expiring_soon"
	POStatusLowBalance   = "low_balance"
	POStatusExpired      = "expired"
)

// Balance notification thresholds, checked in ascending order
var NotificationThresholds = []int{50, 75, 90}

const (
	// Utilization at or above this percentage derives the low_balance status
	lowBalancePercent = 90
	// POs expiring within this many days derive the expiring_soon status
	expiringSoonDays = 30
)

// ErrNonPositiveTotal is returned when status or utilization is requested
// for a PO whose total_amount is zero or negative.
var ErrNonPositiveTotal = errors.New("total_amount must be greater than zero")

// PurchaseOrder represents a pre-authorized spending allowance for a customer
// or account, consumed over time by billing runs. SpentAmount is the stored
// representation; RemainingBalance is always derived from it.
type PurchaseOrder struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PONumber   string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"po_number"`
	CustomerID uuid.UUID  `gorm:"type:uuid;not null;index:idx_po_customer_created" json:"customer_id"`
	Customer   *Customer  `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
	AccountID  *uuid.UUID `gorm:"type:uuid;index:idx_po_account_status" json:"account_id"`
	Account    *Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"account,omitempty"`

	// Financial details
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	SpentAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"spent_amount"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	// Validity period (date-only, inclusive)
	ValidFrom  time.Time `gorm:"type:date;not null" json:"valid_from"`
	ValidUntil time.Time `gorm:"type:date;not null;index:idx_po_status_valid,priority:2" json:"valid_until"`

	// Status is recomputed on every save, never set directly by a caller
	Status string `gorm:"type:varchar(20);not null;default:'draft';index:idx_po_status_valid,priority:1;index:idx_po_account_status" json:"status"`

	// Additional descriptive fields
	Department       string `gorm:"type:varchar(100)" json:"department,omitempty"`
	ProjectCode      string `gorm:"type:varchar(50)" json:"project_code,omitempty"`
	ItemsDescription string `gorm:"type:text" json:"items_description,omitempty"`
	DeliveryTerms    string `gorm:"type:varchar(100)" json:"delivery_terms,omitempty"`
	PaymentTerms     string `gorm:"type:varchar(100)" json:"payment_terms,omitempty"`
	ReferenceNumber  string `gorm:"type:varchar(100)" json:"reference_number,omitempty"`
	Notes            string `gorm:"type:text" json:"notes,omitempty"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"index:idx_po_customer_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (po *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	return nil
}

// RemainingBalance derives the unspent portion of the authorized amount.
func (po *PurchaseOrder) RemainingBalance() decimal.Decimal {
	return po.TotalAmount.Sub(po.SpentAmount)
}

// UtilizationPercent computes spend as a percentage of the authorized amount,
// rounded to 4 decimal places. Display code rounds further to 2.
func (po *PurchaseOrder) UtilizationPercent() (decimal.Decimal, error) {
	return Utilization(po.TotalAmount, po.RemainingBalance())
}

// DaysUntilExpiry counts calendar days from today until valid_until.
// Negative when the PO is already past its validity window.
func (po *PurchaseOrder) DaysUntilExpiry(today time.Time) int {
	return daysBetween(today, po.ValidUntil)
}

// CanBeBilled reports whether new billing runs may draw against this PO.
func (po *PurchaseOrder) CanBeBilled() bool {
	return (po.Status == POStatusActive || po.Status == POStatusExpiringSoon) &&
		po.RemainingBalance().GreaterThan(decimal.Zero)
}

// Utilization computes (total - remaining) / total * 100 at 4 decimal places.
// Rejects a non-positive total instead of clamping; the caller is expected to
// have validated the amount at creation time.
func Utilization(total, remaining decimal.Decimal) (decimal.Decimal, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrNonPositiveTotal
	}
	used := total.Sub(remaining)
	return used.Div(total).Mul(decimal.NewFromInt(100)).Round(4), nil
}

// DeriveStatus maps a PO's financial state and validity window to its status.
// Precedence order matters: several conditions can hold at once and the first
// matching rule wins. Balance depletion is checked before date expiry, low
// balance before expiring soon. The draft status is never derived; it exists
// only as an explicit initial state and is exited on the first recompute.
func DeriveStatus(total, remaining decimal.Decimal, validUntil, today time.Time) (string, error) {
	utilization, err := Utilization(total, remaining)
	if err != nil {
		return "", err
	}

	switch {
	case remaining.LessThanOrEqual(decimal.Zero):
		return POStatusExpired, nil
	case daysBetween(today, validUntil) < 0:
		return POStatusExpired, nil
	case utilization.GreaterThanOrEqual(decimal.NewFromInt(lowBalancePercent)):
		return POStatusLowBalance, nil
	case daysBetween(today, validUntil) <= expiringSoonDays:
		return POStatusExpiringSoon, nil
	default:
		return POStatusActive, nil
	}
}

// daysBetween counts whole calendar days from a to b, ignoring time of day.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// POBalanceNotification is a one-time alert recorded when a PO's utilization
// first crosses one of the thresholds in NotificationThresholds. The composite
// unique index is the engine's central invariant: at most one row ever exists
// per (purchase_order, threshold) pair, and rows are never retracted when
// spend later drops back below the threshold.
type POBalanceNotification struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:ux_po_notification_threshold" json:"purchase_order_id"`
	PurchaseOrder   *PurchaseOrder `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"purchase_order,omitempty"`

	ThresholdPercent int `gorm:"not null;uniqueIndex:ux_po_notification_threshold" json:"threshold_percent"`

	// Values captured at the moment of crossing, not live projections
	UtilizationPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"utilization_percent"`
	RemainingBalance   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"remaining_balance"`

	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *POBalanceNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// Severity maps the threshold to a display class for the dashboard.
func (n *POBalanceNotification) Severity() string {
	switch n.ThresholdPercent {
	case 90:
		return "critical"
	case 75:
		return "warning"
	default:
		return "info"
	}
}

// Message renders the human-readable alert text for a given PO number.
func (n *POBalanceNotification) Message(poNumber string) string {
	switch n.ThresholdPercent {
	case 90:
		return fmt.Sprintf("Critical: PO %s is at %s%% utilization (low balance)", poNumber, n.UtilizationPercent.StringFixed(2))
	case 75:
		return fmt.Sprintf("Warning: PO %s is at %s%% utilization", poNumber, n.UtilizationPercent.StringFixed(2))
	default:
		return fmt.Sprintf("Notice: PO %s is at %s%% utilization", poNumber, n.UtilizationPercent.StringFixed(2))
	}
}
