package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		name      string
		total     string
		remaining string
		want      string
	}{
		{"untouched", "1000", "1000", "0"},
		{"half spent", "1000", "500", "50"},
		{"fully spent", "1000", "0", "100"},
		{"fractional rounds to 4 places", "3000", "1000", "66.6667"},
		{"small amounts", "0.03", "0.01", "66.6667"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Utilization(d(tt.total), d(tt.remaining))
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestUtilizationRejectsNonPositiveTotal(t *testing.T) {
	_, err := Utilization(decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrNonPositiveTotal)

	_, err = Utilization(d("-100"), d("-100"))
	assert.ErrorIs(t, err, ErrNonPositiveTotal)
}

func TestDeriveStatus(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	in := func(days int) time.Time { return today.AddDate(0, 0, days) }

	tests := []struct {
		name       string
		total      string
		remaining  string
		validUntil time.Time
		want       string
	}{
		{"healthy PO", "1000", "800", in(90), POStatusActive},
		{"depleted balance", "1000", "0", in(90), POStatusExpired},
		{"negative remaining", "1000", "-5", in(90), POStatusExpired},
		{"past validity window", "1000", "800", in(-1), POStatusExpired},
		// Depletion outranks the date: a spent-out PO is expired even while
		// its validity window is still open, and vice versa.
		{"depleted and expiring", "1000", "0", in(10), POStatusExpired},
		{"utilization at 90", "1000", "100", in(90), POStatusLowBalance},
		{"utilization above 90", "1000", "50", in(90), POStatusLowBalance},
		{"utilization just below 90", "1000", "100.01", in(90), POStatusActive},
		// Low balance outranks the expiry window when both hold.
		{"low balance and expiring", "1000", "80", in(5), POStatusLowBalance},
		{"expires in exactly 30 days", "1000", "800", in(30), POStatusExpiringSoon},
		{"expires in 31 days", "1000", "800", in(31), POStatusActive},
		{"expires today", "1000", "800", in(0), POStatusExpiringSoon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveStatus(d(tt.total), d(tt.remaining), tt.validUntil, today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveStatusRejectsNonPositiveTotal(t *testing.T) {
	_, err := DeriveStatus(decimal.Zero, decimal.Zero, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNonPositiveTotal)
}

func TestDeriveStatusJustBelowExpiringBoundary(t *testing.T) {
	// 100.01 remaining of 1000 is 89.999%, which must not round up to 90.
	util, err := Utilization(d("1000"), d("100.01"))
	require.NoError(t, err)
	assert.True(t, util.LessThan(d("90")), "utilization %s should stay below 90", util)
}

func TestDaysUntilExpiry(t *testing.T) {
	today := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)

	po := PurchaseOrder{ValidUntil: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 5, po.DaysUntilExpiry(today))

	po.ValidUntil = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, po.DaysUntilExpiry(today))

	po.ValidUntil = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, -2, po.DaysUntilExpiry(today))
}

func TestCanBeBilled(t *testing.T) {
	po := PurchaseOrder{TotalAmount: d("1000"), SpentAmount: d("200")}

	for status, want := range map[string]bool{
		POStatusActive:       true,
		POStatusExpiringSoon: true,
		POStatusLowBalance:   false,
		POStatusDraft:        false,
		POStatusExpired:      false,
	} {
		po.Status = status
		assert.Equal(t, want, po.CanBeBilled(), "status %s", status)
	}

	// An active PO with nothing left cannot take new runs regardless of status.
	po.Status = POStatusActive
	po.SpentAmount = d("1000")
	assert.False(t, po.CanBeBilled())
}

func TestNotificationSeverity(t *testing.T) {
	assert.Equal(t, "info", (&POBalanceNotification{ThresholdPercent: 50}).Severity())
	assert.Equal(t, "warning", (&POBalanceNotification{ThresholdPercent: 75}).Severity())
	assert.Equal(t, "critical", (&POBalanceNotification{ThresholdPercent: 90}).Severity())
}

func TestNotificationMessage(t *testing.T) {
	n := POBalanceNotification{ThresholdPercent: 90, UtilizationPercent: d("92.50")}
	assert.Equal(t, "Critical: PO PO-ACM-2026-ABC123 is at 92.50% utilization (low balance)", n.Message("PO-ACM-2026-ABC123"))

	n = POBalanceNotification{ThresholdPercent: 75, UtilizationPercent: d("80")}
	assert.Equal(t, "Warning: PO X is at 80.00% utilization", n.Message("X"))

	n = POBalanceNotification{ThresholdPercent: 50, UtilizationPercent: d("55.1")}
	assert.Equal(t, "Notice: PO X is at 55.10% utilization", n.Message("X"))
}
