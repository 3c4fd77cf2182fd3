package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"opsuite/pkg/apperr"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		from   time.Time
		months int
		want   time.Time
	}{
		{day(2025, 1, 15), 12, day(2026, 1, 15)},
		{day(2025, 1, 31), 1, day(2025, 2, 28)},
		{day(2024, 1, 31), 1, day(2024, 2, 29)},
		{day(2025, 8, 31), 6, day(2026, 2, 28)},
		{day(2025, 11, 30), 3, day(2026, 2, 28)},
		{day(2025, 3, 10), 24, day(2027, 3, 10)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddMonths(tt.from, tt.months), "%s + %d", tt.from.Format("2006-01-02"), tt.months)
	}
}

func TestWarrantyStatusAt(t *testing.T) {
	w := &Warranty{}
	w.Apply(WarrantyInput{PurchaseDate: day(2025, 6, 1), PeriodMonths: 12})
	assert.Equal(t, day(2026, 6, 1), w.ExpiryDate)
	assert.NotNil(t, w.Claims)

	assert.Equal(t, WarrantyActive, w.StatusAt(day(2026, 4, 1)))
	assert.Equal(t, WarrantyExpiringSoon, w.StatusAt(day(2026, 5, 2)))
	assert.Equal(t, WarrantyExpiringSoon, w.StatusAt(day(2026, 5, 31)))
	assert.Equal(t, WarrantyExpired, w.StatusAt(day(2026, 6, 1)), "expired at the expiry instant")
	assert.Equal(t, WarrantyExpired, w.StatusAt(day(2027, 1, 1)))
}

func TestApplyResetsRemindersWhenExpiryMoves(t *testing.T) {
	w := &Warranty{}
	in := WarrantyInput{PurchaseDate: day(2025, 6, 1), PeriodMonths: 12}
	w.Apply(in)
	w.NotifiedDays = []int{30}

	w.Apply(in)
	assert.True(t, w.WasNotified(30), "same expiry keeps reminders")

	in.PeriodMonths = 24
	w.Apply(in)
	assert.False(t, w.WasNotified(30))
}

func TestClaimTransitions(t *testing.T) {
	assert.True(t, ClaimOpen.CanMoveTo(ClaimApproved))
	assert.True(t, ClaimOpen.CanMoveTo(ClaimRejected))
	assert.True(t, ClaimApproved.CanMoveTo(ClaimResolved))
	assert.False(t, ClaimOpen.CanMoveTo(ClaimResolved))
	assert.False(t, ClaimRejected.CanMoveTo(ClaimApproved))
	assert.False(t, ClaimResolved.CanMoveTo(ClaimOpen))
}

func TestMovementResulting(t *testing.T) {
	ten := decimal.NewFromInt(10)
	three := decimal.NewFromInt(3)
	assert.True(t, MovementIn.Resulting(ten, three).Equal(decimal.NewFromInt(13)))
	assert.True(t, MovementOut.Resulting(ten, three).Equal(decimal.NewFromInt(7)))
	assert.True(t, MovementAdjust.Resulting(ten, three).Equal(three))
}

func TestMovementValidate(t *testing.T) {
	assert.NoError(t, MovementInput{Type: MovementAdjust, Quantity: decimal.Zero}.Validate())
	assert.ErrorIs(t, MovementInput{Type: MovementOut, Quantity: decimal.Zero}.Validate(), apperr.ErrValidation)
	assert.ErrorIs(t, MovementInput{Type: "lost", Quantity: decimal.NewFromInt(1)}.Validate(), apperr.ErrValidation)
}

func TestStockState(t *testing.T) {
	item := &InventoryItem{Active: true, Quantity: decimal.NewFromInt(5), ReorderLevel: decimal.NewFromInt(5)}
	assert.Equal(t, "low_stock", item.StockState())
	item.Quantity = decimal.NewFromInt(6)
	assert.Equal(t, "in_stock", item.StockState())
	item.Active = false
	assert.Equal(t, "inactive", item.StockState())
	assert.False(t, item.LowStock())
}
