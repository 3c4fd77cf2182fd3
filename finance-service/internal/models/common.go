package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsuite/pkg/apperr"
	"opsuite/pkg/money"
)

// Base holds the fields every finance record shares.
type Base struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

func (b *Base) GetBase() *Base { return b }

// CostLine is one priced line of an estimation or quotation.
type CostLine struct {
	Description string          `bson:"description" json:"description" validate:"required,max=300"`
	Quantity    decimal.Decimal `bson:"quantity" json:"quantity"`
	UnitCost    decimal.Decimal `bson:"unit_cost" json:"unit_cost"`
	Amount      decimal.Decimal `bson:"amount" json:"amount"`
}

func checkLines(field string, lines []CostLine) error {
	for i, l := range lines {
		if !l.Quantity.IsPositive() {
			return fmt.Errorf("%w: %s[%d].quantity must be greater than 0", apperr.ErrValidation, field, i)
		}
		if l.UnitCost.IsNegative() {
			return fmt.Errorf("%w: %s[%d].unit_cost must not be negative", apperr.ErrValidation, field, i)
		}
	}
	return nil
}

// priceLines fills Amount on every line and returns their sum.
func priceLines(lines []CostLine) decimal.Decimal {
	total := decimal.Zero
	for i := range lines {
		lines[i].Amount = money.LineAmount(lines[i].Quantity, lines[i].UnitCost)
		total = total.Add(lines[i].Amount)
	}
	return total
}

func checkPercent(field string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: %s must be between 0 and 100", apperr.ErrValidation, field)
	}
	return nil
}

// Review records an approval decision.
type Review struct {
	By   string    `bson:"by" json:"by"`
	Note string    `bson:"note,omitempty" json:"note,omitempty"`
	At   time.Time `bson:"at" json:"at"`
}
