package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"opsuite/pkg/apperr"
	"opsuite/pkg/money"
	"opsuite/pkg/validator"
)

type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "draft"
	QuotationSent     QuotationStatus = "sent"
	QuotationAccepted QuotationStatus = "accepted"
	QuotationRejected QuotationStatus = "rejected"
	// QuotationExpired is derived at read time and never stored.
	QuotationExpired QuotationStatus = "expired"
)

const DefaultQuotationValidity = 30 * 24 * time.Hour

type Quotation struct {
	Base                `bson:",inline"`
	QuotationNo         string          `bson:"quotation_no" json:"quotation_no"`
	EstimationID        string          `bson:"estimation_id" json:"estimation_id"`
	InspectionRequestID string          `bson:"inspection_request_id,omitempty" json:"inspection_request_id,omitempty"`
	ClientID            string          `bson:"client_id" json:"client_id"`
	Items               []CostLine      `bson:"items" json:"items"`
	Subtotal            decimal.Decimal `bson:"subtotal" json:"subtotal"`
	DiscountPercent     decimal.Decimal `bson:"discount_percent" json:"discount_percent"`
	Discount            decimal.Decimal `bson:"discount" json:"discount"`
	TaxPercent          decimal.Decimal `bson:"tax_percent" json:"tax_percent"`
	Tax                 decimal.Decimal `bson:"tax" json:"tax"`
	Total               decimal.Decimal `bson:"total" json:"total"`
	ValidUntil          time.Time       `bson:"valid_until" json:"valid_until"`
	Status              QuotationStatus `bson:"status" json:"status"`
	Notes               string          `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedBy           string          `bson:"created_by" json:"created_by"`
	SentAt              *time.Time      `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	DecidedAt           *time.Time      `bson:"decided_at,omitempty" json:"decided_at,omitempty"`
}

// Recalculate applies the discount to the subtotal and the tax to the
// discounted amount.
func (q *Quotation) Recalculate() {
	q.Subtotal = money.Round(priceLines(q.Items))
	q.Discount = money.Percent(q.Subtotal, q.DiscountPercent)
	q.Tax = money.Percent(q.Subtotal.Sub(q.Discount), q.TaxPercent)
	q.Total = q.Subtotal.Sub(q.Discount).Add(q.Tax)
}

// EffectiveStatus reports expired for open quotations past ValidUntil.
func (q *Quotation) EffectiveStatus(now time.Time) QuotationStatus {
	if (q.Status == QuotationDraft || q.Status == QuotationSent) && now.After(q.ValidUntil) {
		return QuotationExpired
	}
	return q.Status
}

// QuotationInput carries the commercial terms set when generating or
// editing a quotation.
type QuotationInput struct {
	ClientID        string          `json:"client_id"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	ValidUntil      *time.Time      `json:"valid_until"`
	Notes           string          `json:"notes" validate:"max=2000"`
}

func (in QuotationInput) Validate(now time.Time) error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	if err := checkPercent("discount_percent", in.DiscountPercent); err != nil {
		return err
	}
	if err := checkPercent("tax_percent", in.TaxPercent); err != nil {
		return err
	}
	if in.ValidUntil != nil && !in.ValidUntil.After(now) {
		return fmt.Errorf("%w: valid_until must be in the future", apperr.ErrValidation)
	}
	return nil
}
