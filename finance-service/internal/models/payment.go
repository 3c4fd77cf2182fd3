package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"opsuite/pkg/apperr"
	"opsuite/pkg/storage"
	"opsuite/pkg/validator"
)

const (
	PurposeInspectionFee = "inspection_fee"
	PurposeQuotation     = "quotation"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

type Payment struct {
	Base                `bson:",inline"`
	Reference           string          `bson:"reference" json:"reference"`
	Purpose             string          `bson:"purpose" json:"purpose"`
	InspectionRequestID string          `bson:"inspection_request_id,omitempty" json:"inspection_request_id,omitempty"`
	QuotationID         string          `bson:"quotation_id,omitempty" json:"quotation_id,omitempty"`
	PayerID             string          `bson:"payer_id" json:"payer_id"`
	Amount              decimal.Decimal `bson:"amount" json:"amount"`
	Method              string          `bson:"method" json:"method"`
	Receipt             *storage.Object `bson:"receipt,omitempty" json:"receipt,omitempty"`
	Status              PaymentStatus   `bson:"status" json:"status"`
	Note                string          `bson:"note,omitempty" json:"note,omitempty"`
	PaidAt              time.Time       `bson:"paid_at" json:"paid_at"`
	Review              *Review         `bson:"review,omitempty" json:"review,omitempty"`
}

type PaymentInput struct {
	Purpose             string          `json:"purpose" validate:"required,oneof=inspection_fee quotation"`
	InspectionRequestID string          `json:"inspection_request_id" validate:"required_if=Purpose inspection_fee"`
	QuotationID         string          `json:"quotation_id" validate:"required_if=Purpose quotation"`
	PayerID             string          `json:"payer_id"`
	Amount              decimal.Decimal `json:"amount"`
	Method              string          `json:"method" validate:"required,oneof=cash bank_transfer card cheque"`
	PaidAt              *time.Time      `json:"paid_at"`
	Note                string          `json:"note" validate:"max=1000"`
}

func (in PaymentInput) Validate(now time.Time) error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than 0", apperr.ErrValidation)
	}
	if in.PaidAt != nil && in.PaidAt.After(now) {
		return fmt.Errorf("%w: paid_at cannot be in the future", apperr.ErrValidation)
	}
	return nil
}
