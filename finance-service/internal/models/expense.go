package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"opsuite/pkg/apperr"
	"opsuite/pkg/storage"
	"opsuite/pkg/validator"
)

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
)

var ExpenseCategories = []string{"travel", "materials", "equipment", "utilities", "salaries", "office", "other"}

type Expense struct {
	Base        `bson:",inline"`
	Title       string          `bson:"title" json:"title"`
	Category    string          `bson:"category" json:"category"`
	Amount      decimal.Decimal `bson:"amount" json:"amount"`
	IncurredOn  time.Time       `bson:"incurred_on" json:"incurred_on"`
	Description string          `bson:"description,omitempty" json:"description,omitempty"`
	Receipt     *storage.Object `bson:"receipt,omitempty" json:"receipt,omitempty"`
	Status      ExpenseStatus   `bson:"status" json:"status"`
	SubmittedBy string          `bson:"submitted_by" json:"submitted_by"`
	Review      *Review         `bson:"review,omitempty" json:"review,omitempty"`
}

type ExpenseInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Category    string          `json:"category" validate:"required,oneof=travel materials equipment utilities salaries office other"`
	Amount      decimal.Decimal `json:"amount"`
	IncurredOn  time.Time       `json:"incurred_on" validate:"required"`
	Description string          `json:"description" validate:"max=2000"`
}

func (in ExpenseInput) Validate(now time.Time) error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than 0", apperr.ErrValidation)
	}
	if in.IncurredOn.After(now) {
		return fmt.Errorf("%w: incurred_on cannot be in the future", apperr.ErrValidation)
	}
	return nil
}

func (e *Expense) Apply(in ExpenseInput) {
	e.Title = in.Title
	e.Category = in.Category
	e.Amount = in.Amount.Round(2)
	e.IncurredOn = in.IncurredOn.UTC()
	e.Description = in.Description
}
