package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsuite/pkg/apperr"
	"opsuite/pkg/validator"
)

type WarrantyStatus string

const (
	WarrantyActive       WarrantyStatus = "active"
	WarrantyExpiringSoon WarrantyStatus = "expiring_soon"
	WarrantyExpired      WarrantyStatus = "expired"
)

// ExpiringSoonWindow is how long before expiry a warranty counts as
// expiring soon.
const ExpiringSoonWindow = 30 * 24 * time.Hour

type ClaimStatus string

const (
	ClaimOpen     ClaimStatus = "open"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
	ClaimResolved ClaimStatus = "resolved"
)

var claimEdges = map[ClaimStatus][]ClaimStatus{
	ClaimOpen:     {ClaimApproved, ClaimRejected},
	ClaimApproved: {ClaimResolved},
}

func (s ClaimStatus) CanMoveTo(to ClaimStatus) bool {
	for _, next := range claimEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Claim struct {
	ID          string      `bson:"id" json:"id"`
	Description string      `bson:"description" json:"description"`
	Status      ClaimStatus `bson:"status" json:"status"`
	Resolution  string      `bson:"resolution,omitempty" json:"resolution,omitempty"`
	CreatedBy   string      `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	ResolvedAt  *time.Time  `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}

type Warranty struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID      string             `bson:"tenant_id" json:"tenant_id"`
	ItemID        string             `bson:"item_id,omitempty" json:"item_id,omitempty"`
	ProductName   string             `bson:"product_name" json:"product_name"`
	SerialNumber  string             `bson:"serial_number" json:"serial_number"`
	CustomerName  string             `bson:"customer_name" json:"customer_name"`
	CustomerEmail string             `bson:"customer_email,omitempty" json:"customer_email,omitempty"`
	PurchaseDate  time.Time          `bson:"purchase_date" json:"purchase_date"`
	PeriodMonths  int                `bson:"period_months" json:"period_months"`
	ExpiryDate    time.Time          `bson:"expiry_date" json:"expiry_date"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Claims        []Claim            `bson:"claims" json:"claims"`
	// NotifiedDays holds the reminder offsets already sent for the
	// current expiry date.
	NotifiedDays []int          `bson:"notified_days,omitempty" json:"-"`
	Status       WarrantyStatus `bson:"-" json:"status"`
	CreatedAt    time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at" json:"updated_at"`
}

// AddMonths adds calendar months, clamping to the last day of the target
// month, so Jan 31 + 1 month is Feb 28 (or 29).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}

// StatusAt derives the warranty status at now.
func (w *Warranty) StatusAt(now time.Time) WarrantyStatus {
	switch {
	case !now.Before(w.ExpiryDate):
		return WarrantyExpired
	case w.ExpiryDate.Sub(now) <= ExpiringSoonWindow:
		return WarrantyExpiringSoon
	default:
		return WarrantyActive
	}
}

func (w *Warranty) Claim(id string) *Claim {
	for i := range w.Claims {
		if w.Claims[i].ID == id {
			return &w.Claims[i]
		}
	}
	return nil
}

func (w *Warranty) WasNotified(days int) bool {
	for _, d := range w.NotifiedDays {
		if d == days {
			return true
		}
	}
	return false
}

type WarrantyInput struct {
	ItemID        string    `json:"item_id"`
	ProductName   string    `json:"product_name" validate:"required,max=200"`
	SerialNumber  string    `json:"serial_number" validate:"required,max=100"`
	CustomerName  string    `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string    `json:"customer_email" validate:"omitempty,email"`
	PurchaseDate  time.Time `json:"purchase_date" validate:"required"`
	PeriodMonths  int       `json:"period_months" validate:"required,min=1,max=120"`
	Notes         string    `json:"notes" validate:"max=2000"`
}

func (in WarrantyInput) Validate(now time.Time) error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	if in.PurchaseDate.After(now) {
		return fmt.Errorf("%w: purchase_date cannot be in the future", apperr.ErrValidation)
	}
	return nil
}

// Apply copies the input and recomputes the expiry date. A changed expiry
// resets the reminders already sent.
func (w *Warranty) Apply(in WarrantyInput) {
	w.ItemID = in.ItemID
	w.ProductName = in.ProductName
	w.SerialNumber = in.SerialNumber
	w.CustomerName = in.CustomerName
	w.CustomerEmail = in.CustomerEmail
	w.PurchaseDate = in.PurchaseDate.UTC()
	w.PeriodMonths = in.PeriodMonths
	w.Notes = in.Notes
	expiry := AddMonths(w.PurchaseDate, in.PeriodMonths)
	if !expiry.Equal(w.ExpiryDate) {
		w.NotifiedDays = nil
	}
	w.ExpiryDate = expiry
	if w.Claims == nil {
		w.Claims = []Claim{}
	}
}

type ClaimInput struct {
	Description string `json:"description" validate:"required,max=2000"`
}

type ClaimUpdate struct {
	Status     ClaimStatus `json:"status" validate:"required,oneof=approved rejected resolved"`
	Resolution string      `json:"resolution" validate:"max=2000"`
}
