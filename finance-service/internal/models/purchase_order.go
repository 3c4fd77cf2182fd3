package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"opsuite/pkg/apperr"
	"opsuite/pkg/money"
	"opsuite/pkg/validator"
)

type POStatus string

const (
	PODraft           POStatus = "draft"
	POPendingApproval POStatus = "pending_approval"
	POApproved        POStatus = "approved"
	PORejected        POStatus = "rejected"
	POOrdered         POStatus = "ordered"
	POCancelled       POStatus = "cancelled"
)

type DeliveryStatus string

const (
	NotDelivered       DeliveryStatus = "not_delivered"
	PartiallyDelivered DeliveryStatus = "partially_delivered"
	Delivered          DeliveryStatus = "delivered"
)

var poEdges = map[POStatus][]POStatus{
	PODraft:           {POPendingApproval, POCancelled},
	POPendingApproval: {POApproved, PORejected, POCancelled},
	POApproved:        {POOrdered, POCancelled},
	POOrdered:         {POCancelled},
}

func (s POStatus) CanMoveTo(to POStatus) bool {
	for _, next := range poEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (d DeliveryStatus) rank() int {
	switch d {
	case NotDelivered:
		return 0
	case PartiallyDelivered:
		return 1
	case Delivered:
		return 2
	}
	return -1
}

// CanAdvanceTo allows delivery to move forward only.
func (d DeliveryStatus) CanAdvanceTo(to DeliveryStatus) bool {
	return to.rank() > d.rank()
}

type Vendor struct {
	Name    string `bson:"name" json:"name" validate:"required,max=200"`
	Email   string `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`
}

type POItem struct {
	Description string          `bson:"description" json:"description" validate:"required,max=300"`
	SKU         string          `bson:"sku,omitempty" json:"sku,omitempty"`
	Quantity    decimal.Decimal `bson:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `bson:"unit_price" json:"unit_price"`
	Amount      decimal.Decimal `bson:"amount" json:"amount"`
}

type PurchaseOrder struct {
	Base           `bson:",inline"`
	PONumber       string          `bson:"po_number" json:"po_number"`
	Vendor         Vendor          `bson:"vendor" json:"vendor"`
	Items          []POItem        `bson:"items" json:"items"`
	Subtotal       decimal.Decimal `bson:"subtotal" json:"subtotal"`
	TaxPercent     decimal.Decimal `bson:"tax_percent" json:"tax_percent"`
	Tax            decimal.Decimal `bson:"tax" json:"tax"`
	Total          decimal.Decimal `bson:"total" json:"total"`
	Status         POStatus        `bson:"status" json:"status"`
	DeliveryStatus DeliveryStatus  `bson:"delivery_status" json:"delivery_status"`
	ExpectedDate   *time.Time      `bson:"expected_date,omitempty" json:"expected_date,omitempty"`
	DeliveredAt    *time.Time      `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	RequestedBy    string          `bson:"requested_by" json:"requested_by"`
	ApprovedBy     string          `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	Review         *Review         `bson:"review,omitempty" json:"review,omitempty"`
	Notes          string          `bson:"notes,omitempty" json:"notes,omitempty"`
}

func (po *PurchaseOrder) Recalculate() {
	subtotal := decimal.Zero
	for i := range po.Items {
		po.Items[i].Amount = money.LineAmount(po.Items[i].Quantity, po.Items[i].UnitPrice)
		subtotal = subtotal.Add(po.Items[i].Amount)
	}
	po.Subtotal = money.Round(subtotal)
	po.Tax = money.Percent(po.Subtotal, po.TaxPercent)
	po.Total = po.Subtotal.Add(po.Tax)
}

// Spend reports whether the order commits money.
func (po *PurchaseOrder) Spend() bool {
	return po.Status == POApproved || po.Status == POOrdered
}

type PurchaseOrderInput struct {
	Vendor       Vendor          `json:"vendor"`
	Items        []POItem        `json:"items" validate:"required,min=1,dive"`
	TaxPercent   decimal.Decimal `json:"tax_percent"`
	ExpectedDate *time.Time      `json:"expected_date"`
	Notes        string          `json:"notes" validate:"max=2000"`
}

func (in PurchaseOrderInput) Validate() error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	for i, it := range in.Items {
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("%w: items[%d].quantity must be greater than 0", apperr.ErrValidation, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: items[%d].unit_price must not be negative", apperr.ErrValidation, i)
		}
	}
	return checkPercent("tax_percent", in.TaxPercent)
}

func (po *PurchaseOrder) Apply(in PurchaseOrderInput) {
	po.Vendor = in.Vendor
	po.Items = in.Items
	po.TaxPercent = in.TaxPercent
	po.ExpectedDate = in.ExpectedDate
	po.Notes = in.Notes
	po.Recalculate()
}
