package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsuite/pkg/apperr"
	"opsuite/pkg/money"
	"opsuite/pkg/validator"
)

type InventoryItem struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID     string             `bson:"tenant_id" json:"tenant_id"`
	SKU          string             `bson:"sku" json:"sku"`
	Name         string             `bson:"name" json:"name"`
	Category     string             `bson:"category" json:"category"`
	Unit         string             `bson:"unit" json:"unit"`
	Quantity     decimal.Decimal    `bson:"quantity" json:"quantity"`
	ReorderLevel decimal.Decimal    `bson:"reorder_level" json:"reorder_level"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	UnitCost     decimal.Decimal    `bson:"unit_cost" json:"unit_cost"`
	Active       bool               `bson:"active" json:"active"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// LowStock reports whether an active item sits at or below its reorder level.
func (i *InventoryItem) LowStock() bool {
	return i.Active && i.Quantity.LessThanOrEqual(i.ReorderLevel)
}

// StockState is the listing status of an item.
func (i *InventoryItem) StockState() string {
	switch {
	case !i.Active:
		return "inactive"
	case i.LowStock():
		return "low_stock"
	default:
		return "in_stock"
	}
}

// StockValue is quantity times unit cost.
func (i *InventoryItem) StockValue() decimal.Decimal {
	return money.LineAmount(i.Quantity, i.UnitCost)
}

type ItemInput struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=200"`
	Category     string          `json:"category" validate:"required,max=100"`
	Unit         string          `json:"unit" validate:"required,max=20"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Location     string          `json:"location" validate:"max=100"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Active       *bool           `json:"active"`
}

func (in ItemInput) Validate() error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	fields := []struct {
		name  string
		value decimal.Decimal
	}{{"quantity", in.Quantity}, {"reorder_level", in.ReorderLevel}, {"unit_cost", in.UnitCost}}
	for _, f := range fields {
		if f.value.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", apperr.ErrValidation, f.name)
		}
	}
	return nil
}

// Apply copies the descriptive fields. Quantity only changes through
// movements.
func (i *InventoryItem) Apply(in ItemInput) {
	i.SKU = in.SKU
	i.Name = in.Name
	i.Category = in.Category
	i.Unit = in.Unit
	i.ReorderLevel = in.ReorderLevel
	i.Location = in.Location
	i.UnitCost = money.Round(in.UnitCost)
	if in.Active != nil {
		i.Active = *in.Active
	}
}

type MovementType string

const (
	MovementIn     MovementType = "in"
	MovementOut    MovementType = "out"
	MovementAdjust MovementType = "adjust"
)

// StockMovement records one change of an item's quantity. For adjust,
// Quantity is the counted stock that replaces the old value.
type StockMovement struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	ItemID    primitive.ObjectID `bson:"item_id" json:"item_id"`
	Type      MovementType       `bson:"type" json:"type"`
	Quantity  decimal.Decimal    `bson:"quantity" json:"quantity"`
	Before    decimal.Decimal    `bson:"before" json:"before"`
	After     decimal.Decimal    `bson:"after" json:"after"`
	Reference string             `bson:"reference,omitempty" json:"reference,omitempty"`
	Note      string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedBy string             `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type MovementInput struct {
	Type      MovementType    `json:"type" validate:"required,oneof=in out adjust"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reference string          `json:"reference" validate:"max=100"`
	Note      string          `json:"note" validate:"max=1000"`
}

func (in MovementInput) Validate() error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	if in.Type == MovementAdjust {
		if in.Quantity.IsNegative() {
			return fmt.Errorf("%w: counted quantity must not be negative", apperr.ErrValidation)
		}
		return nil
	}
	if !in.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than 0", apperr.ErrValidation)
	}
	return nil
}

// Resulting returns the stock after applying a movement of qty to before.
func (t MovementType) Resulting(before, qty decimal.Decimal) decimal.Decimal {
	switch t {
	case MovementIn:
		return before.Add(qty)
	case MovementOut:
		return before.Sub(qty)
	default:
		return qty
	}
}
