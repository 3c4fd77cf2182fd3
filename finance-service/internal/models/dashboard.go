package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PendingApprovals struct {
	Estimations    int `json:"estimations"`
	PurchaseOrders int `json:"purchase_orders"`
	Expenses       int `json:"expenses"`
	Payments       int `json:"payments"`
}

type MonthlyPoint struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

type Dashboard struct {
	VerifiedPayments      decimal.Decimal  `json:"verified_payments"`
	ApprovedExpenses      decimal.Decimal  `json:"approved_expenses"`
	OutstandingQuotations decimal.Decimal  `json:"outstanding_quotations"`
	PurchaseOrderSpend    decimal.Decimal  `json:"purchase_order_spend"`
	NetIncome             decimal.Decimal  `json:"net_income"`
	PendingApprovals      PendingApprovals `json:"pending_approvals"`
	Monthly               []MonthlyPoint   `json:"monthly"`
	GeneratedAt           time.Time        `json:"generated_at"`
}
