package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/cache"
)

const (
	dashboardTTL    = 5 * time.Minute
	dashboardMonths = 6
)

func dashboardKey(tenantID string) string {
	return "finance_dashboard:" + tenantID
}

// Dashboard returns the tenant's finance totals, cached for a few minutes.
func (s *FinanceService) Dashboard(ctx context.Context, tenantID string) (*models.Dashboard, error) {
	var cached models.Dashboard
	if err := s.cache.Get(ctx, dashboardKey(tenantID), &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("dashboard cache read failed", zap.Error(err))
	}

	d, err := s.buildDashboard(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, dashboardKey(tenantID), d, dashboardTTL); err != nil {
		s.log.Warn("dashboard cache write failed", zap.Error(err))
	}
	return d, nil
}

func (s *FinanceService) buildDashboard(ctx context.Context, tenantID string) (*models.Dashboard, error) {
	estimations, err := s.Estimations.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	quotations, err := s.Quotations.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	payments, err := s.Payments.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	orders, err := s.PurchaseOrders.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.Expenses.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d := &models.Dashboard{
		VerifiedPayments:      decimal.Zero,
		ApprovedExpenses:      decimal.Zero,
		OutstandingQuotations: decimal.Zero,
		PurchaseOrderSpend:    decimal.Zero,
		GeneratedAt:           now,
	}

	series, index := monthSeries(now, dashboardMonths)
	paidPerQuotation := map[string]decimal.Decimal{}
	for _, p := range payments {
		switch p.Status {
		case models.PaymentVerified:
			d.VerifiedPayments = d.VerifiedPayments.Add(p.Amount)
			if i, ok := index[monthOf(p.PaidAt)]; ok {
				series[i].Income = series[i].Income.Add(p.Amount)
			}
			if p.QuotationID != "" {
				paidPerQuotation[p.QuotationID] = paidPerQuotation[p.QuotationID].Add(p.Amount)
			}
		case models.PaymentPending:
			d.PendingApprovals.Payments++
		}
	}
	for _, e := range expenses {
		switch e.Status {
		case models.ExpenseApproved:
			d.ApprovedExpenses = d.ApprovedExpenses.Add(e.Amount)
			if i, ok := index[monthOf(e.IncurredOn)]; ok {
				series[i].Expenses = series[i].Expenses.Add(e.Amount)
			}
		case models.ExpensePending:
			d.PendingApprovals.Expenses++
		}
	}
	for _, q := range quotations {
		if q.Status != models.QuotationAccepted {
			continue
		}
		if due := q.Total.Sub(paidPerQuotation[q.ID.Hex()]); due.IsPositive() {
			d.OutstandingQuotations = d.OutstandingQuotations.Add(due)
		}
	}
	for _, po := range orders {
		if po.Spend() {
			d.PurchaseOrderSpend = d.PurchaseOrderSpend.Add(po.Total)
		}
		if po.Status == models.POPendingApproval {
			d.PendingApprovals.PurchaseOrders++
		}
	}
	for _, e := range estimations {
		if e.Status == models.EstimationPendingApproval {
			d.PendingApprovals.Estimations++
		}
	}

	d.NetIncome = d.VerifiedPayments.Sub(d.ApprovedExpenses)
	d.Monthly = series
	return d, nil
}

func monthOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// monthSeries returns the last n months, oldest first, ending with the
// month of now.
func monthSeries(now time.Time, n int) ([]models.MonthlyPoint, map[string]int) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	series := make([]models.MonthlyPoint, n)
	index := make(map[string]int, n)
	for i := range series {
		m := monthOf(first.AddDate(0, i, 0))
		series[i] = models.MonthlyPoint{Month: m, Income: decimal.Zero, Expenses: decimal.Zero}
		index[m] = i
	}
	return series, index
}
