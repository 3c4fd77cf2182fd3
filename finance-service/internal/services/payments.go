package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"opsuite/finance-service/internal/clients"
	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
	"opsuite/pkg/notify"
	"opsuite/pkg/sanitize"
)

// statusPaymentPending is the inspection request status that accepts a fee.
const statusPaymentPending = "payment_pending"

var paymentSpec = listing.Spec[models.Payment]{
	SearchFields: func(p models.Payment) []string {
		return []string{p.Reference, p.PayerID, p.InspectionRequestID, p.QuotationID, p.Method, p.Purpose}
	},
	Status: func(p models.Payment) string { return string(p.Status) },
	Sorters: map[string]func(a, b models.Payment) int{
		"created_at": listing.ByTime(func(p models.Payment) time.Time { return p.CreatedAt }),
		"paid_at":    listing.ByTime(func(p models.Payment) time.Time { return p.PaidAt }),
		"reference":  listing.ByString(func(p models.Payment) string { return p.Reference }),
		"status":     listing.ByString(func(p models.Payment) string { return string(p.Status) }),
		"method":     listing.ByString(func(p models.Payment) string { return p.Method }),
		"amount":     listing.ByDecimal(func(p models.Payment) decimal.Decimal { return p.Amount }),
	},
	DefaultSort: "created_at",
}

// RecordPayment stores a payment awaiting verification. token is the
// caller's bearer token, used to look up the inspection request.
func (s *FinanceService) RecordPayment(ctx context.Context, actor authclient.Identity, token string, in models.PaymentInput, receipt *Upload) (*models.Payment, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return nil, err
	}
	payerID := in.PayerID
	if !actor.IsStaff() || payerID == "" {
		payerID = actor.UserID
	}

	existing, err := s.Payments.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	switch in.Purpose {
	case models.PurposeInspectionFee:
		req, err := s.inspections.Get(ctx, token, in.InspectionRequestID)
		if err != nil {
			return nil, err
		}
		if req.Status != statusPaymentPending {
			return nil, fmt.Errorf("%w: inspection request is not awaiting payment", apperr.ErrConflict)
		}
		for _, p := range existing {
			if p.Purpose == models.PurposeInspectionFee && p.InspectionRequestID == req.ID && p.Status == models.PaymentPending {
				return nil, fmt.Errorf("%w: a payment for this request is already awaiting verification", apperr.ErrConflict)
			}
		}
		if actor.IsStaff() && in.PayerID == "" {
			payerID = req.ClientID
		}
		in.QuotationID = ""
	case models.PurposeQuotation:
		q, err := s.loadQuotation(ctx, actor, in.QuotationID)
		if err != nil {
			return nil, err
		}
		if q.Status != models.QuotationAccepted {
			return nil, fmt.Errorf("%w: only accepted quotations can be paid", apperr.ErrConflict)
		}
		if due := outstanding(q, existing); in.Amount.GreaterThan(due) {
			return nil, fmt.Errorf("%w: amount exceeds the outstanding balance of %s", apperr.ErrValidation, due.StringFixed(2))
		}
		if actor.IsStaff() && in.PayerID == "" {
			payerID = q.ClientID
		}
		in.InspectionRequestID = q.InspectionRequestID
	}

	ref, err := s.number(ctx, actor.TenantID, "PAY")
	if err != nil {
		return nil, err
	}
	p := &models.Payment{
		Base:                models.Base{TenantID: actor.TenantID},
		Reference:           ref,
		Purpose:             in.Purpose,
		InspectionRequestID: in.InspectionRequestID,
		QuotationID:         in.QuotationID,
		PayerID:             payerID,
		Amount:              in.Amount.Round(2),
		Method:              in.Method,
		Status:              models.PaymentPending,
		Note:                sanitize.Text(in.Note),
		PaidAt:              now,
	}
	if in.PaidAt != nil {
		p.PaidAt = in.PaidAt.UTC()
	}
	if p.Receipt, err = s.storeFile(ctx, actor.TenantID, "payments", receipt); err != nil {
		return nil, err
	}
	if err := s.Payments.Create(ctx, p); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	s.announce(ctx, p.TenantID, authclient.RoleFinance, "payment_submitted", "Payment awaiting verification",
		fmt.Sprintf("Payment %s of %s needs verification.", p.Reference, p.Amount.StringFixed(2)),
		map[string]string{"payment_id": p.ID.Hex()})
	return p, nil
}

// outstanding is the quotation total minus every payment that is pending
// or verified against it.
func outstanding(q *models.Quotation, payments []models.Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		if p.QuotationID == q.ID.Hex() && p.Status != models.PaymentRejected {
			paid = paid.Add(p.Amount)
		}
	}
	return q.Total.Sub(paid)
}

func (s *FinanceService) loadPayment(ctx context.Context, actor authclient.Identity, id string) (*models.Payment, error) {
	p, err := find(ctx, s.Payments, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && p.PayerID != actor.UserID {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func (s *FinanceService) GetPayment(ctx context.Context, actor authclient.Identity, id string) (*models.Payment, error) {
	return s.loadPayment(ctx, actor, id)
}

func (s *FinanceService) PaymentReceiptURL(ctx context.Context, actor authclient.Identity, id string) (string, error) {
	p, err := s.loadPayment(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return s.receiptURL(ctx, p.Receipt)
}

func (s *FinanceService) ListPayments(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Payment], error) {
	items, err := s.Payments.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.Payment]{}, err
	}
	return listing.Apply(items, q, paymentSpec), nil
}

func (s *FinanceService) MyPayments(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Payment], error) {
	items, err := s.Payments.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.Payment]{}, err
	}
	mine := make([]models.Payment, 0)
	for _, p := range items {
		if p.PayerID == actor.UserID {
			mine = append(mine, p)
		}
	}
	return listing.Apply(mine, q, paymentSpec), nil
}

// VerifyPayment confirms a payment. An inspection fee is reported to
// inspection-service first so the request never lags behind the payment.
func (s *FinanceService) VerifyPayment(ctx context.Context, actor authclient.Identity, id, note string) (*models.Payment, error) {
	p, err := s.pendingPayment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentVerified
	p.Review = s.review(actor.UserID, sanitize.Text(note))
	if p.Purpose == models.PurposeInspectionFee {
		if err := s.inspections.NotifyPayment(ctx, decision(p)); err != nil {
			return nil, fmt.Errorf("failed to update inspection request: %w", err)
		}
	}
	if err := s.Payments.Update(ctx, p); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	s.send(ctx, notify.Request{
		TenantID: p.TenantID,
		UserID:   p.PayerID,
		Role:     authclient.RoleClient,
		Title:    "Payment verified",
		Message:  fmt.Sprintf("Your payment %s of %s has been verified.", p.Reference, p.Amount.StringFixed(2)),
		Type:     "payment_verified",
		Metadata: map[string]string{"payment_id": p.ID.Hex()},
	})
	return p, nil
}

func (s *FinanceService) RejectPayment(ctx context.Context, actor authclient.Identity, id, note string) (*models.Payment, error) {
	p, err := s.pendingPayment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentRejected
	p.Review = s.review(actor.UserID, sanitize.Text(note))
	if err := s.Payments.Update(ctx, p); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	if p.Purpose == models.PurposeInspectionFee {
		if err := s.inspections.NotifyPayment(ctx, decision(p)); err != nil {
			s.log.Warn("failed to report rejected payment", zap.String("payment_id", p.ID.Hex()), zap.Error(err))
		}
	}
	s.send(ctx, notify.Request{
		TenantID: p.TenantID,
		UserID:   p.PayerID,
		Role:     authclient.RoleClient,
		Title:    "Payment rejected",
		Message:  fmt.Sprintf("Your payment %s was rejected. %s", p.Reference, p.Review.Note),
		Type:     "payment_rejected",
		Metadata: map[string]string{"payment_id": p.ID.Hex()},
	})
	return p, nil
}

func (s *FinanceService) pendingPayment(ctx context.Context, actor authclient.Identity, id string) (*models.Payment, error) {
	p, err := find(ctx, s.Payments, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentPending {
		return nil, fmt.Errorf("%w: payment is already %s", apperr.ErrInvalidTransition, p.Status)
	}
	return p, nil
}

func decision(p *models.Payment) clients.PaymentDecision {
	return clients.PaymentDecision{
		RequestID: p.InspectionRequestID,
		TenantID:  p.TenantID,
		PaymentID: p.ID.Hex(),
		Status:    string(p.Status),
		Note:      p.Review.Note,
	}
}
