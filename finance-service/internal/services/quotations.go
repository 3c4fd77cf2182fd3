package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
	"opsuite/pkg/notify"
	"opsuite/pkg/sanitize"
)

func quotationSpec() listing.Spec[models.Quotation] {
	return listing.Spec[models.Quotation]{
		SearchFields: func(q models.Quotation) []string {
			return []string{q.QuotationNo, q.ClientID, q.InspectionRequestID, q.Notes}
		},
		Status: func(q models.Quotation) string { return string(q.Status) },
		Sorters: map[string]func(a, b models.Quotation) int{
			"created_at":   listing.ByTime(func(q models.Quotation) time.Time { return q.CreatedAt }),
			"updated_at":   listing.ByTime(func(q models.Quotation) time.Time { return q.UpdatedAt }),
			"valid_until":  listing.ByTime(func(q models.Quotation) time.Time { return q.ValidUntil }),
			"quotation_no": listing.ByString(func(q models.Quotation) string { return q.QuotationNo }),
			"status":       listing.ByString(func(q models.Quotation) string { return string(q.Status) }),
			"total":        listing.ByDecimal(func(q models.Quotation) decimal.Decimal { return q.Total }),
		},
		DefaultSort: "created_at",
	}
}

// present replaces the stored status with the one callers should see.
func (s *FinanceService) present(items []models.Quotation) []models.Quotation {
	now := s.now()
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}
	return items
}

// GenerateQuotation prices an approved estimation for a client. When no
// client is given it is taken from the linked inspection request.
func (s *FinanceService) GenerateQuotation(ctx context.Context, actor authclient.Identity, token, estimationID string, in models.QuotationInput) (*models.Quotation, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return nil, err
	}
	e, err := find(ctx, s.Estimations, actor.TenantID, estimationID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EstimationApproved {
		return nil, fmt.Errorf("%w: only approved estimations can be quoted", apperr.ErrConflict)
	}

	clientID := in.ClientID
	if clientID == "" && e.InspectionRequestID != "" {
		req, err := s.inspections.Get(ctx, token, e.InspectionRequestID)
		if err != nil {
			return nil, fmt.Errorf("failed to load inspection request: %w", err)
		}
		clientID = req.ClientID
	}
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required when the estimation has no inspection request", apperr.ErrValidation)
	}

	items := e.Lines()
	if e.Contingency.IsPositive() {
		items = append(items, models.CostLine{
			Description: fmt.Sprintf("Contingency (%s%%)", e.ContingencyPercent.String()),
			Quantity:    decimal.NewFromInt(1),
			UnitCost:    e.Contingency,
		})
	}
	no, err := s.number(ctx, actor.TenantID, "QT")
	if err != nil {
		return nil, err
	}
	q := &models.Quotation{
		Base:                models.Base{TenantID: actor.TenantID},
		QuotationNo:         no,
		EstimationID:        e.ID.Hex(),
		InspectionRequestID: e.InspectionRequestID,
		ClientID:            clientID,
		Items:               nonNilLines(items),
		Status:              models.QuotationDraft,
		CreatedBy:           actor.UserID,
	}
	s.applyTerms(q, in, now)
	if err := s.Quotations.Create(ctx, q); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return q, nil
}

func (s *FinanceService) applyTerms(q *models.Quotation, in models.QuotationInput, now time.Time) {
	if in.ClientID != "" {
		q.ClientID = in.ClientID
	}
	q.DiscountPercent = in.DiscountPercent
	q.TaxPercent = in.TaxPercent
	q.Notes = sanitize.Text(in.Notes)
	switch {
	case in.ValidUntil != nil:
		q.ValidUntil = in.ValidUntil.UTC()
	case q.ValidUntil.IsZero():
		q.ValidUntil = now.Add(models.DefaultQuotationValidity)
	}
	q.Recalculate()
}

func nonNilLines(lines []models.CostLine) []models.CostLine {
	if lines == nil {
		return []models.CostLine{}
	}
	return lines
}

func (s *FinanceService) UpdateQuotation(ctx context.Context, actor authclient.Identity, id string, in models.QuotationInput) (*models.Quotation, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return nil, err
	}
	q, err := find(ctx, s.Quotations, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuotationDraft {
		return nil, fmt.Errorf("%w: only draft quotations can be edited", apperr.ErrConflict)
	}
	s.applyTerms(q, in, now)
	if err := s.Quotations.Update(ctx, q); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return q, nil
}

// loadQuotation returns a quotation the actor may see. Clients see sent
// quotations addressed to them.
func (s *FinanceService) loadQuotation(ctx context.Context, actor authclient.Identity, id string) (*models.Quotation, error) {
	q, err := find(ctx, s.Quotations, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && (q.ClientID != actor.UserID || q.Status == models.QuotationDraft) {
		return nil, apperr.ErrNotFound
	}
	return q, nil
}

func (s *FinanceService) GetQuotation(ctx context.Context, actor authclient.Identity, id string) (*models.Quotation, error) {
	q, err := s.loadQuotation(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	q.Status = q.EffectiveStatus(s.now())
	return q, nil
}

func (s *FinanceService) ListQuotations(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Quotation], error) {
	items, err := s.Quotations.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.Quotation]{}, err
	}
	return listing.Apply(s.present(items), q, quotationSpec()), nil
}

func (s *FinanceService) MyQuotations(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Quotation], error) {
	items, err := s.Quotations.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.Quotation]{}, err
	}
	mine := make([]models.Quotation, 0)
	for _, it := range items {
		if it.ClientID == actor.UserID && it.Status != models.QuotationDraft {
			mine = append(mine, it)
		}
	}
	return listing.Apply(s.present(mine), q, quotationSpec()), nil
}

func (s *FinanceService) SendQuotation(ctx context.Context, actor authclient.Identity, id string) (*models.Quotation, error) {
	q, err := find(ctx, s.Quotations, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if st := q.EffectiveStatus(now); st != models.QuotationDraft {
		return nil, fmt.Errorf("%w: quotation is %s", apperr.ErrInvalidTransition, st)
	}
	q.Status = models.QuotationSent
	q.SentAt = &now
	if err := s.Quotations.Update(ctx, q); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	s.send(ctx, notify.Request{
		TenantID: q.TenantID,
		UserID:   q.ClientID,
		Role:     authclient.RoleClient,
		Title:    "New quotation",
		Message: fmt.Sprintf("Quotation %s for %s is ready. It is valid until %s.",
			q.QuotationNo, q.Total.StringFixed(2), q.ValidUntil.Format("2006-01-02")),
		Type:     "quotation_sent",
		Metadata: map[string]string{"quotation_id": q.ID.Hex()},
	})
	return q, nil
}

func (s *FinanceService) AcceptQuotation(ctx context.Context, actor authclient.Identity, id string) (*models.Quotation, error) {
	return s.decideQuotation(ctx, actor, id, models.QuotationAccepted)
}

func (s *FinanceService) RejectQuotation(ctx context.Context, actor authclient.Identity, id string) (*models.Quotation, error) {
	return s.decideQuotation(ctx, actor, id, models.QuotationRejected)
}

func (s *FinanceService) decideQuotation(ctx context.Context, actor authclient.Identity, id string, to models.QuotationStatus) (*models.Quotation, error) {
	q, err := s.loadQuotation(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if st := q.EffectiveStatus(now); st != models.QuotationSent {
		return nil, fmt.Errorf("%w: quotation is %s", apperr.ErrInvalidTransition, st)
	}
	q.Status = to
	q.DecidedAt = &now
	if err := s.Quotations.Update(ctx, q); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	s.announce(ctx, q.TenantID, authclient.RoleFinance, "quotation_"+string(to), "Quotation "+string(to),
		fmt.Sprintf("Quotation %s was %s.", q.QuotationNo, to),
		map[string]string{"quotation_id": q.ID.Hex()})
	return q, nil
}
