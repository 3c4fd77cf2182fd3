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

var estimationSpec = listing.Spec[models.Estimation]{
	SearchFields: func(e models.Estimation) []string {
		return []string{e.ProjectName, e.Title, e.InspectionRequestID}
	},
	Status: func(e models.Estimation) string { return string(e.Status) },
	Sorters: map[string]func(a, b models.Estimation) int{
		"created_at":   listing.ByTime(func(e models.Estimation) time.Time { return e.CreatedAt }),
		"updated_at":   listing.ByTime(func(e models.Estimation) time.Time { return e.UpdatedAt }),
		"project_name": listing.ByString(func(e models.Estimation) string { return e.ProjectName }),
		"title":        listing.ByString(func(e models.Estimation) string { return e.Title }),
		"status":       listing.ByString(func(e models.Estimation) string { return string(e.Status) }),
		"total":        listing.ByDecimal(func(e models.Estimation) decimal.Decimal { return e.Total }),
	},
	DefaultSort: "created_at",
}

func (s *FinanceService) CreateEstimation(ctx context.Context, actor authclient.Identity, in models.EstimationInput) (*models.Estimation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	e := &models.Estimation{
		Base:      models.Base{TenantID: actor.TenantID},
		Status:    models.EstimationDraft,
		CreatedBy: actor.UserID,
	}
	e.Apply(in)
	if err := s.Estimations.Create(ctx, e); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return e, nil
}

// UpdateEstimation replaces the lines of a draft.
func (s *FinanceService) UpdateEstimation(ctx context.Context, actor authclient.Identity, id string, in models.EstimationInput) (*models.Estimation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	e, err := find(ctx, s.Estimations, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EstimationDraft {
		return nil, fmt.Errorf("%w: only draft estimations can be edited", apperr.ErrConflict)
	}
	e.Apply(in)
	if err := s.Estimations.Update(ctx, e); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return e, nil
}

func (s *FinanceService) GetEstimation(ctx context.Context, actor authclient.Identity, id string) (*models.Estimation, error) {
	return find(ctx, s.Estimations, actor.TenantID, id)
}

func (s *FinanceService) ListEstimations(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Estimation], error) {
	items, err := s.Estimations.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.Estimation]{}, err
	}
	return listing.Apply(items, q, estimationSpec), nil
}

// EstimationsForRequest returns every estimation linked to an inspection
// request, newest first.
func (s *FinanceService) EstimationsForRequest(ctx context.Context, actor authclient.Identity, requestID string) ([]models.Estimation, error) {
	items, err := s.Estimations.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Estimation, 0)
	for _, e := range items {
		if e.InspectionRequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *FinanceService) SubmitEstimation(ctx context.Context, actor authclient.Identity, id string) (*models.Estimation, error) {
	e, err := s.moveEstimation(ctx, actor, id, models.EstimationPendingApproval, "")
	if err != nil {
		return nil, err
	}
	s.announce(ctx, e.TenantID, authclient.RoleFinance, "estimation_submitted", "Estimation awaiting approval",
		fmt.Sprintf("Estimation %q for %s needs review.", e.Title, e.ProjectName),
		map[string]string{"estimation_id": e.ID.Hex()})
	return e, nil
}

func (s *FinanceService) ApproveEstimation(ctx context.Context, actor authclient.Identity, id, note string) (*models.Estimation, error) {
	e, err := s.moveEstimation(ctx, actor, id, models.EstimationApproved, note)
	if err != nil {
		return nil, err
	}
	s.send(ctx, notify.Request{
		TenantID: e.TenantID,
		UserID:   e.CreatedBy,
		Title:    "Estimation approved",
		Message:  fmt.Sprintf("Estimation %q was approved.", e.Title),
		Type:     "estimation_approved",
		Metadata: map[string]string{"estimation_id": e.ID.Hex()},
	})
	return e, nil
}

func (s *FinanceService) RejectEstimation(ctx context.Context, actor authclient.Identity, id, note string) (*models.Estimation, error) {
	e, err := s.moveEstimation(ctx, actor, id, models.EstimationRejected, note)
	if err != nil {
		return nil, err
	}
	s.send(ctx, notify.Request{
		TenantID: e.TenantID,
		UserID:   e.CreatedBy,
		Title:    "Estimation rejected",
		Message:  fmt.Sprintf("Estimation %q was rejected: %s", e.Title, e.Review.Note),
		Type:     "estimation_rejected",
		Metadata: map[string]string{"estimation_id": e.ID.Hex()},
	})
	return e, nil
}

// ReviseEstimation reopens a rejected estimation as a draft.
func (s *FinanceService) ReviseEstimation(ctx context.Context, actor authclient.Identity, id string) (*models.Estimation, error) {
	return s.moveEstimation(ctx, actor, id, models.EstimationDraft, "")
}

func (s *FinanceService) moveEstimation(ctx context.Context, actor authclient.Identity, id string, to models.EstimationStatus, note string) (*models.Estimation, error) {
	e, err := find(ctx, s.Estimations, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !e.Status.CanMoveTo(to) {
		return nil, fmt.Errorf("%w: estimation cannot move from %s to %s", apperr.ErrInvalidTransition, e.Status, to)
	}
	if to == models.EstimationApproved || to == models.EstimationRejected {
		e.Review = s.review(actor.UserID, sanitize.Text(note))
	}
	e.Status = to
	if err := s.Estimations.Update(ctx, e); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return e, nil
}
