package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
	"opsuite/pkg/notify"
	"opsuite/pkg/sanitize"
)

var expenseSpec = listing.Spec[models.Expense]{
	SearchFields: func(e models.Expense) []string {
		return []string{e.Title, e.Category, e.Description, e.SubmittedBy}
	},
	Status: func(e models.Expense) string { return string(e.Status) },
	Sorters: map[string]func(a, b models.Expense) int{
		"created_at":  listing.ByTime(func(e models.Expense) time.Time { return e.CreatedAt }),
		"incurred_on": listing.ByTime(func(e models.Expense) time.Time { return e.IncurredOn }),
		"title":       listing.ByString(func(e models.Expense) string { return e.Title }),
		"category":    listing.ByString(func(e models.Expense) string { return e.Category }),
		"status":      listing.ByString(func(e models.Expense) string { return string(e.Status) }),
		"amount":      listing.ByDecimal(func(e models.Expense) decimal.Decimal { return e.Amount }),
	},
	DefaultSort: "created_at",
}

func (s *FinanceService) CreateExpense(ctx context.Context, actor authclient.Identity, in models.ExpenseInput, receipt *Upload) (*models.Expense, error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	in.Description = sanitize.Text(in.Description)
	e := &models.Expense{
		Base:        models.Base{TenantID: actor.TenantID},
		Status:      models.ExpensePending,
		SubmittedBy: actor.UserID,
	}
	e.Apply(in)
	var err error
	if e.Receipt, err = s.storeFile(ctx, actor.TenantID, "expenses", receipt); err != nil {
		return nil, err
	}
	if err := s.Expenses.Create(ctx, e); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	s.announce(ctx, e.TenantID, authclient.RoleFinance, "expense_submitted", "Expense awaiting approval",
		fmt.Sprintf("%s (%s, %s) needs approval.", e.Title, e.Category, e.Amount.StringFixed(2)),
		map[string]string{"expense_id": e.ID.Hex()})
	return e, nil
}

func (s *FinanceService) UpdateExpense(ctx context.Context, actor authclient.Identity, id string, in models.ExpenseInput) (*models.Expense, error) {
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	in.Description = sanitize.Text(in.Description)
	e, err := s.pendingExpense(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if e.SubmittedBy != actor.UserID {
		return nil, fmt.Errorf("%w: only the submitter can edit an expense", apperr.ErrForbidden)
	}
	e.Apply(in)
	if err := s.Expenses.Update(ctx, e); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	return e, nil
}

// DeleteExpense removes a pending expense. Only its submitter may do so.
func (s *FinanceService) DeleteExpense(ctx context.Context, actor authclient.Identity, id string) error {
	e, err := s.pendingExpense(ctx, actor, id)
	if err != nil {
		return err
	}
	if e.SubmittedBy != actor.UserID {
		return fmt.Errorf("%w: only the submitter can delete an expense", apperr.ErrForbidden)
	}
	if err := s.Expenses.Delete(ctx, e.TenantID, e.ID); err != nil {
		return err
	}
	if e.Receipt != nil {
		if err := s.files.Remove(ctx, e.Receipt.Key); err != nil {
			s.log.Warn("failed to remove receipt", zap.String("key", e.Receipt.Key), zap.Error(err))
		}
	}
	s.changed(ctx, actor.TenantID)
	return nil
}

func (s *FinanceService) GetExpense(ctx context.Context, actor authclient.Identity, id string) (*models.Expense, error) {
	return find(ctx, s.Expenses, actor.TenantID, id)
}

func (s *FinanceService) ExpenseReceiptURL(ctx context.Context, actor authclient.Identity, id string) (string, error) {
	e, err := find(ctx, s.Expenses, actor.TenantID, id)
	if err != nil {
		return "", err
	}
	return s.receiptURL(ctx, e.Receipt)
}

func (s *FinanceService) ListExpenses(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Expense], error) {
	items, err := s.Expenses.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.Expense]{}, err
	}
	return listing.Apply(items, q, expenseSpec), nil
}

func (s *FinanceService) ApproveExpense(ctx context.Context, actor authclient.Identity, id, note string) (*models.Expense, error) {
	return s.reviewExpense(ctx, actor, id, models.ExpenseApproved, note)
}

func (s *FinanceService) RejectExpense(ctx context.Context, actor authclient.Identity, id, note string) (*models.Expense, error) {
	return s.reviewExpense(ctx, actor, id, models.ExpenseRejected, note)
}

func (s *FinanceService) reviewExpense(ctx context.Context, actor authclient.Identity, id string, to models.ExpenseStatus, note string) (*models.Expense, error) {
	e, err := s.pendingExpense(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if e.SubmittedBy == actor.UserID {
		return nil, fmt.Errorf("%w: expenses cannot be reviewed by their submitter", apperr.ErrForbidden)
	}
	e.Status = to
	e.Review = s.review(actor.UserID, sanitize.Text(note))
	if err := s.Expenses.Update(ctx, e); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.TenantID)
	s.send(ctx, notify.Request{
		TenantID: e.TenantID,
		UserID:   e.SubmittedBy,
		Title:    "Expense " + string(to),
		Message:  fmt.Sprintf("Your expense %q was %s.", e.Title, to),
		Type:     "expense_" + string(to),
		Metadata: map[string]string{"expense_id": e.ID.Hex()},
	})
	return e, nil
}

func (s *FinanceService) pendingExpense(ctx context.Context, actor authclient.Identity, id string) (*models.Expense, error) {
	e, err := find(ctx, s.Expenses, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != models.ExpensePending {
		return nil, fmt.Errorf("%w: expense is already %s", apperr.ErrInvalidTransition, e.Status)
	}
	return e, nil
}
