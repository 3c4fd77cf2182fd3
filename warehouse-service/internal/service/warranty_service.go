package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
	"opsuite/pkg/sanitize"
	"opsuite/pkg/validator"
	"opsuite/warehouse-service/internal/models"
)

type WarrantyRepository interface {
	Create(ctx context.Context, w *models.Warranty) error
	Update(ctx context.Context, w *models.Warranty) error
	Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error
	FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*models.Warranty, error)
	List(ctx context.Context, tenantID string) ([]models.Warranty, error)
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Warranty, error)
}

type WarrantyService struct {
	repo WarrantyRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewWarrantyService(repo WarrantyRepository, log *zap.Logger) *WarrantyService {
	return &WarrantyService{repo: repo, log: log, now: func() time.Time { return time.Now().UTC() }}
}

var warrantySpec = listing.Spec[models.Warranty]{
	SearchFields: func(w models.Warranty) []string {
		return []string{w.ProductName, w.SerialNumber, w.CustomerName, w.CustomerEmail}
	},
	Status: func(w models.Warranty) string { return string(w.Status) },
	Sorters: map[string]func(a, b models.Warranty) int{
		"created_at":    listing.ByTime(func(w models.Warranty) time.Time { return w.CreatedAt }),
		"purchase_date": listing.ByTime(func(w models.Warranty) time.Time { return w.PurchaseDate }),
		"expiry_date":   listing.ByTime(func(w models.Warranty) time.Time { return w.ExpiryDate }),
		"product_name":  listing.ByString(func(w models.Warranty) string { return w.ProductName }),
		"customer_name": listing.ByString(func(w models.Warranty) string { return w.CustomerName }),
	},
	DefaultSort: "created_at",
}

func cleanWarranty(in *models.WarrantyInput) {
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.ProductName = sanitize.Text(in.ProductName)
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	in.CustomerName = sanitize.Text(in.CustomerName)
	in.CustomerEmail = strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	in.Notes = sanitize.Text(in.Notes)
}

func (s *WarrantyService) present(w *models.Warranty) *models.Warranty {
	w.Status = w.StatusAt(s.now())
	return w
}

func (s *WarrantyService) Create(ctx context.Context, actor authclient.Identity, in models.WarrantyInput) (*models.Warranty, error) {
	cleanWarranty(&in)
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	w := &models.Warranty{TenantID: actor.TenantID}
	w.Apply(in)
	if err := s.repo.Create(ctx, w); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, fmt.Errorf("%w: serial number %s is already registered", apperr.ErrDuplicate, w.SerialNumber)
		}
		return nil, err
	}
	return s.present(w), nil
}

func (s *WarrantyService) Update(ctx context.Context, actor authclient.Identity, id string, in models.WarrantyInput) (*models.Warranty, error) {
	cleanWarranty(&in)
	if err := in.Validate(s.now()); err != nil {
		return nil, err
	}
	w, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	w.Apply(in)
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return s.present(w), nil
}

func (s *WarrantyService) Delete(ctx context.Context, actor authclient.Identity, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, actor.TenantID, oid)
}

func (s *WarrantyService) load(ctx context.Context, actor authclient.Identity, id string) (*models.Warranty, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, actor.TenantID, oid)
}

func (s *WarrantyService) Get(ctx context.Context, actor authclient.Identity, id string) (*models.Warranty, error) {
	w, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.present(w), nil
}

// List filters on the status derived at request time.
func (s *WarrantyService) List(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.Warranty], error) {
	all, err := s.repo.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.Warranty]{}, err
	}
	for i := range all {
		s.present(&all[i])
	}
	return listing.Apply(all, q, warrantySpec), nil
}

// AddClaim opens a claim. Expired warranties take no new claims.
func (s *WarrantyService) AddClaim(ctx context.Context, actor authclient.Identity, id string, in models.ClaimInput) (*models.Warranty, error) {
	in.Description = sanitize.Text(in.Description)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	w, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if w.StatusAt(now) == models.WarrantyExpired {
		return nil, fmt.Errorf("%w: warranty expired on %s", apperr.ErrConflict, w.ExpiryDate.Format(time.DateOnly))
	}
	w.Claims = append(w.Claims, models.Claim{
		ID:          uuid.NewString(),
		Description: in.Description,
		Status:      models.ClaimOpen,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
	})
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return s.present(w), nil
}

func (s *WarrantyService) UpdateClaim(ctx context.Context, actor authclient.Identity, id, claimID string, in models.ClaimUpdate) (*models.Warranty, error) {
	in.Resolution = sanitize.Text(in.Resolution)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	w, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	claim := w.Claim(claimID)
	if claim == nil {
		return nil, fmt.Errorf("%w: claim %s", apperr.ErrNotFound, claimID)
	}
	if !claim.Status.CanMoveTo(in.Status) {
		return nil, fmt.Errorf("%w: claim %s -> %s", apperr.ErrInvalidTransition, claim.Status, in.Status)
	}
	claim.Status = in.Status
	if in.Resolution != "" {
		claim.Resolution = in.Resolution
	}
	if in.Status == models.ClaimResolved || in.Status == models.ClaimRejected {
		now := s.now()
		claim.ResolvedAt = &now
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return s.present(w), nil
}
