package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/finance-service/internal/clients"
	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/cache"
	"opsuite/pkg/notify"
	"opsuite/pkg/storage"
)

// Store is a tenant-scoped document store.
type Store[T any] interface {
	Create(ctx context.Context, doc *T) error
	Update(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*T, error)
	List(ctx context.Context, tenantID string) ([]T, error)
	Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error
}

type Sequencer interface {
	Next(ctx context.Context, tenantID, name string) (int64, error)
}

type Inspections interface {
	Get(ctx context.Context, token, id string) (*clients.InspectionSummary, error)
	NotifyPayment(ctx context.Context, d clients.PaymentDecision) error
}

type Stores struct {
	Estimations    Store[models.Estimation]
	Quotations     Store[models.Quotation]
	Payments       Store[models.Payment]
	PurchaseOrders Store[models.PurchaseOrder]
	Expenses       Store[models.Expense]
	Sequences      Sequencer
}

type FinanceService struct {
	Stores
	files       storage.Store
	cache       cache.Cache
	inspections Inspections
	notify      notify.Sender
	events      notify.Publisher
	log         *zap.Logger
	now         func() time.Time
}

func NewFinanceService(stores Stores, files storage.Store, c cache.Cache, inspections Inspections,
	sender notify.Sender, events notify.Publisher, log *zap.Logger) *FinanceService {
	return &FinanceService{
		Stores:      stores,
		files:       files,
		cache:       c,
		inspections: inspections,
		notify:      sender,
		events:      events,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Upload is a file received with a multipart request.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.ErrInvalidID
	}
	return oid, nil
}

func find[T any](ctx context.Context, store Store[T], tenantID, id string) (*T, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return store.FindByID(ctx, tenantID, oid)
}

// number formats a per-tenant document number such as QT-2026-000042.
func (s *FinanceService) number(ctx context.Context, tenantID, prefix string) (string, error) {
	n, err := s.Sequences.Next(ctx, tenantID, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, s.now().Year(), n), nil
}

func (s *FinanceService) review(by, note string) *models.Review {
	return &models.Review{By: by, Note: note, At: s.now()}
}

// changed drops the cached dashboard after any finance write.
func (s *FinanceService) changed(ctx context.Context, tenantID string) {
	if err := s.cache.Delete(ctx, dashboardKey(tenantID)); err != nil {
		s.log.Warn("failed to invalidate dashboard", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func (s *FinanceService) send(ctx context.Context, req notify.Request) {
	if req.UserID == "" {
		return
	}
	if err := s.notify.Send(ctx, req); err != nil {
		s.log.Warn("notification failed", zap.String("type", req.Type), zap.Error(err))
	}
}

// announce tells every user with role in the tenant about an event.
func (s *FinanceService) announce(ctx context.Context, tenantID, role, eventType, title, msg string, extra map[string]string) {
	err := s.events.Publish(ctx, notify.FinanceEventsChannel, notify.Event{
		TenantID:  tenantID,
		Role:      role,
		EventType: eventType,
		Title:     title,
		Message:   msg,
		ExtraData: extra,
	})
	if err != nil {
		s.log.Warn("event publish failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *FinanceService) storeFile(ctx context.Context, tenantID, kind string, up *Upload) (*storage.Object, error) {
	if up == nil {
		return nil, nil
	}
	if err := storage.ValidateUpload(up.FileName, up.ContentType, up.Size); err != nil {
		return nil, err
	}
	f, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload", apperr.ErrValidation)
	}
	defer f.Close()
	obj, err := s.files.Put(ctx, kind+"/"+tenantID, up.FileName, up.ContentType, f, up.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s receipt: %w", kind, err)
	}
	return obj, nil
}

// ReceiptURL returns a short-lived link to a stored receipt.
func (s *FinanceService) receiptURL(ctx context.Context, obj *storage.Object) (string, error) {
	if obj == nil {
		return "", fmt.Errorf("%w: no receipt attached", apperr.ErrNotFound)
	}
	return s.files.PresignedURL(ctx, obj.Key, 15*time.Minute)
}
