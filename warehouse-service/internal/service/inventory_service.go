package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/export"
	"opsuite/pkg/listing"
	"opsuite/pkg/notify"
	"opsuite/pkg/sanitize"
	"opsuite/warehouse-service/internal/models"
)

const lowStockTTL = 5 * time.Minute

type InventoryRepository interface {
	Create(ctx context.Context, item *models.InventoryItem) error
	Update(ctx context.Context, item *models.InventoryItem) error
	Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error
	FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*models.InventoryItem, error)
	List(ctx context.Context, tenantID string) ([]models.InventoryItem, error)
	ApplyMovement(ctx context.Context, tenantID string, id primitive.ObjectID, t models.MovementType, qty decimal.Decimal) (*models.InventoryItem, error)
	AddMovement(ctx context.Context, m *models.StockMovement) error
	Movements(ctx context.Context, tenantID string, itemID primitive.ObjectID) ([]models.StockMovement, error)
}

type InventoryService struct {
	repo   InventoryRepository
	cache  cache.Cache
	events notify.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewInventoryService(repo InventoryRepository, c cache.Cache, events notify.Publisher, log *zap.Logger) *InventoryService {
	return &InventoryService{
		repo:   repo,
		cache:  c,
		events: events,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var inventorySpec = listing.Spec[models.InventoryItem]{
	SearchFields: func(i models.InventoryItem) []string {
		return []string{i.SKU, i.Name, i.Category, i.Location}
	},
	Status: func(i models.InventoryItem) string { return i.StockState() },
	Sorters: map[string]func(a, b models.InventoryItem) int{
		"created_at": listing.ByTime(func(i models.InventoryItem) time.Time { return i.CreatedAt }),
		"updated_at": listing.ByTime(func(i models.InventoryItem) time.Time { return i.UpdatedAt }),
		"sku":        listing.ByString(func(i models.InventoryItem) string { return i.SKU }),
		"name":       listing.ByString(func(i models.InventoryItem) string { return i.Name }),
		"category":   listing.ByString(func(i models.InventoryItem) string { return i.Category }),
		"quantity":   listing.ByDecimal(func(i models.InventoryItem) decimal.Decimal { return i.Quantity }),
		"unit_cost":  listing.ByDecimal(func(i models.InventoryItem) decimal.Decimal { return i.UnitCost }),
	},
	DefaultSort: "created_at",
}

func lowStockKey(tenantID string) string {
	return "low_stock:" + tenantID
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.ErrInvalidID
	}
	return oid, nil
}

func clean(in *models.ItemInput) {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Name = sanitize.Text(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Unit = strings.TrimSpace(in.Unit)
	in.Location = sanitize.Text(in.Location)
}

func (s *InventoryService) stockChanged(ctx context.Context, tenantID string) {
	if err := s.cache.Delete(ctx, lowStockKey(tenantID)); err != nil {
		s.log.Warn("failed to invalidate low stock cache", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func (s *InventoryService) Create(ctx context.Context, actor authclient.Identity, in models.ItemInput) (*models.InventoryItem, error) {
	clean(&in)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	item := &models.InventoryItem{TenantID: actor.TenantID, Active: true, Quantity: in.Quantity}
	item.Apply(in)
	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, fmt.Errorf("%w: sku %s already exists", apperr.ErrDuplicate, item.SKU)
		}
		return nil, err
	}
	if item.Quantity.IsPositive() {
		s.record(ctx, &models.StockMovement{
			TenantID:  item.TenantID,
			ItemID:    item.ID,
			Type:      models.MovementIn,
			Quantity:  item.Quantity,
			Before:    decimal.Zero,
			After:     item.Quantity,
			Reference: "opening stock",
			CreatedBy: actor.UserID,
		})
	}
	s.stockChanged(ctx, actor.TenantID)
	return item, nil
}

func (s *InventoryService) Update(ctx context.Context, actor authclient.Identity, id string, in models.ItemInput) (*models.InventoryItem, error) {
	clean(&in)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	item.Apply(in)
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	s.stockChanged(ctx, actor.TenantID)
	return item, nil
}

func (s *InventoryService) Delete(ctx context.Context, actor authclient.Identity, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, actor.TenantID, oid); err != nil {
		return err
	}
	s.stockChanged(ctx, actor.TenantID)
	return nil
}

func (s *InventoryService) Get(ctx context.Context, actor authclient.Identity, id string) (*models.InventoryItem, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, actor.TenantID, oid)
}

func (s *InventoryService) List(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.InventoryItem], error) {
	items, err := s.repo.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.InventoryItem]{}, err
	}
	return listing.Apply(items, q, inventorySpec), nil
}

// Move applies a stock movement. Stock never goes below zero.
func (s *InventoryService) Move(ctx context.Context, actor authclient.Identity, id string, in models.MovementInput) (*models.StockMovement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	before, err := s.repo.ApplyMovement(ctx, actor.TenantID, oid, in.Type, in.Quantity)
	if err != nil {
		return nil, err
	}
	m := &models.StockMovement{
		TenantID:  actor.TenantID,
		ItemID:    oid,
		Type:      in.Type,
		Quantity:  in.Quantity,
		Before:    before.Quantity,
		After:     in.Type.Resulting(before.Quantity, in.Quantity),
		Reference: strings.TrimSpace(in.Reference),
		Note:      sanitize.Text(in.Note),
		CreatedBy: actor.UserID,
		CreatedAt: s.now(),
	}
	s.record(ctx, m)
	s.stockChanged(ctx, actor.TenantID)

	after := *before
	after.Quantity = m.After
	if after.LowStock() && !before.LowStock() {
		s.publishLowStock(ctx, &after)
	}
	return m, nil
}

// record stores a movement. The stock change already happened, so a failure
// here is logged rather than returned.
func (s *InventoryService) record(ctx context.Context, m *models.StockMovement) {
	if err := s.repo.AddMovement(ctx, m); err != nil {
		s.log.Error("failed to record stock movement",
			zap.String("item_id", m.ItemID.Hex()), zap.String("type", string(m.Type)), zap.Error(err))
	}
}

func (s *InventoryService) publishLowStock(ctx context.Context, item *models.InventoryItem) {
	err := s.events.Publish(ctx, notify.WarehouseEventsChannel, notify.Event{
		TenantID:  item.TenantID,
		Role:      authclient.RoleWarehouse,
		EventType: "low_stock",
		Title:     "Low stock",
		Message: fmt.Sprintf("%s (%s) is down to %s %s, reorder level %s.",
			item.Name, item.SKU, item.Quantity.String(), item.Unit, item.ReorderLevel.String()),
		ExtraData: map[string]string{"item_id": item.ID.Hex(), "sku": item.SKU},
	})
	if err != nil {
		s.log.Warn("event publish failed", zap.String("event_type", "low_stock"), zap.Error(err))
	}
}

func (s *InventoryService) Movements(ctx context.Context, actor authclient.Identity, id string) ([]models.StockMovement, error) {
	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.repo.Movements(ctx, actor.TenantID, item.ID)
}

// LowStock lists active items at or below their reorder level, lowest
// stock first.
func (s *InventoryService) LowStock(ctx context.Context, actor authclient.Identity) ([]models.InventoryItem, error) {
	var cached []models.InventoryItem
	if err := s.cache.Get(ctx, lowStockKey(actor.TenantID), &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("low stock cache read failed", zap.Error(err))
	}

	items, err := s.repo.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	low := make([]models.InventoryItem, 0)
	for _, it := range items {
		if it.LowStock() {
			low = append(low, it)
		}
	}
	low = listing.Sort(low, listing.Query{Sort: "quantity", Order: "asc"}, inventorySpec)

	if err := s.cache.Set(ctx, lowStockKey(actor.TenantID), low, lowStockTTL); err != nil {
		s.log.Warn("low stock cache write failed", zap.Error(err))
	}
	return low, nil
}

// Export renders the inventory matching q as a workbook.
func (s *InventoryService) Export(ctx context.Context, actor authclient.Identity, q listing.Query) ([]byte, error) {
	items, err := s.repo.List(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	q = q.Normalize()
	items = listing.Sort(listing.Filter(items, q, inventorySpec), q, inventorySpec)

	sheet := export.Sheet{
		Name:    "Inventory",
		Headers: []string{"SKU", "Name", "Category", "Unit", "Quantity", "Reorder Level", "Unit Cost", "Stock Value", "Location", "State"},
		Widths:  []float64{16, 30, 16, 8, 12, 14, 12, 14, 18, 12},
	}
	for _, it := range items {
		sheet.Rows = append(sheet.Rows, []any{
			it.SKU, it.Name, it.Category, it.Unit,
			it.Quantity.InexactFloat64(), it.ReorderLevel.InexactFloat64(),
			it.UnitCost.InexactFloat64(), it.StockValue().InexactFloat64(),
			it.Location, it.StockState(),
		})
	}
	return export.XLSX(sheet)
}
