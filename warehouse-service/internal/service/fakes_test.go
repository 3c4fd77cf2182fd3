package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/notify"
	"opsuite/warehouse-service/internal/models"
)

type memInventory struct {
	mu        sync.Mutex
	items     []models.InventoryItem
	movements []models.StockMovement
	lists     int
}

func (m *memInventory) index(tenantID string, id primitive.ObjectID) int {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].TenantID == tenantID {
			return i
		}
	}
	return -1
}

func (m *memInventory) Create(_ context.Context, item *models.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.TenantID == item.TenantID && it.SKU == item.SKU {
			return apperr.ErrDuplicate
		}
	}
	item.ID = primitive.NewObjectID()
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	m.items = append(m.items, *item)
	return nil
}

func (m *memInventory) Update(_ context.Context, item *models.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(item.TenantID, item.ID)
	if i < 0 {
		return apperr.ErrNotFound
	}
	qty := m.items[i].Quantity
	m.items[i] = *item
	m.items[i].Quantity = qty
	return nil
}

func (m *memInventory) Delete(_ context.Context, tenantID string, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(tenantID, id)
	if i < 0 {
		return apperr.ErrNotFound
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	return nil
}

func (m *memInventory) FindByID(_ context.Context, tenantID string, id primitive.ObjectID) (*models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(tenantID, id)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	item := m.items[i]
	return &item, nil
}

func (m *memInventory) List(_ context.Context, tenantID string) ([]models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := []models.InventoryItem{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].TenantID == tenantID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memInventory) ApplyMovement(_ context.Context, tenantID string, id primitive.ObjectID, t models.MovementType, qty decimal.Decimal) (*models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(tenantID, id)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	before := m.items[i]
	if t == models.MovementOut && before.Quantity.LessThan(qty) {
		return nil, fmt.Errorf("%w: insufficient stock", apperr.ErrConflict)
	}
	m.items[i].Quantity = t.Resulting(before.Quantity, qty)
	return &before, nil
}

func (m *memInventory) AddMovement(_ context.Context, mv *models.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv.ID = primitive.NewObjectID()
	m.movements = append(m.movements, *mv)
	return nil
}

func (m *memInventory) Movements(_ context.Context, tenantID string, itemID primitive.ObjectID) ([]models.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.StockMovement{}
	for i := len(m.movements) - 1; i >= 0; i-- {
		if m.movements[i].TenantID == tenantID && m.movements[i].ItemID == itemID {
			out = append(out, m.movements[i])
		}
	}
	return out, nil
}

type memWarranties struct {
	mu   sync.Mutex
	docs []models.Warranty
}

func (m *memWarranties) index(tenantID string, id primitive.ObjectID) int {
	for i := range m.docs {
		if m.docs[i].ID == id && m.docs[i].TenantID == tenantID {
			return i
		}
	}
	return -1
}

func (m *memWarranties) Create(_ context.Context, w *models.Warranty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.TenantID == w.TenantID && d.SerialNumber == w.SerialNumber {
			return apperr.ErrDuplicate
		}
	}
	w.ID = primitive.NewObjectID()
	w.CreatedAt = time.Now().UTC()
	w.UpdatedAt = w.CreatedAt
	m.docs = append(m.docs, *w)
	return nil
}

func (m *memWarranties) Update(_ context.Context, w *models.Warranty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(w.TenantID, w.ID)
	if i < 0 {
		return apperr.ErrNotFound
	}
	m.docs[i] = *w
	return nil
}

func (m *memWarranties) Delete(_ context.Context, tenantID string, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(tenantID, id)
	if i < 0 {
		return apperr.ErrNotFound
	}
	m.docs = append(m.docs[:i], m.docs[i+1:]...)
	return nil
}

func (m *memWarranties) FindByID(_ context.Context, tenantID string, id primitive.ObjectID) (*models.Warranty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(tenantID, id)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	w := m.docs[i]
	return &w, nil
}

func (m *memWarranties) List(_ context.Context, tenantID string) ([]models.Warranty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Warranty{}
	for i := len(m.docs) - 1; i >= 0; i-- {
		if m.docs[i].TenantID == tenantID {
			out = append(out, m.docs[i])
		}
	}
	return out, nil
}

func (m *memWarranties) ExpiringBetween(_ context.Context, from, to time.Time) ([]models.Warranty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Warranty{}
	for _, w := range m.docs {
		if !w.ExpiryDate.Before(from) && w.ExpiryDate.Before(to) {
			out = append(out, w)
		}
	}
	return out, nil
}

type recorder struct {
	mu       sync.Mutex
	requests []notify.Request
	events   []notify.Event
}

func (r *recorder) Send(_ context.Context, req notify.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func (r *recorder) Publish(_ context.Context, _ string, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

const tenantA = "tenant-a"

var (
	keeper   = authclient.Identity{UserID: "wh-1", TenantID: tenantA, Role: authclient.RoleWarehouse}
	outsider = authclient.Identity{UserID: "wh-9", TenantID: "tenant-b", Role: authclient.RoleWarehouse}
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type env struct {
	items      *memInventory
	warranties *memWarranties
	events     *recorder
	cache      *cache.Memory
	inventory  *InventoryService
	warranty   *WarrantyService
	notifier   *WarrantyNotifier
}

func newEnv() *env {
	e := &env{
		items:      &memInventory{},
		warranties: &memWarranties{},
		events:     &recorder{},
		cache:      cache.NewMemory(),
	}
	log := zap.NewNop()
	clock := func() time.Time { return fixedNow }

	e.inventory = NewInventoryService(e.items, e.cache, e.events, log)
	e.inventory.now = clock
	e.warranty = NewWarrantyService(e.warranties, log)
	e.warranty.now = clock
	e.notifier = NewWarrantyNotifier(e.warranties, e.events, e.events, log, time.Hour)
	e.notifier.now = clock
	return e
}
