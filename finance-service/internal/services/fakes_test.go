package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/finance-service/internal/clients"
	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/notify"
	"opsuite/pkg/storage"
)

type record[T any] interface {
	*T
	GetBase() *models.Base
}

// memStore keeps documents in insertion order, newest last.
type memStore[T any, P record[T]] struct {
	mu   sync.Mutex
	docs []T
}

func (m *memStore[T, P]) Create(_ context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := P(doc).GetBase()
	b.ID = primitive.NewObjectID()
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *memStore[T, P]) index(tenantID string, id primitive.ObjectID) int {
	for i := range m.docs {
		b := P(&m.docs[i]).GetBase()
		if b.ID == id && b.TenantID == tenantID {
			return i
		}
	}
	return -1
}

func (m *memStore[T, P]) Update(_ context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := P(doc).GetBase()
	i := m.index(b.TenantID, b.ID)
	if i < 0 {
		return apperr.ErrNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	m.docs[i] = *doc
	return nil
}

func (m *memStore[T, P]) FindByID(_ context.Context, tenantID string, id primitive.ObjectID) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(tenantID, id)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	doc := m.docs[i]
	return &doc, nil
}

func (m *memStore[T, P]) List(_ context.Context, tenantID string) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []T{}
	for i := len(m.docs) - 1; i >= 0; i-- {
		if P(&m.docs[i]).GetBase().TenantID == tenantID {
			out = append(out, m.docs[i])
		}
	}
	return out, nil
}

func (m *memStore[T, P]) Delete(_ context.Context, tenantID string, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(tenantID, id)
	if i < 0 {
		return apperr.ErrNotFound
	}
	m.docs = append(m.docs[:i], m.docs[i+1:]...)
	return nil
}

type counter struct {
	mu     sync.Mutex
	values map[string]int64
}

func (c *counter) Next(_ context.Context, tenantID, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = map[string]int64{}
	}
	c.values[tenantID+":"+name]++
	return c.values[tenantID+":"+name], nil
}

type fakeInspections struct {
	mu        sync.Mutex
	requests  map[string]clients.InspectionSummary
	decisions []clients.PaymentDecision
	failWith  error
}

func (f *fakeInspections) Get(_ context.Context, token, id string) (*clients.InspectionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == "" {
		return nil, apperr.ErrForbidden
	}
	req, ok := f.requests[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &req, nil
}

func (f *fakeInspections) NotifyPayment(_ context.Context, d clients.PaymentDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.decisions = append(f.decisions, d)
	return nil
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

func (r *recorder) sentTo(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, req := range r.requests {
		if req.UserID == userID {
			out = append(out, req.Type)
		}
	}
	return out
}

const tenantA = "tenant-a"

var (
	client  = authclient.Identity{UserID: "client-1", TenantID: tenantA, Role: authclient.RoleClient}
	other   = authclient.Identity{UserID: "client-2", TenantID: tenantA, Role: authclient.RoleClient}
	finance = authclient.Identity{UserID: "fin-1", TenantID: tenantA, Role: authclient.RoleFinance}
	admin   = authclient.Identity{UserID: "admin-1", TenantID: tenantA, Role: authclient.RoleAdmin}
	staffer = authclient.Identity{UserID: "staff-1", TenantID: tenantA, Role: authclient.RoleStaff}
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	svc         *FinanceService
	estimations *memStore[models.Estimation, *models.Estimation]
	quotations  *memStore[models.Quotation, *models.Quotation]
	payments    *memStore[models.Payment, *models.Payment]
	orders      *memStore[models.PurchaseOrder, *models.PurchaseOrder]
	expenses    *memStore[models.Expense, *models.Expense]
	files       *storage.Memory
	cache       *cache.Memory
	inspections *fakeInspections
	rec         *recorder
}

func newEnv() *env {
	e := &env{
		estimations: &memStore[models.Estimation, *models.Estimation]{},
		quotations:  &memStore[models.Quotation, *models.Quotation]{},
		payments:    &memStore[models.Payment, *models.Payment]{},
		orders:      &memStore[models.PurchaseOrder, *models.PurchaseOrder]{},
		expenses:    &memStore[models.Expense, *models.Expense]{},
		files:       storage.NewMemory(),
		cache:       cache.NewMemory(),
		inspections: &fakeInspections{requests: map[string]clients.InspectionSummary{}},
		rec:         &recorder{},
	}
	e.svc = NewFinanceService(Stores{
		Estimations:    e.estimations,
		Quotations:     e.quotations,
		Payments:       e.payments,
		PurchaseOrders: e.orders,
		Expenses:       e.expenses,
		Sequences:      &counter{},
	}, e.files, e.cache, e.inspections, e.rec, e.rec, zap.NewNop())
	e.svc.now = func() time.Time { return fixedNow }
	return e
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(desc, qty, unit string) models.CostLine {
	return models.CostLine{Description: desc, Quantity: dec(qty), UnitCost: dec(unit)}
}

// addRequest registers an inspection request owned by client.
func (e *env) addRequest(status string) string {
	id := primitive.NewObjectID().Hex()
	e.inspections.requests[id] = clients.InspectionSummary{
		ID:          id,
		TenantID:    tenantA,
		ClientID:    client.UserID,
		ReferenceNo: fmt.Sprintf("INS-20260315-%s", id[len(id)-6:]),
		Status:      status,
	}
	return id
}
