package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/inspection-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/notify"
	"opsuite/pkg/storage"
)

type fakeRepo struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]models.InspectionRequest
	order []primitive.ObjectID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[primitive.ObjectID]models.InspectionRequest{}}
}

func clone(r models.InspectionRequest) models.InspectionRequest {
	r.Floors = slices.Clone(r.Floors)
	r.Documents = slices.Clone(r.Documents)
	r.StatusHistory = slices.Clone(r.StatusHistory)
	return r
}

func (f *fakeRepo) Create(_ context.Context, req *models.InspectionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.ID = primitive.NewObjectID()
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	f.items[req.ID] = clone(*req)
	f.order = append(f.order, req.ID)
	return nil
}

func (f *fakeRepo) Update(_ context.Context, req *models.InspectionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.items[req.ID]
	if !ok || existing.TenantID != req.TenantID {
		return apperr.ErrNotFound
	}
	req.UpdatedAt = time.Now().UTC()
	f.items[req.ID] = clone(*req)
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, tenantID string, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.items[id]
	if !ok || existing.TenantID != tenantID {
		return apperr.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) FindByID(_ context.Context, tenantID string, id primitive.ObjectID) (*models.InspectionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok || r.TenantID != tenantID {
		return nil, apperr.ErrNotFound
	}
	r = clone(r)
	return &r, nil
}

func (f *fakeRepo) filter(keep func(models.InspectionRequest) bool) []models.InspectionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.InspectionRequest{}
	for _, id := range f.order {
		if r, ok := f.items[id]; ok && keep(r) {
			out = append(out, clone(r))
		}
	}
	return out
}

func (f *fakeRepo) List(_ context.Context, tenantID string) ([]models.InspectionRequest, error) {
	return f.filter(func(r models.InspectionRequest) bool { return r.TenantID == tenantID }), nil
}

func (f *fakeRepo) ListByClient(_ context.Context, tenantID, clientID string) ([]models.InspectionRequest, error) {
	return f.filter(func(r models.InspectionRequest) bool {
		return r.TenantID == tenantID && r.ClientID == clientID
	}), nil
}

func (f *fakeRepo) ScheduledBetween(_ context.Context, from, to time.Time) ([]models.InspectionRequest, error) {
	return f.filter(func(r models.InspectionRequest) bool {
		return r.Status == models.StatusScheduled && r.ScheduledAt != nil &&
			!r.ScheduledAt.Before(from) && r.ScheduledAt.Before(to)
	}), nil
}

func (f *fakeRepo) MarkReminded(_ context.Context, tenantID string, id primitive.ObjectID, slot time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok || r.TenantID != tenantID || r.ScheduledAt == nil || !r.ScheduledAt.Equal(slot) {
		return apperr.ErrNotFound
	}
	r.RemindedFor = &slot
	f.items[id] = r
	return nil
}

func (f *fakeRepo) CountByStatus(_ context.Context, tenantID string) (map[models.Status]int, error) {
	counts := map[models.Status]int{}
	for _, r := range f.filter(func(r models.InspectionRequest) bool { return r.TenantID == tenantID }) {
		counts[r.Status]++
	}
	return counts, nil
}

func (f *fakeRepo) TenantIDs(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, r := range f.filter(func(models.InspectionRequest) bool { return true }) {
		if !seen[r.TenantID] {
			seen[r.TenantID] = true
			ids = append(ids, r.TenantID)
		}
	}
	return ids, nil
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

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req.Type)
	}
	return out
}

const tenantA = "tenant-a"

var (
	client    = authclient.Identity{UserID: "client-1", TenantID: tenantA, Role: authclient.RoleClient}
	other     = authclient.Identity{UserID: "client-2", TenantID: tenantA, Role: authclient.RoleClient}
	admin     = authclient.Identity{UserID: "admin-1", TenantID: tenantA, Role: authclient.RoleAdmin}
	inspector = authclient.Identity{UserID: "insp-1", TenantID: tenantA, Role: authclient.RoleInspector}
)

type env struct {
	svc   *InspectionService
	repo  *fakeRepo
	store *storage.Memory
	cache *cache.Memory
	rec   *recorder
}

func newEnv() *env {
	e := &env{
		repo:  newFakeRepo(),
		store: storage.NewMemory(),
		cache: cache.NewMemory(),
		rec:   &recorder{},
	}
	e.svc = NewInspectionService(e.repo, e.store, e.cache, e.rec, e.rec, zap.NewNop())
	return e
}

func authclientFor(tenantID string) authclient.Identity {
	return authclient.Identity{UserID: "client-" + tenantID, TenantID: tenantID, Role: authclient.RoleClient}
}
