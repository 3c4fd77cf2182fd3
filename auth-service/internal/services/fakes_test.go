package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/auth-service/internal/models"
	"opsuite/auth-service/internal/utils"
	"opsuite/pkg/apperr"
	"opsuite/pkg/cache"
	"opsuite/pkg/notify"
)

type fakeUsers struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{items: map[primitive.ObjectID]models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.TenantID == u.TenantID && existing.Email == u.Email {
			return apperr.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now()
	f.items[u.ID] = *u
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, tenantID, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.TenantID == tenantID && u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) Update(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[u.ID]; !ok {
		return apperr.ErrNotFound
	}
	f.items[u.ID] = *u
	return nil
}

func (f *fakeUsers) ListByTenant(_ context.Context, tenantID, role string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.items {
		if u.TenantID == tenantID && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type fakeTenants struct {
	items []models.Tenant
}

func (f *fakeTenants) Create(_ context.Context, t *models.Tenant) error {
	for _, e := range f.items {
		if e.Code == t.Code {
			return apperr.ErrDuplicate
		}
	}
	t.ID = primitive.NewObjectID()
	f.items = append(f.items, *t)
	return nil
}

func (f *fakeTenants) FindByCode(_ context.Context, code string) (*models.Tenant, error) {
	for _, t := range f.items {
		if t.Code == code {
			return &t, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeTenants) FindByID(_ context.Context, id primitive.ObjectID) (*models.Tenant, error) {
	for _, t := range f.items {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeTenants) List(context.Context) ([]models.Tenant, error) {
	return f.items, nil
}

type fakeMailer struct {
	sent map[string]string
	fail bool
}

func (m *fakeMailer) SendTemporaryPassword(email, _ string, code string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent[email] = code
	return nil
}

type fakeGoogle struct {
	email string
	err   error
}

func (g fakeGoogle) Verify(context.Context, string) (string, string, string, error) {
	return g.email, "Grace", "Hopper", g.err
}

type env struct {
	svc     *AuthService
	users   *fakeUsers
	tenants *fakeTenants
	mailer  *fakeMailer
	cache   *cache.Memory
	tenant  models.Tenant
	jwt     *utils.JWTUtil
}

func newEnv() *env {
	e := &env{
		users:   newFakeUsers(),
		tenants: &fakeTenants{},
		mailer:  &fakeMailer{sent: map[string]string{}},
		cache:   cache.NewMemory(),
		jwt:     utils.NewJWTUtil("test-secret"),
	}
	t := models.Tenant{Code: "acme", Name: "Acme Facilities", Active: true}
	_ = e.tenants.Create(context.Background(), &t)
	e.tenant = t
	e.svc = NewAuthService(e.users, e.tenants, e.jwt, e.mailer, fakeGoogle{email: "grace@example.com"}, e.cache, notify.Nop{}, zap.NewNop())
	return e
}
