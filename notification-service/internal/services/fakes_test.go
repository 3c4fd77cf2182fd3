package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsuite/notification-service/internal/models"
	"opsuite/pkg/apperr"
)

type memRepo struct {
	mu    sync.Mutex
	items []models.Notification
	clock time.Time
}

func visible(n *models.Notification, tenantID, userID, role string) bool {
	if n.TenantID != tenantID {
		return false
	}
	return n.UserID == userID || (n.IsBroadcast() && n.Role == role)
}

func (m *memRepo) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	n.ID = primitive.NewObjectID()
	n.CreatedAt = m.clock
	m.items = append(m.items, *n)
	return nil
}

func (m *memRepo) List(_ context.Context, tenantID, userID, role string, limit, offset int64) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if visible(&m.items[i], tenantID, userID, role) {
			out = append(out, m.items[i])
		}
	}
	if offset >= int64(len(out)) {
		return []models.Notification{}, nil
	}
	out = out[offset:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) CountUnread(_ context.Context, tenantID, userID, role string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.items {
		if visible(&m.items[i], tenantID, userID, role) && !m.items[i].ReadFor(userID) {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) markRead(n *models.Notification, userID string) bool {
	if n.ReadFor(userID) {
		return false
	}
	if n.IsBroadcast() {
		n.ReadBy = append(n.ReadBy, userID)
	} else {
		n.Read = true
	}
	return true
}

func (m *memRepo) MarkRead(_ context.Context, tenantID, userID, role string, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && visible(&m.items[i], tenantID, userID, role) {
			m.markRead(&m.items[i], userID)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *memRepo) MarkAllRead(_ context.Context, tenantID, userID, role string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.items {
		if visible(&m.items[i], tenantID, userID, role) && m.markRead(&m.items[i], userID) {
			n++
		}
	}
	return n, nil
}

type fakeDevices struct {
	tokens map[string]string
}

func (f *fakeDevices) Register(_ context.Context, d *models.Device) error {
	f.tokens[d.TenantID+"/"+d.UserID] = d.Token
	return nil
}

func (f *fakeDevices) Remove(_ context.Context, tenantID, userID string) error {
	delete(f.tokens, tenantID+"/"+userID)
	return nil
}

func (f *fakeDevices) Token(_ context.Context, tenantID, userID string) (string, error) {
	t, ok := f.tokens[tenantID+"/"+userID]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return t, nil
}

type fakeChannel struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (f *fakeChannel) Deliver(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, n.Recipient)
	return nil
}

var errSMTPDown = errors.New("smtp: connection refused")

func titles(items []models.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Title)
	}
	return out
}
