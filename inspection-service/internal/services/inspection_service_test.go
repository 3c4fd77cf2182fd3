package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsuite/inspection-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/listing"
)

func input() models.RequestInput {
	preferred := time.Now().Add(72 * time.Hour).UTC()
	return models.RequestInput{
		PropertyType: "residential",
		Address:      "12 Harbour Road",
		City:         "Portsmouth",
		DistanceKm:   decimal.NewFromInt(62),
		Floors: []models.Floor{
			{Level: 0, Label: "Ground", Rooms: []models.Room{{Name: "Kitchen"}, {Name: "Living"}}},
			{Level: 1, Label: "First", Rooms: []models.Room{{Name: "Bedroom"}}},
		},
		Notes:         "<b>Gate code</b> 1234",
		PreferredDate: &preferred,
	}
}

func createDraft(t *testing.T, e *env, who authclient.Identity) *models.InspectionRequest {
	t.Helper()
	req, err := e.svc.Create(context.Background(), who, input())
	require.NoError(t, err)
	return req
}

func attach(t *testing.T, e *env, who authclient.Identity, id string) *models.Document {
	t.Helper()
	body := "%PDF-1.4 plan"
	doc, err := e.svc.AddDocument(context.Background(), who, id, "plan.pdf", "application/pdf", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	return doc
}

func TestCreateDerivesFields(t *testing.T) {
	e := newEnv()
	req := createDraft(t, e, client)

	assert.Equal(t, models.StatusDraft, req.Status)
	assert.Equal(t, tenantA, req.TenantID)
	assert.Equal(t, client.UserID, req.ClientID)
	assert.Regexp(t, `^INS-\d{8}-[0-9A-F]{6}$`, req.ReferenceNo)
	assert.Equal(t, 3, req.TotalRooms)
	assert.Equal(t, 75, req.CompletionPercentage)
	assert.True(t, req.EstimatedTravelCost.Equal(decimal.NewFromInt(74)))
	assert.Equal(t, "Gate code 1234", req.Notes)
	require.Len(t, req.StatusHistory, 1)

	bad := input()
	bad.DistanceKm = decimal.NewFromInt(-1)
	_, err := e.svc.Create(context.Background(), client, bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	bad = input()
	bad.PropertyType = "castle"
	_, err = e.svc.Create(context.Background(), client, bad)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	req := createDraft(t, e, client)
	id := req.ID.Hex()

	_, err := e.svc.Submit(ctx, client, id)
	assert.ErrorIs(t, err, apperr.ErrValidation, "documents missing")

	attach(t, e, client, id)
	req, err = e.svc.Submit(ctx, client, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, 100, req.CompletionPercentage)
	require.Len(t, e.rec.events, 1)
	assert.Equal(t, "inspection_submitted", e.rec.events[0].EventType)

	req, err = e.svc.ChangeStatus(ctx, admin, id, models.StatusPaymentPending, "fee quoted")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentPending, req.Status)

	upd := models.PaymentUpdate{RequestID: id, TenantID: tenantA, PaymentID: "p1", Status: "verified"}
	req, err = e.svc.HandlePaymentStatus(ctx, upd)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentVerified, req.Status)
	historyLen := len(req.StatusHistory)

	req, err = e.svc.HandlePaymentStatus(ctx, upd)
	require.NoError(t, err)
	assert.Len(t, req.StatusHistory, historyLen, "repeated callback is a no-op")

	req, err = e.svc.Assign(ctx, admin, id, inspector.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, req.Status)

	req, err = e.svc.Schedule(ctx, admin, id, time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, req.Status)

	_, err = e.svc.ChangeStatus(ctx, inspector, id, models.StatusCancelled, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	req, err = e.svc.ChangeStatus(ctx, inspector, id, models.StatusInProgress, "on site")
	require.NoError(t, err)
	req, err = e.svc.ChangeStatus(ctx, inspector, id, models.StatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, req.Status)

	var path []models.Status
	for _, h := range req.StatusHistory {
		path = append(path, h.To)
	}
	assert.Equal(t, []models.Status{
		models.StatusDraft, models.StatusPending, models.StatusPaymentPending, models.StatusPaymentVerified,
		models.StatusAssigned, models.StatusScheduled, models.StatusInProgress, models.StatusCompleted,
	}, path)

	_, err = e.svc.Cancel(ctx, admin, id, "too late")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = e.svc.AddDocument(ctx, admin, id, "late.pdf", "application/pdf", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	assert.Contains(t, e.rec.types(), "inspection_assigned")
	assert.Contains(t, e.rec.types(), "payment_verified")
}

func TestInvalidTransitionsAreRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	id := createDraft(t, e, client).ID.Hex()

	_, err := e.svc.ChangeStatus(ctx, admin, id, models.StatusPaymentPending, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = e.svc.ChangeStatus(ctx, admin, id, models.Status("archived"), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.svc.HandlePaymentStatus(ctx, models.PaymentUpdate{RequestID: id, TenantID: tenantA, Status: "verified"})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	req, err := e.svc.Get(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, req.Status)
	assert.Len(t, req.StatusHistory, 1)
}

func TestPaymentRejectedKeepsStatus(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	id := createDraft(t, e, client).ID.Hex()
	attach(t, e, client, id)
	_, err := e.svc.Submit(ctx, client, id)
	require.NoError(t, err)
	_, err = e.svc.ChangeStatus(ctx, admin, id, models.StatusPaymentPending, "")
	require.NoError(t, err)

	req, err := e.svc.HandlePaymentStatus(ctx, models.PaymentUpdate{
		RequestID: id, TenantID: tenantA, PaymentID: "p9", Status: "rejected", Note: "blurry receipt",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentPending, req.Status)
	last := req.StatusHistory[len(req.StatusHistory)-1]
	assert.Equal(t, models.StatusPaymentPending, last.From)
	assert.Equal(t, models.StatusPaymentPending, last.To)
	assert.Contains(t, last.Note, "blurry receipt")
	assert.Contains(t, e.rec.types(), "payment_rejected")

	_, err = e.svc.HandlePaymentStatus(ctx, models.PaymentUpdate{RequestID: id, TenantID: "tenant-b", Status: "verified"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	id := createDraft(t, e, client).ID.Hex()

	_, err := e.svc.Get(ctx, other, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	foreignAdmin := authclient.Identity{UserID: "admin-b", TenantID: "tenant-b", Role: authclient.RoleAdmin}
	_, err = e.svc.Get(ctx, foreignAdmin, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.svc.Get(ctx, admin, "not-an-id")
	assert.ErrorIs(t, err, apperr.ErrInvalidID)

	_, err = e.svc.Get(ctx, admin, id)
	assert.NoError(t, err)
}

func TestEditingRules(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	id := createDraft(t, e, client).ID.Hex()

	in := input()
	in.Floors = append(in.Floors, models.Floor{Level: 2, Rooms: []models.Room{{Name: "Attic"}}})
	req, err := e.svc.Update(ctx, client, id, in)
	require.NoError(t, err)
	assert.Equal(t, 4, req.TotalRooms)

	attach(t, e, client, id)
	_, err = e.svc.Submit(ctx, client, id)
	require.NoError(t, err)

	_, err = e.svc.Update(ctx, client, id, input())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	req, err = e.svc.Update(ctx, admin, id, input())
	require.NoError(t, err)
	assert.Equal(t, 3, req.TotalRooms)
	assert.Len(t, req.Documents, 1, "documents survive edits")

	assert.ErrorIs(t, e.svc.Delete(ctx, client, id), apperr.ErrConflict)
}

func TestDeleteOnlyOwnDrafts(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	id := createDraft(t, e, client).ID.Hex()
	attach(t, e, client, id)

	assert.ErrorIs(t, e.svc.Delete(ctx, other, id), apperr.ErrNotFound)
	assert.ErrorIs(t, e.svc.Delete(ctx, admin, id), apperr.ErrForbidden)
	require.NoError(t, e.svc.Delete(ctx, client, id))
	assert.Empty(t, e.store.Objects)

	_, err := e.svc.Get(ctx, client, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClientCancelWindow(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	early := createDraft(t, e, client).ID.Hex()
	req, err := e.svc.Cancel(ctx, client, early, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, req.Status)

	late := createDraft(t, e, client).ID.Hex()
	attach(t, e, client, late)
	_, err = e.svc.Submit(ctx, client, late)
	require.NoError(t, err)
	_, err = e.svc.ChangeStatus(ctx, admin, late, models.StatusPaymentPending, "")
	require.NoError(t, err)
	_, err = e.svc.HandlePaymentStatus(ctx, models.PaymentUpdate{RequestID: late, TenantID: tenantA, Status: "verified"})
	require.NoError(t, err)

	_, err = e.svc.Cancel(ctx, client, late, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	req, err = e.svc.Cancel(ctx, admin, late, "client called")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, req.Status)
	assert.Contains(t, e.rec.types(), "inspection_cancelled")
}

func TestScheduleValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	id := createDraft(t, e, client).ID.Hex()

	_, err := e.svc.Schedule(ctx, admin, id, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.svc.Schedule(ctx, admin, id, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = e.svc.Assign(ctx, admin, id, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDocumentURL(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	id := createDraft(t, e, client).ID.Hex()
	doc := attach(t, e, client, id)

	url, err := e.svc.DocumentURL(ctx, admin, id, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, url, doc.ObjectKey)

	_, err = e.svc.DocumentURL(ctx, admin, id, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.svc.AddDocument(ctx, client, id, "virus.exe", "application/x-msdownload", strings.NewReader("MZ"), 2)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListing(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, createDraft(t, e, client).ID.Hex())
	}
	createDraft(t, e, other)
	_, err := e.svc.Cancel(ctx, client, ids[0], "")
	require.NoError(t, err)

	page, err := e.svc.ListMine(ctx, client, listing.Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 2)

	page, err = e.svc.List(ctx, admin, listing.Query{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, ids[0], page.Items[0].ID.Hex())

	page, err = e.svc.List(ctx, admin, listing.Query{Search: "harbour"})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)

	page, err = e.svc.List(ctx, inspector, listing.Query{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestStatsCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	createDraft(t, e, client)

	counts, err := e.svc.Stats(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusDraft])
	assert.Equal(t, 0, counts[models.StatusCompleted])

	ok, _ := e.cache.Exists(ctx, statsKey(tenantA))
	assert.True(t, ok)

	createDraft(t, e, client)
	ok, _ = e.cache.Exists(ctx, statsKey(tenantA))
	assert.False(t, ok, "writes invalidate the cache")

	counts, err = e.svc.Stats(ctx, tenantA)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.StatusDraft])

	ordered := OrderedCounts(counts)
	assert.Equal(t, models.StatusDraft, ordered[0].Status)
	assert.Len(t, ordered, len(models.Statuses))
}
