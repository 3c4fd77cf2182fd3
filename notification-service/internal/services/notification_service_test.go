package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/notify"
)

var (
	alice   = authclient.Identity{UserID: "u-alice", TenantID: "t1", Role: authclient.RoleFinance}
	bob     = authclient.Identity{UserID: "u-bob", TenantID: "t1", Role: authclient.RoleFinance}
	carol   = authclient.Identity{UserID: "u-carol", TenantID: "t1", Role: authclient.RoleClient}
	foreign = authclient.Identity{UserID: "u-alice", TenantID: "t2", Role: authclient.RoleFinance}
)

func newService() (*NotificationService, *memRepo, *fakeChannel) {
	repo := &memRepo{}
	email := &fakeChannel{}
	svc := NewNotificationService(repo, nil, map[string]Deliverer{notify.DeliveryEmail: email}, zap.NewNop())
	return svc, repo, email
}

func TestSendValidates(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	cases := []notify.Request{
		{UserID: "u", Message: "hi"},
		{TenantID: "t1", Message: "hi"},
		{TenantID: "t1", Role: "janitor", Message: "hi"},
		{TenantID: "t1", UserID: "u", Message: "<b></b>"},
		{TenantID: "t1", UserID: "u", Message: "hi", DeliveryType: "pigeon"},
	}
	for _, req := range cases {
		_, err := svc.Send(ctx, req)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", req)
	}

	n, err := svc.Send(ctx, notify.Request{TenantID: "t1", UserID: "u", Title: "Hi", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, notify.DeliveryInApp, n.DeliveryType)
	assert.Equal(t, "system", n.Type)
}

func TestSendDeliversAndKeepsOnFailure(t *testing.T) {
	svc, repo, email := newService()
	ctx := context.Background()

	_, err := svc.Send(ctx, notify.Request{TenantID: "t1", UserID: carol.UserID, Title: "Quote", Message: "Your quotation is ready",
		DeliveryType: notify.DeliveryEmail, Recipient: "carol@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol@example.com"}, email.delivered)

	email.err = errSMTPDown
	_, err = svc.Send(ctx, notify.Request{TenantID: "t1", UserID: carol.UserID, Title: "Again", Message: "x",
		DeliveryType: notify.DeliveryEmail, Recipient: "carol@example.com"})
	require.NoError(t, err, "delivery failure does not fail the send")

	_, err = svc.Send(ctx, notify.Request{TenantID: "t1", UserID: carol.UserID, Title: "Text", Message: "x",
		DeliveryType: notify.DeliverySMS, Recipient: "+15550001111"})
	require.NoError(t, err, "unconfigured channel is logged only")

	assert.Len(t, repo.items, 3)
}

func TestSendDirectToExternalRecipient(t *testing.T) {
	svc, repo, email := newService()
	ctx := context.Background()

	n, err := svc.Send(ctx, notify.Request{
		TenantID:     "t1",
		Title:        "Warranty expiring",
		Message:      "Dear Dana, Warranty for Boiler (serial SN-1) expires on 2026-04-14, in 30 days.",
		Type:         "warranty_expiring",
		DeliveryType: notify.DeliveryEmail,
		Recipient:    "dana@example.com",
		Metadata:     map[string]string{"days": "30"},
	})
	require.NoError(t, err)
	assert.True(t, n.IsDirect())
	assert.Equal(t, []string{"dana@example.com"}, email.delivered)
	assert.Len(t, repo.items, 1)

	for _, who := range []authclient.Identity{alice, carol} {
		items, err := svc.List(ctx, who, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, items, "direct mail stays out of %s's inbox", who.UserID)
	}

	invalid := []notify.Request{
		{TenantID: "t1", Message: "hi", DeliveryType: notify.DeliveryEmail},
		{TenantID: "t1", Message: "hi", Recipient: "dana@example.com"},
	}
	for _, req := range invalid {
		_, err := svc.Send(ctx, req)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", req)
	}
	assert.Len(t, email.delivered, 1)
}

func TestPushUsesRegisteredDevice(t *testing.T) {
	repo := &memRepo{}
	push := &fakeChannel{}
	reg := &fakeDevices{tokens: map[string]string{}}
	svc := NewNotificationService(repo, reg, map[string]Deliverer{notify.DeliveryPush: push}, zap.NewNop())
	ctx := context.Background()

	inspector := authclient.Identity{UserID: "u-ivan", TenantID: "t1", Role: authclient.RoleInspector}
	require.NoError(t, svc.RegisterDevice(ctx, inspector, " fcm-ivan ", "ios"))
	assert.ErrorIs(t, svc.RegisterDevice(ctx, inspector, "  ", ""), apperr.ErrValidation)

	assigned := notify.Request{TenantID: "t1", UserID: inspector.UserID, Role: authclient.RoleInspector,
		Title: "New inspection assigned", Message: "You were assigned inspection INS-1.", DeliveryType: notify.DeliveryPush}
	n, err := svc.Send(ctx, assigned)
	require.NoError(t, err)
	assert.Equal(t, "fcm-ivan", n.Recipient)

	assigned.UserID = "u-nodevice"
	_, err = svc.Send(ctx, assigned)
	require.NoError(t, err, "a user without a device still gets the in-app copy")

	assigned.UserID = inspector.UserID
	assigned.Recipient = "fcm-explicit"
	_, err = svc.Send(ctx, assigned)
	require.NoError(t, err)

	assert.Equal(t, []string{"fcm-ivan", "fcm-explicit"}, push.delivered)
	assert.Len(t, repo.items, 3)

	require.NoError(t, svc.UnregisterDevice(ctx, inspector))
	assigned.Recipient = ""
	_, err = svc.Send(ctx, assigned)
	require.NoError(t, err)
	assert.Len(t, push.delivered, 2)
}

func TestListUnreadAndBroadcastReads(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	send := func(req notify.Request) {
		_, err := svc.Send(ctx, req)
		require.NoError(t, err)
	}
	send(notify.Request{TenantID: "t1", UserID: alice.UserID, Title: "For alice", Message: "m"})
	send(notify.Request{TenantID: "t1", Role: authclient.RoleFinance, Title: "For finance", Message: "m"})
	send(notify.Request{TenantID: "t1", UserID: carol.UserID, Title: "For carol", Message: "m"})
	send(notify.Request{TenantID: "t2", Role: authclient.RoleFinance, Title: "Other tenant", Message: "m"})

	items, err := svc.List(ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"For finance", "For alice"}, titles(items), "newest first, role broadcasts included")

	items, err = svc.List(ctx, alice, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"For alice"}, titles(items))

	count, err := svc.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	items, err = svc.List(ctx, alice, 10, 0)
	require.NoError(t, err)
	broadcast := items[0]
	require.NoError(t, svc.MarkRead(ctx, alice, broadcast.ID.Hex()))

	count, err = svc.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	count, err = svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "a broadcast read by alice stays unread for bob")

	items, err = svc.List(ctx, alice, 10, 0)
	require.NoError(t, err)
	assert.True(t, items[0].Read)
	items, err = svc.List(ctx, bob, 10, 0)
	require.NoError(t, err)
	assert.False(t, items[0].Read)

	n, err := svc.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	count, err = svc.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkReadIsScopedToCaller(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	n, err := svc.Send(ctx, notify.Request{TenantID: "t1", UserID: carol.UserID, Title: "Mine", Message: "m"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, alice, n.ID.Hex()), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, foreign, n.ID.Hex()), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, carol, "bad"), apperr.ErrInvalidID)
	assert.NoError(t, svc.MarkRead(ctx, carol, n.ID.Hex()))
}

func TestClampPage(t *testing.T) {
	l, o := ClampPage(0, -5)
	assert.EqualValues(t, DefaultLimit, l)
	assert.Zero(t, o)
	l, _ = ClampPage(1000, 0)
	assert.EqualValues(t, MaxLimit, l)
}

func TestProcessEvent(t *testing.T) {
	svc, repo, _ := newService()
	ctx := context.Background()

	payload, err := json.Marshal(notify.Event{
		TenantID: "t1", Role: authclient.RoleWarehouse, EventType: "low_stock",
		Message: "Filters are low", ExtraData: map[string]string{"sku": "F-1"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessEvent(ctx, notify.WarehouseEventsChannel, payload))

	require.Len(t, repo.items, 1)
	n := repo.items[0]
	assert.Equal(t, "Warehouse alert", n.Title)
	assert.Equal(t, "low_stock", n.Type)
	assert.Equal(t, notify.DeliveryInApp, n.DeliveryType)
	assert.Equal(t, "F-1", n.Metadata["sku"])

	assert.Error(t, svc.ProcessEvent(ctx, "order_events", payload))
	assert.Error(t, svc.ProcessEvent(ctx, notify.FinanceEventsChannel, []byte("{")))
}

func TestConsumeSkipsBadEvents(t *testing.T) {
	svc, repo, _ := newService()
	good, err := json.Marshal(notify.Event{TenantID: "t1", UserID: "u1", EventType: "payment_verified", Message: "ok"})
	require.NoError(t, err)

	ch := make(chan *redis.Message, 3)
	ch <- &redis.Message{Channel: notify.FinanceEventsChannel, Payload: "not json"}
	ch <- &redis.Message{Channel: notify.FinanceEventsChannel, Payload: string(good)}
	ch <- &redis.Message{Channel: notify.InspectionEventsChannel, Payload: string(good)}
	close(ch)

	Consume(context.Background(), ch, svc, zap.NewNop())

	require.Len(t, repo.items, 2)
	assert.Equal(t, []string{"Finance update", "Inspection update"}, []string{repo.items[0].Title, repo.items[1].Title})
}
