package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/notification-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/notify"
	"opsuite/pkg/sanitize"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, tenantID, userID, role string, limit, offset int64) ([]models.Notification, error)
	CountUnread(ctx context.Context, tenantID, userID, role string) (int64, error)
	MarkRead(ctx context.Context, tenantID, userID, role string, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, tenantID, userID, role string) (int64, error)
}

// DeviceStore keeps the push token of each user.
type DeviceStore interface {
	Register(ctx context.Context, d *models.Device) error
	Remove(ctx context.Context, tenantID, userID string) error
	Token(ctx context.Context, tenantID, userID string) (string, error)
}

// Deliverer sends a stored notification over one external channel.
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

type NotificationService struct {
	repo     NotificationRepository
	devices  DeviceStore
	channels map[string]Deliverer
	log      *zap.Logger
}

// NewNotificationService wires the configured delivery channels, keyed by
// delivery type. in_app needs none. Push to a user without an explicit
// recipient uses the token from devices.
func NewNotificationService(repo NotificationRepository, devices DeviceStore, channels map[string]Deliverer, log *zap.Logger) *NotificationService {
	if channels == nil {
		channels = map[string]Deliverer{}
	}
	return &NotificationService{repo: repo, devices: devices, channels: channels, log: log}
}

var deliveryTypes = []string{notify.DeliveryInApp, notify.DeliveryEmail, notify.DeliverySMS, notify.DeliveryPush}

// channelTitles are used when an event arrives without a title.
var channelTitles = map[string]string{
	notify.InspectionEventsChannel: "Inspection update",
	notify.FinanceEventsChannel:    "Finance update",
	notify.WarehouseEventsChannel:  "Warehouse alert",
}

func validDelivery(t string) bool {
	for _, d := range deliveryTypes {
		if d == t {
			return true
		}
	}
	return false
}

// Send stores a notification and delivers it. Delivery failures are logged;
// the stored notification stays.
func (s *NotificationService) Send(ctx context.Context, req notify.Request) (*models.Notification, error) {
	n := &models.Notification{
		TenantID:     strings.TrimSpace(req.TenantID),
		UserID:       strings.TrimSpace(req.UserID),
		Role:         strings.TrimSpace(req.Role),
		Title:        sanitize.Text(req.Title),
		Message:      sanitize.Text(req.Message),
		Type:         strings.TrimSpace(req.Type),
		DeliveryType: strings.TrimSpace(req.DeliveryType),
		Recipient:    strings.TrimSpace(req.Recipient),
		Metadata:     req.Metadata,
	}
	if n.DeliveryType == "" {
		n.DeliveryType = notify.DeliveryInApp
	}
	if n.Type == "" {
		n.Type = "system"
	}
	if err := s.check(n); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}
	s.deliver(ctx, n)
	return n, nil
}

func (s *NotificationService) check(n *models.Notification) error {
	switch {
	case n.TenantID == "":
		return fmt.Errorf("%w: tenant_id is required", apperr.ErrValidation)
	case n.UserID == "" && n.Role == "" && !n.IsDirect():
		return fmt.Errorf("%w: user_id, role or an external recipient is required", apperr.ErrValidation)
	case n.Role != "" && !authclient.ValidRole(n.Role):
		return fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, n.Role)
	case n.Message == "":
		return fmt.Errorf("%w: message is required", apperr.ErrValidation)
	case !validDelivery(n.DeliveryType):
		return fmt.Errorf("%w: unknown delivery_type %q", apperr.ErrValidation, n.DeliveryType)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) {
	if n.DeliveryType == notify.DeliveryInApp {
		return
	}
	fields := []zap.Field{
		zap.String("notification_id", n.ID.Hex()),
		zap.String("delivery_type", n.DeliveryType),
		zap.String("type", n.Type),
	}
	d, ok := s.channels[n.DeliveryType]
	if !ok {
		s.log.Warn("delivery channel not configured", fields...)
		return
	}
	if n.DeliveryType == notify.DeliveryPush && n.Recipient == "" {
		token, err := s.deviceToken(ctx, n)
		if err != nil {
			s.log.Info("push skipped", append(fields, zap.String("user_id", n.UserID), zap.Error(err))...)
			return
		}
		n.Recipient = token
	}
	if err := d.Deliver(ctx, n); err != nil {
		s.log.Error("notification delivery failed", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("notification delivered", fields...)
}

func (s *NotificationService) deviceToken(ctx context.Context, n *models.Notification) (string, error) {
	if n.UserID == "" || s.devices == nil {
		return "", errNoDevice
	}
	token, err := s.devices.Token(ctx, n.TenantID, n.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", errNoDevice
	}
	return token, err
}

var errNoDevice = errors.New("no device registered")

// RegisterDevice stores the caller's push token, replacing any earlier one.
func (s *NotificationService) RegisterDevice(ctx context.Context, actor authclient.Identity, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", apperr.ErrValidation)
	}
	if s.devices == nil {
		return errors.New("device registry not configured")
	}
	return s.devices.Register(ctx, &models.Device{
		TenantID: actor.TenantID,
		UserID:   actor.UserID,
		Token:    token,
		Platform: strings.ToLower(strings.TrimSpace(platform)),
	})
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, actor authclient.Identity) error {
	if s.devices == nil {
		return apperr.ErrNotFound
	}
	return s.devices.Remove(ctx, actor.TenantID, actor.UserID)
}

// ProcessEvent turns an event from one of the Redis channels into a stored
// in-app notification.
func (s *NotificationService) ProcessEvent(ctx context.Context, channel string, payload []byte) error {
	fallback, ok := channelTitles[channel]
	if !ok {
		return fmt.Errorf("unknown channel %q", channel)
	}
	var ev notify.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	title := ev.Title
	if title == "" {
		title = fallback
	}
	_, err := s.Send(ctx, notify.Request{
		TenantID:     ev.TenantID,
		UserID:       ev.UserID,
		Role:         ev.Role,
		Title:        title,
		Message:      ev.Message,
		Type:         ev.EventType,
		DeliveryType: notify.DeliveryInApp,
		Metadata:     ev.ExtraData,
	})
	return err
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int64) (int64, int64) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *NotificationService) List(ctx context.Context, actor authclient.Identity, limit, offset int64) ([]models.Notification, error) {
	limit, offset = ClampPage(limit, offset)
	items, err := s.repo.List(ctx, actor.TenantID, actor.UserID, actor.Role, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Read = items[i].ReadFor(actor.UserID)
	}
	return items, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor authclient.Identity) (int64, error) {
	return s.repo.CountUnread(ctx, actor.TenantID, actor.UserID, actor.Role)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor authclient.Identity, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.ErrInvalidID
	}
	return s.repo.MarkRead(ctx, actor.TenantID, actor.UserID, actor.Role, oid)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor authclient.Identity) (int64, error) {
	return s.repo.MarkAllRead(ctx, actor.TenantID, actor.UserID, actor.Role)
}
