package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DeliveryInApp = "in_app"
	DeliveryEmail = "email"
	DeliverySMS   = "sms"
	DeliveryPush  = "push"
)

// Redis channels consumed by notification-service.
const (
	InspectionEventsChannel = "inspection_events"
	FinanceEventsChannel    = "finance_events"
	WarehouseEventsChannel  = "warehouse_events"
)

type Request struct {
	TenantID     string            `json:"tenant_id"`
	UserID       string            `json:"user_id"`
	Role         string            `json:"role"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	Type         string            `json:"type"`
	DeliveryType string            `json:"delivery_type"`
	Recipient    string            `json:"recipient,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Event is a fire-and-forget message published on a Redis channel.
type Event struct {
	TenantID  string            `json:"tenant_id"`
	UserID    string            `json:"user_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	EventType string            `json:"event_type"`
	Title     string            `json:"title,omitempty"`
	Message   string            `json:"message"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, req Request) error
}

type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event) error
}

// Client posts to notification-service's internal send endpoint.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, internalToken string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5*time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(300*time.Millisecond).
			SetHeader("Content-Type", "application/json").
			SetHeader("X-Internal-Token", internalToken),
	}
}

func (c *Client) Send(ctx context.Context, req Request) error {
	if req.DeliveryType == "" {
		req.DeliveryType = DeliveryInApp
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(req).Post("/notifications/send")
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode())
	}
	return nil
}

type RedisPublisher struct {
	rdb redis.Cmdable
}

func NewRedisPublisher(rdb redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, channel, data).Err()
}

// Async sends in the background and only logs failures. Notifications never
// fail the request that caused them.
type Async struct {
	Sender Sender
	Log    *zap.Logger
}

func (a Async) Send(ctx context.Context, req Request) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := a.Sender.Send(ctx, req); err != nil {
			a.Log.Warn("notification failed",
				zap.String("type", req.Type),
				zap.String("user_id", req.UserID),
				zap.Error(err))
		}
	}()
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Send(context.Context, Request) error          { return nil }
func (Nop) Publish(context.Context, string, Event) error { return nil }
