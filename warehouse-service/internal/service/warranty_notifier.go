package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"opsuite/pkg/authclient"
	"opsuite/pkg/notify"
	"opsuite/warehouse-service/internal/models"
)

// ReminderDays are the offsets before expiry at which reminders go out.
var ReminderDays = []int{30, 7, 1}

// WarrantyNotifier reminds staff and customers about warranties that are
// about to expire. Each offset is sent once per expiry date.
type WarrantyNotifier struct {
	repo     WarrantyRepository
	events   notify.Publisher
	mail     notify.Sender
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewWarrantyNotifier(repo WarrantyRepository, events notify.Publisher, mail notify.Sender, log *zap.Logger, interval time.Duration) *WarrantyNotifier {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &WarrantyNotifier{
		repo:     repo,
		events:   events,
		mail:     mail,
		log:      log.With(zap.String("job", "warranty_expiry")),
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a check immediately and then on every tick until ctx ends.
func (n *WarrantyNotifier) Start(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	go func() {
		defer ticker.Stop()
		n.Check(ctx)
		for {
			select {
			case <-ticker.C:
				n.Check(ctx)
			case <-ctx.Done():
				n.log.Info("warranty notifier stopped")
				return
			}
		}
	}()
}

// Check sends the reminders due today and returns how many went out.
func (n *WarrantyNotifier) Check(ctx context.Context) int {
	today := n.now().Truncate(24 * time.Hour)
	sent := 0
	for _, days := range ReminderDays {
		from := today.AddDate(0, 0, days)
		due, err := n.repo.ExpiringBetween(ctx, from, from.Add(24*time.Hour))
		if err != nil {
			n.log.Error("failed to load expiring warranties", zap.Int("days", days), zap.Error(err))
			continue
		}
		for i := range due {
			w := &due[i]
			if w.WasNotified(days) {
				continue
			}
			n.remind(ctx, w, days)
			w.NotifiedDays = append(w.NotifiedDays, days)
			if err := n.repo.Update(ctx, w); err != nil {
				n.log.Error("failed to mark warranty reminder",
					zap.String("warranty_id", w.ID.Hex()), zap.Int("days", days), zap.Error(err))
				continue
			}
			sent++
		}
	}
	if sent > 0 {
		n.log.Info("warranty reminders sent", zap.Int("count", sent))
	}
	return sent
}

func (n *WarrantyNotifier) remind(ctx context.Context, w *models.Warranty, days int) {
	expiry := w.ExpiryDate.Format(time.DateOnly)
	title := "Warranty expiring"
	msg := fmt.Sprintf("Warranty for %s (serial %s) expires on %s, in %s.",
		w.ProductName, w.SerialNumber, expiry, plural(days))
	extra := map[string]string{
		"warranty_id": w.ID.Hex(),
		"days":        strconv.Itoa(days),
		"expiry_date": expiry,
	}

	err := n.events.Publish(ctx, notify.WarehouseEventsChannel, notify.Event{
		TenantID:  w.TenantID,
		Role:      authclient.RoleWarehouse,
		EventType: "warranty_expiring",
		Title:     title,
		Message:   msg,
		ExtraData: extra,
	})
	if err != nil {
		n.log.Warn("event publish failed", zap.String("warranty_id", w.ID.Hex()), zap.Error(err))
	}

	if w.CustomerEmail == "" {
		return
	}
	err = n.mail.Send(ctx, notify.Request{
		TenantID:     w.TenantID,
		Title:        title,
		Message:      fmt.Sprintf("Dear %s, %s", w.CustomerName, msg),
		Type:         "warranty_expiring",
		DeliveryType: notify.DeliveryEmail,
		Recipient:    w.CustomerEmail,
		Metadata:     extra,
	})
	if err != nil {
		n.log.Warn("customer reminder failed", zap.String("warranty_id", w.ID.Hex()), zap.Error(err))
	}
}

func plural(days int) string {
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}
