package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"opsuite/pkg/authclient"
	"opsuite/pkg/notify"
)

// CronJobService sends reminders for inspections starting in 24 hours.
type CronJobService struct {
	repo   Repository
	notify notify.Sender
	log    *zap.Logger
	now    func() time.Time
}

func NewCronJobService(repo Repository, sender notify.Sender, log *zap.Logger) *CronJobService {
	return &CronJobService{
		repo:   repo,
		notify: sender,
		log:    log.With(zap.String("job", "reminders")),
		now:    time.Now,
	}
}

func (s *CronJobService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.SendReminders(ctx)
			case <-ctx.Done():
				s.log.Info("stopping reminder job")
				return
			}
		}
	}()
}

// SendReminders notifies client and inspector of every inspection scheduled
// in the one-hour window starting 24 hours from now. Each scheduled slot is
// reminded once.
func (s *CronJobService) SendReminders(ctx context.Context) int {
	from := s.now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	to := from.Add(time.Hour)

	requests, err := s.repo.ScheduledBetween(ctx, from, to)
	if err != nil {
		s.log.Error("failed to fetch upcoming inspections", zap.Error(err))
		return 0
	}

	sent := 0
	for _, req := range requests {
		if !req.ReminderDue() {
			continue
		}
		at := req.ScheduledAt.Format("15:04")
		msgs := []notify.Request{{
			TenantID:     req.TenantID,
			UserID:       req.ClientID,
			Role:         authclient.RoleClient,
			Title:        "Inspection tomorrow",
			Message:      "Reminder: inspection " + req.ReferenceNo + " starts tomorrow at " + at + ".",
			Type:         "inspection_reminder",
			DeliveryType: notify.DeliveryPush,
		}}
		if req.InspectorID != "" {
			msgs = append(msgs, notify.Request{
				TenantID:     req.TenantID,
				UserID:       req.InspectorID,
				Role:         authclient.RoleInspector,
				Title:        "Inspection tomorrow",
				Message:      "Reminder: you inspect " + req.Address + " tomorrow at " + at + ".",
				Type:         "inspection_reminder",
				DeliveryType: notify.DeliveryPush,
			})
		}
		for _, m := range msgs {
			if err := s.notify.Send(ctx, m); err != nil {
				s.log.Warn("failed to send reminder", zap.String("request_id", req.ID.Hex()), zap.Error(err))
				continue
			}
			sent++
		}
		if err := s.repo.MarkReminded(ctx, req.TenantID, req.ID, *req.ScheduledAt); err != nil {
			s.log.Error("failed to mark reminder", zap.String("request_id", req.ID.Hex()), zap.Error(err))
		}
	}
	return sent
}
