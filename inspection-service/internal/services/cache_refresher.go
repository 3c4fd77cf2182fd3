package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type CacheRefresher struct {
	service  *InspectionService
	repo     Repository
	interval time.Duration
	log      *zap.Logger
}

func NewCacheRefresher(service *InspectionService, repo Repository, log *zap.Logger) *CacheRefresher {
	return &CacheRefresher{
		service:  service,
		repo:     repo,
		interval: 5 * time.Minute,
		log:      log.With(zap.String("job", "stats_cache")),
	}
}

func (cr *CacheRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cr.refreshAll(ctx)
			case <-ctx.Done():
				cr.log.Info("stopping cache refresher")
				return
			}
		}
	}()
}

func (cr *CacheRefresher) refreshAll(ctx context.Context) {
	tenants, err := cr.repo.TenantIDs(ctx)
	if err != nil {
		cr.log.Error("failed to list tenants", zap.Error(err))
		return
	}
	for _, tenantID := range tenants {
		if _, err := cr.service.RefreshStats(ctx, tenantID); err != nil {
			cr.log.Error("failed to refresh stats", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	cr.log.Debug("stats cache refreshed", zap.Int("tenants", len(tenants)))
}
