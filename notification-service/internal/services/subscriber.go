package services

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"opsuite/pkg/notify"
)

// EventChannels are the Redis channels turned into notifications.
var EventChannels = []string{
	notify.InspectionEventsChannel,
	notify.FinanceEventsChannel,
	notify.WarehouseEventsChannel,
}

type EventProcessor interface {
	ProcessEvent(ctx context.Context, channel string, payload []byte) error
}

// Subscribe consumes EventChannels until ctx is cancelled. A bad event is
// logged and skipped.
func Subscribe(ctx context.Context, rdb *redis.Client, p EventProcessor, log *zap.Logger) {
	pubsub := rdb.Subscribe(ctx, EventChannels...)
	defer pubsub.Close()

	log.Info("subscribed to event channels", zap.Strings("channels", EventChannels))
	Consume(ctx, pubsub.Channel(), p, log)
}

// Consume processes messages from ch until it closes or ctx ends.
func Consume(ctx context.Context, ch <-chan *redis.Message, p EventProcessor, log *zap.Logger) {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := p.ProcessEvent(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
				log.Error("failed to process event", zap.String("channel", msg.Channel), zap.Error(err))
			}
		case <-ctx.Done():
			log.Info("event subscriber stopped")
			return
		}
	}
}
