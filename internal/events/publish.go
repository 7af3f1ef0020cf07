package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PublishAsync отправляет события вне хода актора: ход никогда не ждёт
// подтверждения брокера, ошибка доставки только логируется.
func PublishAsync(log *zap.Logger, pub Publisher, key string, evs ...Event) {
	if pub == nil || len(evs) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, e := range evs {
			if err := pub.Publish(ctx, key, e); err != nil {
				log.Error("event publish failed",
					zap.String("event", e.EventName()),
					zap.String("key", key),
					zap.Error(err))
			}
		}
	}()
}
