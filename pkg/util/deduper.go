package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper suppresses repeated deliveries of the same event to the same handler.
type Deduper struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce returns true the first time handler sees eventID and false for duplicates.
// When Redis is unavailable processing is allowed.
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, eventID string) bool {
	key := FormatDedupKey(handler, eventID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release drops the dedup marker so a failed attempt can be processed again.
func (d *Deduper) Release(ctx context.Context, handler string, eventID string) {
	if err := d.rdb.Del(ctx, FormatDedupKey(handler, eventID)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key", zap.String("handler", handler), zap.Error(err))
	}
}

func FormatDedupKey(handler, eventID string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, eventID)
}
