package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultReminderTTL сколько хранится отметка об отправке.
// Должно перекрывать самое длинное окно выборки (48h для запроса отзыва).
const DefaultReminderTTL = 72 * time.Hour

// RedisReminderLog помнит, какие напоминания уже отправлены, через SETNX с TTL
type RedisReminderLog struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisReminderLog создаёт журнал напоминаний
func NewRedisReminderLog(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisReminderLog {
	if ttl <= 0 {
		ttl = DefaultReminderTTL
	}
	return &RedisReminderLog{client: client, ttl: ttl, logger: logger}
}

// MarkSent ставит отметку. Возвращает false, если отметка уже была
func (l *RedisReminderLog) MarkSent(ctx context.Context, sessionID int64, kind string) (bool, error) {
	key := reminderKey(sessionID, kind)

	ok, err := l.client.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}

	return ok, nil
}

// Release снимает отметку, чтобы следующий проход попробовал снова
func (l *RedisReminderLog) Release(ctx context.Context, sessionID int64, kind string) error {
	key := reminderKey(sessionID, kind)

	if err := l.client.Del(ctx, key).Err(); err != nil {
		l.logger.Warn("Failed to release reminder mark", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis delete %s: %w", key, err)
	}

	return nil
}

func reminderKey(sessionID int64, kind string) string {
	return fmt.Sprintf("coach_scheduler:reminder:%d:%s", sessionID, kind)
}
