package notify

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/jobs"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
)

type delivery struct {
	userID int64
	kind   Kind
	params Params
}

// Queued отправляет уведомления в фоне через пул воркеров с повторами,
// чтобы медленный провайдер не задерживал запросы и проходы планировщика
type Queued struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueued оборачивает next очередью. Очередь нужно запустить через Start
func NewQueued(next Notifier, cfg jobs.QueueConfig) *Queued {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		d, ok := job.Payload.(delivery)
		if !ok {
			return nil
		}
		return next.Notify(ctx, d.userID, d.kind, d.params)
	}
	return &Queued{
		queue:  jobs.NewQueue("notifications", handler, cfg),
		logger: cfg.Logger,
	}
}

// Start запускает воркеров
func (q *Queued) Start(ctx context.Context) { q.queue.Start(ctx) }

// Stop останавливает воркеров
func (q *Queued) Stop() { q.queue.Stop() }

// Notify implements Notifier. Не ждёт места в очереди: если буфер заполнен,
// уведомление отбрасывается и возвращается ошибка
func (q *Queued) Notify(ctx context.Context, userID int64, kind Kind, params Params) error {
	err := q.queue.TryEnqueue(ctx, jobs.Job{
		ID:      string(kind) + ":" + strconv.FormatInt(userID, 10),
		Type:    string(kind),
		Payload: delivery{userID: userID, kind: kind, params: params},
	})
	if err != nil {
		metrics.Notifications.WithLabelValues(string(kind), "dropped").Inc()
		q.logger.Warn("Notification dropped",
			zap.Int64("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
