package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Freeeeeet/coach_scheduler/internal/config"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
)

type failingTelegram struct {
	attempts atomic.Int32
}

func (f *failingTelegram) Notify(ctx context.Context, userID int64, kind notify.Kind, params notify.Params) error {
	f.attempts.Add(1)
	return errors.New("telegram unavailable")
}

func TestNewNotifierRetriesOnlyTelegram(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	telegram := &failingTelegram{}

	notifier, queue := newNotifier(config.NotifyConfig{Workers: 1, QueueSize: 4, MaxRetries: 1}, telegram, zap.New(core))
	require.NotNil(t, queue)
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, notifier.Notify(context.Background(), 1, notify.KindReviewRequest, notify.Params{"session_id": "1"}))

	assert.Eventually(t, func() bool {
		return telegram.attempts.Load() == 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("Notification").Len())
}

func TestNewNotifierWithoutTelegram(t *testing.T) {
	notifier, queue := newNotifier(config.NotifyConfig{}, nil, zap.NewNop())

	assert.Nil(t, queue)
	assert.Len(t, notifier, 1)
	assert.NoError(t, notifier.Notify(context.Background(), 1, notify.KindReviewRequest, notify.Params{"session_id": "1"}))
}
