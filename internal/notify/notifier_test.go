package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/jobs"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

func TestEveryKindRenders(t *testing.T) {
	params := Params{"session_id": "7", "start": "19.10.2026 09:00", "duration": "1 ч", "price": "40 $", "time_range": "09:00-10:00"}
	for _, kind := range Kinds() {
		text, err := Render(kind, params)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, text, kind)
		assert.NotContains(t, text, "<no value>", kind)
	}
}

func TestRenderOptionalFields(t *testing.T) {
	text, err := Render(KindSessionCancelled, Params{"start": "19.10.2026 09:00", "reason": "заболел", "refunded": "true"})
	require.NoError(t, err)
	assert.Contains(t, text, "Причина: заболел")
	assert.Contains(t, text, "возвращена")

	text, err = Render(KindSessionCancelled, Params{"start": "19.10.2026 09:00"})
	require.NoError(t, err)
	assert.NotContains(t, text, "Причина")
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := Render(Kind("nope"), nil)
	assert.Error(t, err)
}

func TestSessionParamsUsesLocation(t *testing.T) {
	s := &model.Session{
		ID:              5,
		ScheduledStart:  time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC),
		ScheduledEnd:    time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Price:           4000,
		Currency:        "USD",
	}

	p := SessionParams(s, time.FixedZone("MSK", 3*60*60))

	assert.Equal(t, "19.10.2026 09:00", p["start"])
	assert.Equal(t, "09:00-10:00", p["time_range"])
	assert.Equal(t, "40 $", p["price"])
	assert.Equal(t, "5", p["session_id"])
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{}, nil
}

type usersByID map[int64]*model.User

func (u usersByID) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return u[id], nil
}

func TestTelegramNotifierSendsToChat(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, usersByID{1: {ID: 1, TelegramID: 555}}, zap.NewNop())

	err := n.Notify(context.Background(), 1, KindReminder1h, Params{"time_range": "09:00-10:00"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(555), sender.sent[0].ChatID)
	assert.Equal(t, models.ParseModeHTML, sender.sent[0].ParseMode)
	assert.Contains(t, sender.sent[0].Text, "09:00-10:00")
}

func TestTelegramNotifierSkipsUnknownUser(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, usersByID{}, zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), 42, KindReminder1h, nil))
	assert.Empty(t, sender.sent)
}

func TestTelegramNotifierReportsSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	n := NewTelegramNotifier(sender, usersByID{1: {ID: 1, TelegramID: 555}}, zap.NewNop())

	assert.Error(t, n.Notify(context.Background(), 1, KindReminder24h, nil))
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &Recorder{}
	failing := &Recorder{Err: errors.New("down")}

	err := Fanout{ok, failing}.Notify(context.Background(), 1, KindReviewRequest, nil)

	assert.Error(t, err)
	assert.Len(t, ok.Sent(), 1)
}

func TestQueuedDeliversInBackground(t *testing.T) {
	rec := &Recorder{}
	q := NewQueued(rec, jobs.QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Notify(context.Background(), 3, KindSessionConfirmed, Params{"session_id": "1"}))

	assert.Eventually(t, func() bool {
		return len(rec.OfKind(KindSessionConfirmed)) == 1
	}, time.Second, 5*time.Millisecond)
}

// stuckNotifier держит воркера до остановки очереди
type stuckNotifier struct {
	entered chan struct{}
}

func (n *stuckNotifier) Notify(ctx context.Context, userID int64, kind Kind, params Params) error {
	n.entered <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestQueuedNotifyDoesNotBlockWhenFull(t *testing.T) {
	stuck := &stuckNotifier{entered: make(chan struct{}, 1)}
	q := NewQueued(stuck, jobs.QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Notify(context.Background(), 1, KindReminder1h, nil))
	select {
	case <-stuck.entered:
	case <-time.After(time.Second):
		t.Fatal("worker did not start delivery")
	}
	require.NoError(t, q.Notify(context.Background(), 2, KindReminder1h, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- q.Notify(ctx, 3, KindReminder1h, nil) }()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, jobs.ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}

func TestQueuedNotifyHonoursCancelledContext(t *testing.T) {
	rec := &Recorder{}
	q := NewQueued(rec, jobs.QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, q.Notify(ctx, 1, KindReminder1h, nil), context.Canceled)
	assert.Empty(t, rec.Sent())
}
