package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

func TestSchedulerRunsJobsAtStartAndOnTicks(t *testing.T) {
	var fast, slow atomic.Int32

	s := NewScheduler([]Job{
		{Name: "fast", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) (service.SweepReport, error) {
			fast.Add(1)
			return service.SweepReport{}, nil
		}},
		{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) (service.SweepReport, error) {
			slow.Add(1)
			return service.SweepReport{}, errors.New("db down")
		}},
	}, zap.NewNop())

	s.Start(context.Background())

	assert.Eventually(t, func() bool { return fast.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return slow.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	stopped := fast.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, fast.Load())
	assert.Equal(t, int32(1), slow.Load())

	// повторный Stop безопасен
	s.Stop()
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler([]Job{
		{Name: "job", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) (service.SweepReport, error) {
			runs.Add(1)
			return service.SweepReport{}, nil
		}},
	}, zap.NewNop())
	s.Start(ctx)

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("jobs did not stop after context cancellation")
	}
}

func TestSchedulerSkipsDisabledJobsAndRecoversPanics(t *testing.T) {
	var ran atomic.Bool

	s := NewScheduler([]Job{
		{Name: "disabled", Interval: 0, Run: func(ctx context.Context) (service.SweepReport, error) {
			ran.Store(true)
			return service.SweepReport{}, nil
		}},
		{Name: "panics", Interval: time.Hour, Run: func(ctx context.Context) (service.SweepReport, error) {
			panic("boom")
		}},
	}, zap.NewNop())

	s.Start(context.Background())
	s.Stop()

	assert.False(t, ran.Load())
}
