package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// SweepFunc один проход фоновой задачи
type SweepFunc func(ctx context.Context) (service.SweepReport, error)

// Job фоновая задача со своим периодом
type Job struct {
	Name     string
	Interval time.Duration
	Run      SweepFunc
}

// Intervals периоды фоновых задач
type Intervals struct {
	Reminders      time.Duration
	NoShows        time.Duration
	AutoComplete   time.Duration
	ReviewRequests time.Duration
}

// SweepJobs собирает четыре прохода SweepService в список задач
func SweepJobs(sweeps *service.SweepService, iv Intervals) []Job {
	return []Job{
		{Name: service.SweepReminders, Interval: iv.Reminders, Run: sweeps.RunReminders},
		{Name: service.SweepNoShows, Interval: iv.NoShows, Run: sweeps.RunNoShows},
		{Name: service.SweepAutoComplete, Interval: iv.AutoComplete, Run: sweeps.RunAutoComplete},
		{Name: service.SweepReviewRequests, Interval: iv.ReviewRequests, Run: sweeps.RunReviewRequests},
	}
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	jobs     []Job
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(jobs []Job, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start запускает каждую задачу в своей горутине
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Int("jobs", len(s.jobs)))

	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.logger.Warn("Background job disabled", zap.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.runJob(ctx, job)
	}
}

// Stop останавливает фоновые задачи и ждёт текущие проходы
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.runOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, job)
		case <-s.stopChan:
			s.logger.Info("Background job stopped", zap.String("job", job.Name))
			return
		case <-ctx.Done():
			s.logger.Info("Background job cancelled", zap.String("job", job.Name))
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Background job panicked", zap.String("job", job.Name), zap.Any("panic", r))
		}
	}()

	if _, err := job.Run(ctx); err != nil {
		s.logger.Error("Background job failed", zap.String("job", job.Name), zap.Error(err))
	}
}
