package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/api"
	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/config"
	"github.com/Freeeeeet/coach_scheduler/internal/controller"
	"github.com/Freeeeeet/coach_scheduler/internal/jobs"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
	"github.com/Freeeeeet/coach_scheduler/internal/payment"
	"github.com/Freeeeeet/coach_scheduler/internal/repository"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

const shutdownTimeout = 15 * time.Second

// storage репозитории выбранного бэкенда
type storage struct {
	users     service.UserRepository
	coaches   service.CoachRepository
	rules     service.AvailabilityRuleRepository
	sessions  service.SessionRepository
	sweeps    service.SweepRepository
	reminders service.ReminderLog
	closers   []func()
}

// App собранное приложение: HTTP API, бот, планировщик и очередь уведомлений
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server
	scheduler *Scheduler
	queue     *notify.Queued
	bot       *controller.BotController
	closers   []func()
}

// New собирает зависимости по конфигу
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	clk := clock.Real{}

	store, err := openStorage(ctx, cfg, clk, logger)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, closers: store.closers}

	var tgBot *bot.Bot
	if cfg.TelegramToken != "" {
		tgBot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
	}

	var telegram notify.Notifier
	if tgBot != nil {
		telegram = notify.NewTelegramNotifier(tgBot, store.users, logger)
	}
	notifier, queue := newNotifier(cfg.Notify, telegram, logger)
	a.queue = queue

	gateway := newGateway(cfg, logger)
	validate := service.NewValidator()

	users := service.NewUserService(store.users, store.coaches, validate, service.CoachDefaults{
		Currency:         cfg.Booking.DefaultCurrency,
		IncrementMinutes: cfg.Booking.DefaultIncrementMinutes,
	}, logger)
	avail := service.NewAvailabilityService(store.rules, store.coaches, store.sessions, clk, cfg.Booking.Buffer, validate, logger)
	booking := service.NewBookingService(store.coaches, store.rules, store.sessions, gateway, notifier, clk, cfg.Booking.Buffer, validate, logger)
	sessions := service.NewSessionService(store.sessions, store.coaches, gateway, notifier, clk, logger)
	sweeps := service.NewSweepService(store.sweeps, sessions, store.reminders, store.coaches, notifier, clk, logger)

	a.scheduler = NewScheduler(SweepJobs(sweeps, Intervals{
		Reminders:      cfg.Sweeps.Reminders,
		NoShows:        cfg.Sweeps.NoShows,
		AutoComplete:   cfg.Sweeps.AutoComplete,
		ReviewRequests: cfg.Sweeps.ReviewRequests,
	}), logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	auth := api.NewAuth(cfg.JWT.Secret, cfg.JWT.Expiration)
	a.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewHandler(avail, booking, sessions, users, logger), auth, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if tgBot != nil {
		a.bot = controller.NewBotController(tgBot, users, sessions, auth, logger)
	}

	return a, nil
}

func openStorage(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *zap.Logger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		mem := memory.New(clk)
		return &storage{
			users:     mem.Users(),
			coaches:   mem.Coaches(),
			rules:     mem.Rules(),
			sessions:  mem.Sessions(),
			sweeps:    mem.Sessions(),
			reminders: reminderLog(ctx, cfg, mem, logger),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("✅ Connected to PostgreSQL")

	// database/sql поверх того же пула: для goose и sqlx
	db := stdlib.OpenDBFromPool(pool)

	if cfg.MigrationsEnabled {
		migrator, err := NewMigrator(db, logger)
		if err == nil {
			err = migrator.Run(ctx)
		}
		if err != nil {
			_ = db.Close()
			pool.Close()
			return nil, err
		}
	}

	return &storage{
		users:     repository.NewUserRepository(pool),
		coaches:   repository.NewCoachRepository(pool),
		rules:     repository.NewAvailabilityRuleRepository(pool, logger),
		sessions:  repository.NewSessionRepository(pool, logger),
		sweeps:    repository.NewSweepRepository(sqlx.NewDb(db, "pgx")),
		reminders: reminderLog(ctx, cfg, memory.New(clk), logger),
		closers: []func(){
			func() { _ = db.Close() },
			pool.Close,
		},
	}, nil
}

// reminderLog Redis, если он настроен и доступен, иначе журнал в памяти процесса
func reminderLog(ctx context.Context, cfg *config.Config, mem *memory.Store, logger *zap.Logger) service.ReminderLog {
	if cfg.Redis.Addr == "" {
		return mem.Reminders()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, reminder marks kept in memory",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err),
		)
		_ = client.Close()
		return mem.Reminders()
	}

	logger.Info("✅ Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	return repository.NewRedisReminderLog(client, repository.DefaultReminderTTL, logger)
}

func newGateway(cfg *config.Config, logger *zap.Logger) payment.Gateway {
	if cfg.Payment.BaseURL == "" {
		logger.Warn("PAYMENT_GATEWAY_URL not set, using sandbox payments")
		return payment.NewSandbox()
	}
	return payment.NewHTTPGateway(payment.HTTPConfig{
		BaseURL:    cfg.Payment.BaseURL,
		APIKey:     cfg.Payment.APIKey,
		Timeout:    cfg.Payment.Timeout,
		RetryDelay: cfg.Payment.RetryDelay,
	}, nil, logger)
}

// newNotifier собирает рассылку: лог пишется синхронно и один раз,
// в очередь с повторами идёт только telegram. queue nil, если telegram нет
func newNotifier(cfg config.NotifyConfig, telegram notify.Notifier, logger *zap.Logger) (notify.Fanout, *notify.Queued) {
	notifier := notify.Fanout{notify.NewLogNotifier(logger)}
	if telegram == nil {
		return notifier, nil
	}
	queue := notify.NewQueued(telegram, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.QueueSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return append(notifier, queue), queue
}

// Run запускает все компоненты и блокируется до отмены ctx или падения HTTP сервера
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.queue != nil {
		a.queue.Start(ctx)
	}
	a.scheduler.Start(ctx)

	botCtx, stopBot := context.WithCancel(ctx)
	defer stopBot()
	if a.bot != nil {
		if err := a.bot.RegisterHandlers(botCtx); err != nil {
			a.logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		go func() { _ = a.bot.Start(botCtx) }()
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	stopBot()
	a.scheduler.Stop()
	if a.queue != nil {
		a.queue.Stop()
	}

	a.logger.Info("Stopped")
	return runErr
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
