package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	devJWTSecret = "dev_secret"
)

type Config struct {
	Environment       string
	HTTPAddr          string
	Storage           string
	DBDSN             string
	TelegramToken     string
	MigrationsEnabled bool

	Redis   RedisConfig
	Payment PaymentConfig
	JWT     JWTConfig
	Log     LogConfig
	Booking BookingConfig
	Sweeps  SweepConfig
	Notify  NotifyConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PaymentConfig пустой URL включает встроенную песочницу вместо провайдера
type PaymentConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryDelay time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type LogConfig struct {
	Level string
}

type BookingConfig struct {
	Buffer                  time.Duration
	DefaultIncrementMinutes int
	DefaultCurrency         string
}

// SweepConfig периоды фоновых задач; 0 отключает задачу
type SweepConfig struct {
	Reminders      time.Duration
	NoShows        time.Duration
	AutoComplete   time.Duration
	ReviewRequests time.Duration
}

type NotifyConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries int
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Environment:       v.GetString("ENV"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		Storage:           strings.ToLower(v.GetString("STORAGE")),
		DBDSN:             v.GetString("DB_DSN"),
		TelegramToken:     v.GetString("TELEGRAM_TOKEN"),
		MigrationsEnabled: v.GetBool("MIGRATIONS_ENABLED"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Payment: PaymentConfig{
			BaseURL:    v.GetString("PAYMENT_GATEWAY_URL"),
			APIKey:     v.GetString("PAYMENT_API_KEY"),
			Timeout:    parseDuration(v.GetString("PAYMENT_TIMEOUT"), 10*time.Second),
			RetryDelay: parseDuration(v.GetString("PAYMENT_RETRY_DELAY"), 500*time.Millisecond),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Booking: BookingConfig{
			Buffer:                  parseDuration(v.GetString("BOOKING_BUFFER"), time.Hour),
			DefaultIncrementMinutes: v.GetInt("DEFAULT_INCREMENT_MINUTES"),
			DefaultCurrency:         strings.ToUpper(v.GetString("DEFAULT_CURRENCY")),
		},
		Sweeps: SweepConfig{
			Reminders:      parseDuration(v.GetString("REMINDER_SWEEP_INTERVAL"), 30*time.Minute),
			NoShows:        parseDuration(v.GetString("NO_SHOW_SWEEP_INTERVAL"), 30*time.Minute),
			AutoComplete:   parseDuration(v.GetString("AUTO_COMPLETE_SWEEP_INTERVAL"), time.Hour),
			ReviewRequests: parseDuration(v.GetString("REVIEW_SWEEP_INTERVAL"), time.Hour),
		},
		Notify: NotifyConfig{
			Workers:    v.GetInt("NOTIFY_WORKERS"),
			QueueSize:  v.GetInt("NOTIFY_QUEUE_SIZE"),
			MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded\n")

	return cfg, nil
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}

	if c.IsProduction() && (c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret) {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Booking.Buffer <= 0 {
		return fmt.Errorf("BOOKING_BUFFER must be positive")
	}
	if len(c.Booking.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORAGE", StoragePostgres)
	v.SetDefault("MIGRATIONS_ENABLED", true)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("PAYMENT_TIMEOUT", "10s")
	v.SetDefault("PAYMENT_RETRY_DELAY", "500ms")

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("BOOKING_BUFFER", "1h")
	v.SetDefault("DEFAULT_INCREMENT_MINUTES", 30)
	v.SetDefault("DEFAULT_CURRENCY", "USD")

	v.SetDefault("REMINDER_SWEEP_INTERVAL", "30m")
	v.SetDefault("NO_SHOW_SWEEP_INTERVAL", "30m")
	v.SetDefault("AUTO_COMPLETE_SWEEP_INTERVAL", "1h")
	v.SetDefault("REVIEW_SWEEP_INTERVAL", "1h")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
}

// parseDuration разбирает длительность; пустое или неверное значение даёт fallback
func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
