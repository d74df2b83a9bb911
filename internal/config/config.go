package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// База данных и транзакции
	DBDSN          string        `envconfig:"DB_DSN" required:"true"`
	DBTxTimeout    time.Duration `envconfig:"DB_TX_TIMEOUT" default:"5s"`
	TxIsolation    string        `envconfig:"LEDGER_TX_ISOLATION" default:"read_committed"`
	TxMaxRetries   uint64        `envconfig:"TX_MAX_RETRIES" default:"3"`
	TxRetryBase    time.Duration `envconfig:"TX_RETRY_BASE" default:"20ms"`
	MigrationsPath string        `envconfig:"MIGRATIONS_DIR"` // пусто - встроенные миграции

	// Аутентификация (токены выпускает внешний сервис)
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Хранилище OTP
	OTPTimeout    time.Duration `envconfig:"OTP_TIMEOUT" default:"2s"`
	OTPKeyPrefix  string        `envconfig:"OTP_KEY_PREFIX" default:"otp"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`

	// Уведомления (каждый канал необязателен)
	TelegramToken    string `envconfig:"TELEGRAM_TOKEN"`
	RabbitMQURL      string `envconfig:"RABBITMQ_URL"`
	RabbitMQExchange string `envconfig:"RABBITMQ_EXCHANGE" default:"booking.events"`
	SMSEnabled       bool   `envconfig:"SMS_ENABLED" default:"false"`
	AWSRegion        string `envconfig:"AWS_REGION"`

	// Фоновые задачи
	ReminderLead     time.Duration `envconfig:"REMINDER_LEAD" default:"24h"`
	ReminderInterval time.Duration `envconfig:"REMINDER_INTERVAL" default:"10m"`
	ExpiryInterval   time.Duration `envconfig:"EXPIRY_INTERVAL" default:"1h"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded (env=%s)\n", cfg.Environment)

	return &cfg, nil
}

func (c *Config) validate() error {
	// Проверяем обязательные поля (envconfig пропускает пустые значения)
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required but not set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.DBTxTimeout <= 0 {
		return fmt.Errorf("DB_TX_TIMEOUT must be positive")
	}
	if c.OTPTimeout <= 0 {
		return fmt.Errorf("OTP_TIMEOUT must be positive")
	}
	if c.ReminderLead <= 0 || c.ReminderInterval <= 0 || c.ExpiryInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	return nil
}

// IsProduction возвращает true для боевого окружения
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
