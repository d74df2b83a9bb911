package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/session_booking/internal/app"
	"github.com/Freeeeeet/session_booking/internal/config"
	"github.com/Freeeeeet/session_booking/internal/controller/api"
	"github.com/Freeeeeet/session_booking/internal/notify"
	"github.com/Freeeeeet/session_booking/internal/otp"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting session booking service",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.HTTPAddr),
	)

	shutdownTracer, err := app.InitTracer(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// База данных
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		return err
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("Failed to close migrator connection", zap.Error(err))
	}

	isoLevel, err := base.ParseIsoLevel(cfg.TxIsolation)
	if err != nil {
		return err
	}
	txm := base.NewTxManager(pool, base.TxOptions{
		IsoLevel:   isoLevel,
		MaxRetries: cfg.TxMaxRetries,
		RetryBase:  cfg.TxRetryBase,
		Timeout:    cfg.DBTxTimeout,
	})
	store := repository.NewPgStore(pool, txm)

	// Хранилище одноразовых кодов
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	verifier := otp.NewRedisVerifier(rdb, cfg.OTPKeyPrefix)

	// Каналы уведомлений
	var channels []notify.Channel
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken)
		if err != nil {
			return err
		}
		channels = append(channels, notify.Channel{Name: "telegram", Notifier: tg})
	}
	if cfg.RabbitMQURL != "" {
		pub, err := notify.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		channels = append(channels, notify.Channel{Name: "rabbitmq", Notifier: pub})
	}
	if cfg.SMSEnabled {
		sms, err := notify.NewSMSNotifier(ctx, cfg.AWSRegion)
		if err != nil {
			return err
		}
		channels = append(channels, notify.Channel{Name: "sms", Notifier: sms})
	}
	notifier := notify.NewMulti(logger, channels...)
	logger.Info("Notification channels configured", zap.Int("count", notifier.Len()))

	// Сервисы
	bookings := service.NewBookingService(store, verifier, notifier, logger, service.BookingOptions{
		OTPTimeout: cfg.OTPTimeout,
	})
	slots := service.NewSlotService(store, time.Now, logger)
	packages := service.NewPackageService(store, time.Now, logger)
	users := service.NewUserService(store.Users(), logger)

	scheduler, err := app.NewScheduler(bookings, packages, app.SchedulerConfig{
		ReminderLead:     cfg.ReminderLead,
		ReminderInterval: cfg.ReminderInterval,
		ExpiryInterval:   cfg.ExpiryInterval,
	}, logger)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("Failed to stop scheduler", zap.Error(err))
		}
	}()

	server, err := api.NewServer(cfg.HTTPAddr, cfg.JWTSecret, api.Services{
		Bookings: bookings,
		Slots:    slots,
		Packages: packages,
		Users:    users,
		DB:       store,
	}, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	logger.Info("Service stopped")
	return nil
}
