package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ReminderSender рассылает напоминания о ближайших занятиях
type ReminderSender interface {
	SendReminders(ctx context.Context, lead time.Duration) (int, error)
}

// PackageExpirer деактивирует пакеты с истёкшим сроком
type PackageExpirer interface {
	ExpirePackages(ctx context.Context) (int64, error)
}

type SchedulerConfig struct {
	ReminderLead     time.Duration
	ReminderInterval time.Duration
	ExpiryInterval   time.Duration
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	cron      gocron.Scheduler
	reminders ReminderSender
	packages  PackageExpirer
	cfg       SchedulerConfig
	logger    *zap.Logger
}

// NewScheduler создаёт новый планировщик
func NewScheduler(reminders ReminderSender, packages PackageExpirer, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Scheduler{
		cron:      cron,
		reminders: reminders,
		packages:  packages,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Start регистрирует задачи и запускает их; первый запуск сразу при старте
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting background scheduler",
		zap.Duration("reminder_interval", s.cfg.ReminderInterval),
		zap.Duration("expiry_interval", s.cfg.ExpiryInterval),
	)

	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.ReminderInterval),
		gocron.NewTask(s.sendReminders, ctx),
		gocron.WithName("booking-reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return fmt.Errorf("register reminder job: %w", err)
	}

	if _, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.ExpiryInterval),
		gocron.NewTask(s.expirePackages, ctx),
		gocron.WithName("package-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return fmt.Errorf("register expiry job: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop останавливает фоновые задачи и ждёт завершения текущих
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping background scheduler")
	return s.cron.Shutdown()
}

func (s *Scheduler) sendReminders(ctx context.Context) {
	sent, err := s.reminders.SendReminders(ctx, s.cfg.ReminderLead)
	if err != nil {
		s.logger.Error("Failed to send reminders", zap.Error(err))
		return
	}
	if sent > 0 {
		s.logger.Info("Reminders sent", zap.Int("count", sent))
	}
}

func (s *Scheduler) expirePackages(ctx context.Context) {
	expired, err := s.packages.ExpirePackages(ctx)
	if err != nil {
		s.logger.Error("Failed to expire packages", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("Packages expired", zap.Int64("count", expired))
	}
}
