package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"go.uber.org/zap"
)

const reminderBatchSize = 100

// SendReminders рассылает напоминания о занятиях, начинающихся в ближайшие lead.
// Флаг reminder_sent ставится до отправки, поэтому напоминание уходит не больше одного раза.
func (s *BookingService) SendReminders(ctx context.Context, lead time.Duration) (int, error) {
	if lead <= 0 {
		return 0, newError(KindValidation, "reminder lead must be positive")
	}

	now := s.now()
	due, err := s.store.Bookings().ListDueReminders(ctx, now, now.Add(lead), reminderBatchSize)
	if err != nil {
		return 0, s.fail("list due reminders", err)
	}

	sent := 0
	for _, booking := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		marked, err := s.store.Bookings().MarkReminderSent(ctx, booking.ID)
		if err != nil {
			s.logger.Error("Failed to mark reminder",
				zap.Int64("booking_id", booking.ID),
				zap.Error(err),
			)
			continue
		}
		if !marked {
			continue // Отменено или уже отправлено другим экземпляром
		}

		booking.ReminderSent = true
		if err := attach(ctx, s.store, booking); err != nil {
			s.logger.Warn("Failed to load reminder details",
				zap.Int64("booking_id", booking.ID),
				zap.Error(err),
			)
		}

		s.notify(ctx, model.NoticeBookingReminder, booking)
		sent++
	}

	if sent > 0 {
		s.logger.Info("Reminders sent", zap.Int("count", sent))
	}
	return sent, nil
}
