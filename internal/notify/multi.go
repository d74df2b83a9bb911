package notify

import (
	"context"
	"errors"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/service"
	"go.uber.org/zap"
)

// Channel - именованный канал доставки, имя попадает в логи
type Channel struct {
	Name     string
	Notifier service.Notifier
}

// Multi рассылает уведомление во все каналы.
// Ошибка одного канала не мешает остальным.
type Multi struct {
	channels []Channel
	logger   *zap.Logger
}

func NewMulti(logger *zap.Logger, channels ...Channel) *Multi {
	var active []Channel
	for _, ch := range channels {
		if ch.Notifier != nil {
			active = append(active, ch)
		}
	}
	return &Multi{channels: active, logger: logger}
}

// Len возвращает количество подключённых каналов
func (m *Multi) Len() int {
	return len(m.channels)
}

func (m *Multi) Notify(ctx context.Context, notice model.BookingNotice) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Notifier.Notify(ctx, notice); err != nil {
			m.logger.Warn("Notification channel failed",
				zap.String("channel", ch.Name),
				zap.String("event", string(notice.Event)),
				zap.Int64("booking_id", notice.Booking.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
