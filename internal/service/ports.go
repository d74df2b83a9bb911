package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
)

// OTPVerifier проверяет одноразовый код во внешнем хранилище.
// Несовпадение кода - это Verified=false, ошибка означает недоступность хранилища.
type OTPVerifier interface {
	Verify(ctx context.Context, phoneNumber, code string) (model.OTPVerification, error)
}

// Notifier доставляет уведомление о бронировании после фиксации транзакции
type Notifier interface {
	Notify(ctx context.Context, notice model.BookingNotice) error
}

// Clock возвращает текущее время; в тестах подменяется
type Clock func() time.Time
