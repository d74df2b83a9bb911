package model

import "time"

type NoticeEvent string

const (
	NoticeBookingCreated   NoticeEvent = "booking.created"
	NoticeBookingCancelled NoticeEvent = "booking.cancelled"
	NoticeBookingReminder  NoticeEvent = "booking.reminder"
)

// BookingNotice передаётся диспетчеру уведомлений после фиксации транзакции
type BookingNotice struct {
	Event   NoticeEvent
	Booking *Booking
	Owner   *User // nil если контакты владельца неизвестны
}

// OTPVerification - результат проверки одноразового кода во внешнем хранилище
type OTPVerification struct {
	Verified  bool
	ExpiresAt time.Time
}

// Valid проверяет что код подтверждён и ещё не истёк
func (v OTPVerification) Valid(now time.Time) bool {
	return v.Verified && v.ExpiresAt.After(now)
}
