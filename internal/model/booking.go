package model

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено (начальное состояние)
	BookingStatusCompleted BookingStatus = "completed" // Занятие состоялось
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено, место и кредит возвращены
	BookingStatusNoShow    BookingStatus = "no-show"   // Клиент не пришёл
)

// ParseBookingStatus разбирает статус, пришедший из запроса
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown booking status %q", s)
	}
	return status, nil
}

// Valid проверяет что статус входит в закрытый набор
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// IsTerminal возвращает true для статусов, из которых нельзя вернуться в confirmed
func (s BookingStatus) IsTerminal() bool {
	return s.Valid() && s != BookingStatusConfirmed
}

// Compensates возвращает true если вход в статус возвращает место и кредит.
// completed и no-show - чисто информационные статусы.
func (s BookingStatus) Compensates() bool {
	return s == BookingStatusCancelled
}

// CanTransition проверяет допустимость перехода from -> to.
// Переход в тот же статус не считается переходом.
func CanTransition(from, to BookingStatus) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	return from == BookingStatusConfirmed
}

type Booking struct {
	ID              int64         `json:"id"`
	OwnerID         int64         `json:"ownerId"`
	UserPackageID   int64         `json:"userPackageId"`
	ScheduleSlotID  int64         `json:"scheduleSlotId"`
	SessionType     string        `json:"sessionType"`
	Status          BookingStatus `json:"status"`
	Notes           string        `json:"notes"`
	CancelledReason *string       `json:"cancelledReason"`
	ReminderSent    bool          `json:"reminderSent"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`

	// Заполняются сервисом для ответа и уведомлений (не из таблицы bookings)
	Slot    *ScheduleSlot `json:"slot,omitempty"`
	Package *UserPackage  `json:"package,omitempty"`
}

// BookingDetails - изменяемые поля бронирования, не влияющие на счётчики
type BookingDetails struct {
	Notes           *string
	CancelledReason *string
}

// Empty возвращает true если менять нечего
func (d BookingDetails) Empty() bool {
	return d.Notes == nil && d.CancelledReason == nil
}
