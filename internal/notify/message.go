package notify

import (
	"fmt"
	"strings"

	"github.com/Freeeeeet/session_booking/internal/model"
)

const timeLayout = "02.01.2006 15:04"

// FormatText собирает текст уведомления для мессенджера и SMS
func FormatText(notice model.BookingNotice) string {
	b := notice.Booking

	var sb strings.Builder
	switch notice.Event {
	case model.NoticeBookingCreated:
		sb.WriteString("✅ Запись подтверждена\n\n")
	case model.NoticeBookingCancelled:
		sb.WriteString("❌ Запись отменена\n\n")
	case model.NoticeBookingReminder:
		sb.WriteString("⏰ Напоминание о занятии\n\n")
	default:
		sb.WriteString("ℹ️ Изменение записи\n\n")
	}

	if notice.Owner != nil && notice.Owner.FirstName != "" {
		fmt.Fprintf(&sb, "%s, ", notice.Owner.FirstName)
	}
	fmt.Fprintf(&sb, "бронирование #%d (%s)", b.ID, b.SessionType)

	if b.Slot != nil {
		fmt.Fprintf(&sb, "\n📅 %s, %s - %s (%s)",
			weekdayName(b.Slot.StartTime.Weekday()),
			b.Slot.StartTime.Format(timeLayout),
			b.Slot.EndTime.Format("15:04"),
			formatDuration(b.Slot.EndTime.Sub(b.Slot.StartTime)),
		)
	}

	if notice.Event == model.NoticeBookingCancelled && b.CancelledReason != nil && *b.CancelledReason != "" {
		fmt.Fprintf(&sb, "\nПричина: %s", *b.CancelledReason)
	}

	if b.Package != nil && notice.Event != model.NoticeBookingReminder {
		left := b.Package.Remaining()
		fmt.Fprintf(&sb, "\nВ пакете осталось %d %s", left, pluralizeSessions(left))
	}

	return sb.String()
}
