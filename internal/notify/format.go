package notify

import (
	"fmt"
	"time"
)

// pluralize выбирает форму слова для числа: 1 занятие, 2 занятия, 5 занятий
func pluralize(count int, one, few, many string) string {
	if count%10 == 1 && count%100 != 11 {
		return one
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return few
	}
	return many
}

// pluralizeSessions возвращает правильное склонение слова "занятие"
func pluralizeSessions(count int) string {
	return pluralize(count, "занятие", "занятия", "занятий")
}

// weekdayName возвращает название дня недели на русском
func weekdayName(d time.Weekday) string {
	names := []string{
		"Воскресенье",
		"Понедельник",
		"Вторник",
		"Среда",
		"Четверг",
		"Пятница",
		"Суббота",
	}
	if d >= 0 && int(d) < len(names) {
		return names[d]
	}
	return "Неизвестно"
}

// formatDuration форматирует длительность занятия
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}
