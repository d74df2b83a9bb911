package model

import "time"

type ScheduleSlot struct {
	ID          int64     `json:"id"`
	TemplateID  int64     `json:"templateId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"bookedCount"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Remaining возвращает количество свободных мест
func (s *ScheduleSlot) Remaining() int {
	if s.BookedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.BookedCount
}

// HasStarted проверяет что слот уже начался к моменту now
func (s *ScheduleSlot) HasStarted(now time.Time) bool {
	return !s.StartTime.After(now)
}

// Overlaps проверяет пересечение полуоткрытых интервалов [aStart, aEnd) и [bStart, bEnd).
// Слот, заканчивающийся ровно в момент начала другого, не пересекается с ним.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
