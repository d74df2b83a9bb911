package model

import "time"

// ScheduleTemplate - шаблон занятий, к которому привязаны слоты.
// Пересечение слотов проверяется в пределах одного шаблона.
type ScheduleTemplate struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	SessionType     string    `json:"sessionType"`
	DefaultCapacity int       `json:"defaultCapacity"`
	DurationMinutes int       `json:"durationMinutes"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}
