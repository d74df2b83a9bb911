package model

import "time"

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// User - контакты владельца пакетов для уведомлений.
// Аутентификация внешняя, здесь только справочник получателей.
type User struct {
	ID         int64     `json:"id"`
	TelegramID *int64    `json:"telegramId"` // указатель - может быть nil
	Phone      string    `json:"phone"`
	FirstName  string    `json:"firstName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Actor - кто выполняет операцию (приходит из внешней аутентификации)
type Actor struct {
	UserID int64
	Role   Role
}

// IsAdmin возвращает true для администратора
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
