package repository

import (
	"context"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/google/uuid"
)

// Методы возвращают nil, nil если запись не найдена.
// Условные записи возвращают false, если условие в WHERE не выполнилось.

type TemplateStore interface {
	Create(ctx context.Context, template *model.ScheduleTemplate) error
	GetByID(ctx context.Context, id int64) (*model.ScheduleTemplate, error)
	LockByID(ctx context.Context, id int64) (*model.ScheduleTemplate, error)
}

type SlotStore interface {
	Create(ctx context.Context, slot *model.ScheduleSlot) error
	GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error)
	List(ctx context.Context, filter model.SlotFilter) ([]*model.ScheduleSlot, error)
	FindOverlapping(ctx context.Context, templateID int64, start, end time.Time, excludeSlotID int64) ([]*model.ScheduleSlot, error)
	Update(ctx context.Context, slot *model.ScheduleSlot) (bool, error)
	ReserveCapacity(ctx context.Context, id int64) (bool, error)
	ReleaseCapacity(ctx context.Context, id int64) (bool, error)
	DeleteIfUnbooked(ctx context.Context, id int64) (bool, error)
}

type PackageStore interface {
	Create(ctx context.Context, pkg *model.UserPackage) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.UserPackage, error)
	GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*model.UserPackage, error)
	List(ctx context.Context, filter model.PackageFilter) ([]*model.UserPackage, error)
	ConsumeCredit(ctx context.Context, id, ownerID int64, now time.Time) (bool, error)
	RestoreCredit(ctx context.Context, id int64) (bool, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteIfUnused(ctx context.Context, id int64) (bool, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
	TransitionStatus(ctx context.Context, id int64, from, to model.BookingStatus, reason *string) (bool, error)
	UpdateDetails(ctx context.Context, id int64, details model.BookingDetails) (bool, error)
	Delete(ctx context.Context, id int64) (*model.Booking, error)
	ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]*model.Booking, error)
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Upsert(ctx context.Context, user *model.User) error
}

// Scope - набор репозиториев, привязанных к одному соединению или транзакции
type Scope interface {
	Templates() TemplateStore
	Slots() SlotStore
	Packages() PackageStore
	Bookings() BookingStore
	Users() UserStore
}

// Store - репозитории вне транзакции плюс явная единица работы
type Store interface {
	Scope
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Scope) error) error
	Ping(ctx context.Context) error
}
