package model

import "time"

// SlotFilter - параметры выборки слотов. Нулевые значения означают "без ограничения".
type SlotFilter struct {
	TemplateID    int64
	From          time.Time
	To            time.Time
	OnlyAvailable bool
	Limit         int
}

// BookingFilter - параметры выборки бронирований
type BookingFilter struct {
	OwnerID int64
	SlotID  int64
	Status  BookingStatus
	Limit   int
}

// PackageFilter - параметры выборки пакетов
type PackageFilter struct {
	OwnerID    int64
	OnlyActive bool
}
