package model

import (
	"time"

	"github.com/google/uuid"
)

type UserPackage struct {
	ID           int64      `json:"id"`
	OwnerID      int64      `json:"ownerId"`
	PurchaseID   uuid.UUID  `json:"purchaseId"`
	TotalCredits int        `json:"totalCreditsPurchased"` // sessions_per_package * quantity
	SessionsUsed int        `json:"sessionsUsed"`
	IsActive     bool       `json:"isActive"`
	ExpiresAt    *time.Time `json:"expiresAt"` // nil - бессрочный пакет
	CreatedAt    time.Time  `json:"createdAt"`
}

// Remaining возвращает количество неиспользованных кредитов
func (p *UserPackage) Remaining() int {
	if p.SessionsUsed >= p.TotalCredits {
		return 0
	}
	return p.TotalCredits - p.SessionsUsed
}

// IsExpired проверяет истёк ли срок действия пакета
func (p *UserPackage) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// Usable проверяет что с пакета можно списать кредит
func (p *UserPackage) Usable(now time.Time) bool {
	return p.IsActive && !p.IsExpired(now) && p.Remaining() > 0
}
