package repository

import (
	"context"

	"github.com/Freeeeeet/session_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type scope struct {
	q base.Querier
}

func (s scope) Templates() TemplateStore { return NewTemplateRepository(s.q) }
func (s scope) Slots() SlotStore         { return NewSlotRepository(s.q) }
func (s scope) Packages() PackageStore   { return NewPackageRepository(s.q) }
func (s scope) Bookings() BookingStore   { return NewBookingRepository(s.q) }
func (s scope) Users() UserStore         { return NewUserRepository(s.q) }

// PgStore реализует Store поверх пула pgx
type PgStore struct {
	scope
	db  base.DB
	txm *base.TxManager
}

// NewPgStore создаёт хранилище; txm задаёт изоляцию и политику повторов
func NewPgStore(db base.DB, txm *base.TxManager) *PgStore {
	return &PgStore{
		scope: scope{q: base.WithTimeout(db, txm.Timeout())},
		db:    db,
		txm:   txm,
	}
}

// WithinTx выполняет fn с репозиториями, привязанными к одной транзакции
func (s *PgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Scope) error) error {
	return s.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, scope{q: tx})
	})
}

// Ping проверяет доступность базы
func (s *PgStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
