package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PackageService struct {
	store  repository.Store
	now    Clock
	logger *zap.Logger
}

func NewPackageService(store repository.Store, clock Clock, logger *zap.Logger) *PackageService {
	if clock == nil {
		clock = time.Now
	}
	return &PackageService{
		store:  store,
		now:    clock,
		logger: logger,
	}
}

// GrantPackageInput описывает уже оплаченную покупку
type GrantPackageInput struct {
	OwnerID            int64
	PurchaseID         uuid.UUID // uuid.Nil - сгенерировать новый
	SessionsPerPackage int
	Quantity           int
	ExpiresAt          *time.Time
}

// GrantPackage начисляет пакет занятий за покупку.
// Повторный вызов с тем же PurchaseID возвращает существующий пакет и created=false.
func (s *PackageService) GrantPackage(ctx context.Context, in GrantPackageInput) (*model.UserPackage, bool, error) {
	if in.OwnerID <= 0 {
		return nil, false, newError(KindValidation, "owner id is required")
	}
	if in.SessionsPerPackage < 1 || in.Quantity < 1 {
		return nil, false, newError(KindValidation, "sessions per package and quantity must be at least 1")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, false, newError(KindValidation, "expiry must be in the future")
	}

	purchaseID := in.PurchaseID
	if purchaseID == uuid.Nil {
		purchaseID = uuid.New()
	}

	pkg := &model.UserPackage{
		OwnerID:      in.OwnerID,
		PurchaseID:   purchaseID,
		TotalCredits: in.SessionsPerPackage * in.Quantity,
		IsActive:     true,
		ExpiresAt:    in.ExpiresAt,
	}

	created, err := s.store.Packages().Create(ctx, pkg)
	if err != nil {
		return nil, false, s.fail("grant package", err)
	}

	if !created {
		existing, err := s.store.Packages().GetByPurchaseID(ctx, purchaseID)
		if err != nil {
			return nil, false, s.fail("get package by purchase", err)
		}
		if existing == nil {
			return nil, false, newError(KindConflict, "purchase %s is being recorded concurrently", purchaseID)
		}
		if existing.OwnerID != in.OwnerID {
			return nil, false, newError(KindConflict, "purchase %s belongs to another user", purchaseID)
		}
		return existing, false, nil
	}

	s.logger.Info("Package granted",
		zap.Int64("package_id", pkg.ID),
		zap.Int64("owner_id", pkg.OwnerID),
		zap.String("purchase_id", purchaseID.String()),
		zap.Int("total_credits", pkg.TotalCredits),
	)

	return pkg, true, nil
}

// GetPackage получает пакет; клиент видит только свои пакеты
func (s *PackageService) GetPackage(ctx context.Context, actor model.Actor, id int64) (*model.UserPackage, error) {
	pkg, err := s.store.Packages().GetByID(ctx, id)
	if err != nil {
		return nil, s.fail("get package", err)
	}
	if pkg == nil || (!actor.IsAdmin() && pkg.OwnerID != actor.UserID) {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// ListPackages получает пакеты; для клиента фильтр всегда ограничен его ID
func (s *PackageService) ListPackages(ctx context.Context, actor model.Actor, filter model.PackageFilter) ([]*model.UserPackage, error) {
	if !actor.IsAdmin() {
		filter.OwnerID = actor.UserID
	}

	packages, err := s.store.Packages().List(ctx, filter)
	if err != nil {
		return nil, s.fail("list packages", err)
	}
	return packages, nil
}

// DeactivatePackage отключает пакет; уже созданные бронирования остаются
func (s *PackageService) DeactivatePackage(ctx context.Context, id int64) error {
	ok, err := s.store.Packages().Deactivate(ctx, id)
	if err != nil {
		return s.fail("deactivate package", err)
	}
	if !ok {
		return ErrPackageNotFound
	}

	s.logger.Info("Package deactivated", zap.Int64("package_id", id))
	return nil
}

// DeletePackage удаляет пакет без действующих бронирований
func (s *PackageService) DeletePackage(ctx context.Context, id int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		deleted, err := tx.Packages().DeleteIfUnused(ctx, id)
		if err != nil {
			return err
		}
		if deleted {
			return nil
		}

		pkg, err := tx.Packages().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if pkg == nil {
			return ErrPackageNotFound
		}
		return newError(KindConflict, "package %d has active bookings", id)
	})
	if err != nil {
		return s.fail("delete package", err)
	}

	s.logger.Info("Package deleted", zap.Int64("package_id", id))
	return nil
}

// ExpirePackages отключает пакеты с истёкшим сроком действия
func (s *PackageService) ExpirePackages(ctx context.Context) (int64, error) {
	n, err := s.store.Packages().DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, s.fail("expire packages", err)
	}

	if n > 0 {
		s.logger.Info("Expired packages deactivated", zap.Int64("count", n))
	}
	return n, nil
}

func (s *PackageService) fail(op string, err error) error {
	err = asDomain(op, err)
	if KindOf(err) == KindInternal {
		s.logger.Error("Package operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

// checkPackage проверяет что владелец может списать кредит с пакета в момент now
func checkPackage(pkg *model.UserPackage, ownerID int64, now time.Time) error {
	switch {
	case pkg == nil:
		return ErrPackageNotFound
	case pkg.OwnerID != ownerID:
		return ErrOwnerMismatch
	case !pkg.IsActive:
		return ErrPackageInactive
	case pkg.IsExpired(now):
		return newError(KindPackageInactive, "package expired at %s", pkg.ExpiresAt.UTC().Format(time.RFC3339))
	case pkg.Remaining() <= 0:
		return ErrNoCredits
	}
	return nil
}

// consumeCredit списывает кредит условным UPDATE.
// Если условие не выполнилось, пакет перечитывается в той же транзакции, чтобы назвать причину.
func consumeCredit(ctx context.Context, packages repository.PackageStore, packageID, ownerID int64, now time.Time) error {
	ok, err := packages.ConsumeCredit(ctx, packageID, ownerID, now)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	pkg, err := packages.GetByID(ctx, packageID)
	if err != nil {
		return err
	}
	if err := checkPackage(pkg, ownerID, now); err != nil {
		return err
	}
	return ErrNoCredits
}

// restoreCredit возвращает кредит; пропавший пакет - конфликт, транзакция откатывается
func restoreCredit(ctx context.Context, packages repository.PackageStore, packageID int64) error {
	ok, err := packages.RestoreCredit(ctx, packageID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindConflict, "package %d no longer exists", packageID)
	}
	return nil
}
