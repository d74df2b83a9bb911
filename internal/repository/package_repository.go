package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const packageColumns = `id, owner_id, purchase_id, total_credits, sessions_used, is_active, expires_at, created_at`

type PackageRepository struct {
	db base.Querier
}

func NewPackageRepository(db base.Querier) *PackageRepository {
	return &PackageRepository{db: db}
}

func scanPackage(row pgx.Row) (*model.UserPackage, error) {
	var pkg model.UserPackage
	err := row.Scan(
		&pkg.ID,
		&pkg.OwnerID,
		&pkg.PurchaseID,
		&pkg.TotalCredits,
		&pkg.SessionsUsed,
		&pkg.IsActive,
		&pkg.ExpiresAt,
		&pkg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// Create сохраняет купленный пакет.
// Повторная запись той же покупки ничего не меняет и возвращает false.
func (r *PackageRepository) Create(ctx context.Context, pkg *model.UserPackage) (bool, error) {
	query := `
		INSERT INTO user_packages (owner_id, purchase_id, total_credits, sessions_used, is_active, expires_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		ON CONFLICT (purchase_id) DO NOTHING
		RETURNING id, sessions_used, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		pkg.OwnerID,
		pkg.PurchaseID,
		pkg.TotalCredits,
		pkg.IsActive,
		pkg.ExpiresAt,
	).Scan(&pkg.ID, &pkg.SessionsUsed, &pkg.CreatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("create package: %w", err)
	}

	return true, nil
}

// GetByID получает пакет по ID
func (r *PackageRepository) GetByID(ctx context.Context, id int64) (*model.UserPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM user_packages WHERE id = $1`

	pkg, err := scanPackage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get package by id: %w", err)
	}

	return pkg, nil
}

// GetByPurchaseID получает пакет по идентификатору покупки
func (r *PackageRepository) GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*model.UserPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM user_packages WHERE purchase_id = $1`

	pkg, err := scanPackage(r.db.QueryRow(ctx, query, purchaseID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get package by purchase id: %w", err)
	}

	return pkg, nil
}

// List получает пакеты по фильтру, новые первыми
func (r *PackageRepository) List(ctx context.Context, filter model.PackageFilter) ([]*model.UserPackage, error) {
	var (
		conds []string
		args  []any
	)

	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.OnlyActive {
		conds = append(conds, "is_active")
	}

	query := `SELECT ` + packageColumns + ` FROM user_packages`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var packages []*model.UserPackage
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}

	return packages, nil
}

// ConsumeCredit списывает один кредит.
// Владелец, активность, срок и остаток проверяются в том же UPDATE.
func (r *PackageRepository) ConsumeCredit(ctx context.Context, id, ownerID int64, now time.Time) (bool, error) {
	query := `
		UPDATE user_packages
		SET sessions_used = sessions_used + 1
		WHERE id = $1
		  AND owner_id = $2
		  AND is_active
		  AND (expires_at IS NULL OR expires_at > $3)
		  AND sessions_used < total_credits
	`

	result, err := r.db.Exec(ctx, query, id, ownerID, now)
	if err != nil {
		return false, fmt.Errorf("consume credit: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// RestoreCredit возвращает один кредит, не опускаясь ниже нуля.
// false означает что пакета больше нет.
func (r *PackageRepository) RestoreCredit(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE user_packages
		SET sessions_used = GREATEST(sessions_used - 1, 0)
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("restore credit: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Deactivate отключает пакет
func (r *PackageRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE user_packages SET is_active = FALSE WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("deactivate package: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// DeactivateExpired отключает все пакеты с истёкшим сроком и возвращает их количество
func (r *PackageRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE user_packages
		SET is_active = FALSE
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
	`

	result, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired packages: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeleteIfUnused удаляет пакет, если по нему нет неотменённых бронирований
func (r *PackageRepository) DeleteIfUnused(ctx context.Context, id int64) (bool, error) {
	query := `
		DELETE FROM user_packages
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE user_package_id = $1 AND status <> 'cancelled'
		  )
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete package: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
