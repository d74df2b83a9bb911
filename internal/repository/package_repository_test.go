package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageRepository_ConsumeCreditIsConditional(t *testing.T) {
	mock := newMock(t)
	repo := NewPackageRepository(mock)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("AND sessions_used < total_credits")).
		WithArgs(int64(11), int64(100), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.ConsumeCredit(context.Background(), 11, 100, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepository_RestoreCredit(t *testing.T) {
	mock := newMock(t)
	repo := NewPackageRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("GREATEST(sessions_used - 1, 0)")).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.RestoreCredit(context.Background(), 11)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPackageRepository_CreateDuplicatePurchase(t *testing.T) {
	mock := newMock(t)
	repo := NewPackageRepository(mock)

	pkg := &model.UserPackage{
		OwnerID:      100,
		PurchaseID:   uuid.New(),
		TotalCredits: 10,
		IsActive:     true,
	}

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (purchase_id) DO NOTHING")).
		WithArgs(pkg.OwnerID, pkg.PurchaseID, pkg.TotalCredits, pkg.IsActive, pkg.ExpiresAt).
		WillReturnError(pgx.ErrNoRows)

	created, err := repo.Create(context.Background(), pkg)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewPackageRepository(mock)

	purchaseID := uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := created.AddDate(0, 3, 0)

	rows := pgxmock.NewRows([]string{"id", "owner_id", "purchase_id", "total_credits", "sessions_used", "is_active", "expires_at", "created_at"}).
		AddRow(int64(11), int64(100), purchaseID, 5, 2, true, &expires, created)

	mock.ExpectQuery("FROM user_packages WHERE id").
		WithArgs(int64(11)).
		WillReturnRows(rows)

	pkg, err := repo.GetByID(context.Background(), 11)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, purchaseID, pkg.PurchaseID)
	assert.Equal(t, 3, pkg.Remaining())
	require.NotNil(t, pkg.ExpiresAt)
	assert.True(t, pkg.ExpiresAt.Equal(expires))
}

func TestPackageRepository_DeactivateExpired(t *testing.T) {
	mock := newMock(t)
	repo := NewPackageRepository(mock)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := repo.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
