package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGrantPackage_IdempotentPerPurchase(t *testing.T) {
	store := memstore.New()
	svc := NewPackageService(store, func() time.Time { return testT0 }, zap.NewNop())
	purchase := uuid.New()

	pkg, created, err := svc.GrantPackage(context.Background(), GrantPackageInput{
		OwnerID: 100, PurchaseID: purchase, SessionsPerPackage: 5, Quantity: 2,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 10, pkg.TotalCredits)
	assert.Equal(t, 10, pkg.Remaining())

	again, created, err := svc.GrantPackage(context.Background(), GrantPackageInput{
		OwnerID: 100, PurchaseID: purchase, SessionsPerPackage: 5, Quantity: 2,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, pkg.ID, again.ID)
	assert.Len(t, store.Snapshot().Packages, 1)

	_, _, err = svc.GrantPackage(context.Background(), GrantPackageInput{
		OwnerID: 200, PurchaseID: purchase, SessionsPerPackage: 5, Quantity: 2,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGrantPackage_Validation(t *testing.T) {
	svc := NewPackageService(memstore.New(), func() time.Time { return testT0 }, zap.NewNop())
	past := testT0.Add(-time.Hour)

	tests := []GrantPackageInput{
		{OwnerID: 0, SessionsPerPackage: 1, Quantity: 1},
		{OwnerID: 1, SessionsPerPackage: 0, Quantity: 1},
		{OwnerID: 1, SessionsPerPackage: 1, Quantity: 0},
		{OwnerID: 1, SessionsPerPackage: 1, Quantity: 1, ExpiresAt: &past},
	}
	for _, in := range tests {
		_, _, err := svc.GrantPackage(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestExpirePackages(t *testing.T) {
	now := testT0
	store := memstore.New()
	svc := NewPackageService(store, func() time.Time { return now }, zap.NewNop())

	soon := testT0.Add(time.Hour)
	expiring, _, err := svc.GrantPackage(context.Background(), GrantPackageInput{OwnerID: 100, SessionsPerPackage: 1, Quantity: 1, ExpiresAt: &soon})
	require.NoError(t, err)
	forever, _, err := svc.GrantPackage(context.Background(), GrantPackageInput{OwnerID: 100, SessionsPerPackage: 1, Quantity: 1})
	require.NoError(t, err)

	n, err := svc.ExpirePackages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	now = testT0.Add(2 * time.Hour)
	n, err = svc.ExpirePackages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	st := store.Snapshot()
	assert.False(t, st.Packages[expiring.ID].IsActive)
	assert.True(t, st.Packages[forever.ID].IsActive)
}

func TestPackageAccessAndLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := NewPackageService(f.store, func() time.Time { return testT0 }, zap.NewNop())
	ctx := context.Background()
	owner := model.Actor{UserID: 100, Role: model.RoleClient}
	stranger := model.Actor{UserID: 200, Role: model.RoleClient}

	pkg := f.pkg(t, 100, 3)
	unused := f.pkg(t, 100, 3)
	slot := f.slot(t, 3)
	_, err := f.book(100, pkg, slot)
	require.NoError(t, err)

	_, err = svc.GetPackage(ctx, stranger, pkg.ID)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	got, err := svc.GetPackage(ctx, owner, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SessionsUsed)

	list, err := svc.ListPackages(ctx, stranger, model.PackageFilter{OwnerID: 100})
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, svc.DeletePackage(ctx, pkg.ID), ErrConflict)
	assert.ErrorIs(t, svc.DeletePackage(ctx, 999), ErrPackageNotFound)
	require.NoError(t, svc.DeletePackage(ctx, unused.ID))

	require.NoError(t, svc.DeactivatePackage(ctx, pkg.ID))
	assert.ErrorIs(t, svc.DeactivatePackage(ctx, 999), ErrPackageNotFound)

	other := f.slot(t, 3)
	_, err = f.book(100, pkg, other)
	assert.ErrorIs(t, err, ErrPackageInactive)
}

func TestUserService_UpdateContacts(t *testing.T) {
	store := memstore.New()
	svc := NewUserService(store.Users(), zap.NewNop())
	tg := int64(555)

	user, err := svc.UpdateContacts(context.Background(), 100, ContactInput{TelegramID: &tg, Phone: " +15550001111 ", FirstName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", user.Phone)

	got, err := svc.GetContacts(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, got.TelegramID)
	assert.Equal(t, tg, *got.TelegramID)

	bad := int64(-1)
	_, err = svc.UpdateContacts(context.Background(), 100, ContactInput{TelegramID: &bad})
	assert.ErrorIs(t, err, ErrValidation)
}
