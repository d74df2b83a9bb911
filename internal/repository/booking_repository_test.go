package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingRepository_TransitionStatusGuardsOnCurrentStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)
	reason := "sick"

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs(int64(5), model.BookingStatusConfirmed, model.BookingStatusCancelled, &reason).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs(int64(5), model.BookingStatusConfirmed, model.BookingStatusCancelled, &reason).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.TransitionStatus(context.Background(), 5, model.BookingStatusConfirmed, model.BookingStatusCancelled, &reason)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(context.Background(), 5, model.BookingStatusConfirmed, model.BookingStatusCancelled, &reason)
	require.NoError(t, err)
	assert.False(t, ok, "second cancel must not match")

	assert.NoError(t, mock.ExpectationsWereMet())
}

var bookingCols = []string{"id", "owner_id", "user_package_id", "schedule_slot_id", "session_type", "status", "notes", "cancelled_reason", "reminder_sent", "created_at", "updated_at"}

func TestBookingRepository_DeleteReturnsDeletedRow(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reason := "moved away"

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM bookings WHERE id = $1 RETURNING id")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(bookingCols).
			AddRow(int64(5), int64(100), int64(11), int64(7), "group", model.BookingStatusCancelled, "", &reason, false, created, created))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM bookings")).
		WithArgs(int64(6)).
		WillReturnError(pgx.ErrNoRows)

	deleted, err := repo.Delete(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, model.BookingStatusCancelled, deleted.Status)
	assert.Equal(t, int64(7), deleted.ScheduleSlotID)
	assert.Equal(t, int64(11), deleted.UserPackageID)
	require.NotNil(t, deleted.CancelledReason)
	assert.Equal(t, reason, *deleted.CancelledReason)

	deleted, err = repo.Delete(context.Background(), 6)
	require.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestBookingRepository_ListByOwnerAndStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC LIMIT $3")).
		WithArgs(int64(100), model.BookingStatusConfirmed, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	bookings, err := repo.List(context.Background(), model.BookingFilter{
		OwnerID: 100,
		Status:  model.BookingStatusConfirmed,
		Limit:   20,
	})
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_MarkReminderSentOnce(t *testing.T) {
	mock := newMock(t)
	repo := NewBookingRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("AND NOT reminder_sent")).
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.MarkReminderSent(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, ok)
}
