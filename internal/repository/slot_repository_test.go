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

var slotCols = []string{"id", "template_id", "start_time", "end_time", "capacity", "booked_count", "is_available", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestSlotRepository_ReserveCapacity(t *testing.T) {
	mock := newMock(t)
	repo := NewSlotRepository(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SET booked_count = booked_count + 1")).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND is_available AND booked_count < capacity")).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.ReserveCapacity(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveCapacity(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "full slot must not be incremented")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ReleaseCapacityFloorsAtZero(t *testing.T) {
	mock := newMock(t)
	repo := NewSlotRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("GREATEST(booked_count - 1, 0)")).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.ReleaseCapacity(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_GetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewSlotRepository(mock)

	mock.ExpectQuery("FROM schedule_slots WHERE id").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	slot, err := repo.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestSlotRepository_FindOverlapping(t *testing.T) {
	mock := newMock(t)
	repo := NewSlotRepository(mock)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	existingStart := start.Add(30 * time.Minute)

	rows := pgxmock.NewRows(slotCols).
		AddRow(int64(1), int64(5), existingStart, existingStart.Add(time.Hour), 3, 0, true, start)

	mock.ExpectQuery(regexp.QuoteMeta("AND start_time < $3")).
		WithArgs(int64(5), start, end, int64(0)).
		WillReturnRows(rows)

	slots, err := repo.FindOverlapping(context.Background(), 5, start, end, 0)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, int64(1), slots[0].ID)
	assert.Equal(t, existingStart, slots[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_ListBuildsFilter(t *testing.T) {
	mock := newMock(t)
	repo := NewSlotRepository(mock)

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE template_id = $1 AND start_time >= $2 AND start_time < $3 AND is_available AND booked_count < capacity ORDER BY start_time, id LIMIT $4")).
		WithArgs(int64(5), from, to, 10).
		WillReturnRows(pgxmock.NewRows(slotCols))

	slots, err := repo.List(context.Background(), model.SlotFilter{
		TemplateID:    5,
		From:          from,
		To:            to,
		OnlyAvailable: true,
		Limit:         10,
	})
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_UpdateRefusesCapacityBelowBooked(t *testing.T) {
	mock := newMock(t)
	repo := NewSlotRepository(mock)

	slot := &model.ScheduleSlot{
		ID:          9,
		StartTime:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		Capacity:    1,
		IsAvailable: true,
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND booked_count <= $4")).
		WithArgs(slot.ID, slot.StartTime, slot.EndTime, slot.Capacity, slot.IsAvailable).
		WillReturnError(pgx.ErrNoRows)

	ok, err := repo.Update(context.Background(), slot)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_DeleteIfUnbooked(t *testing.T) {
	mock := newMock(t)
	repo := NewSlotRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("status <> 'cancelled'")).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ok, err := repo.DeleteIfUnbooked(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ok)
}
