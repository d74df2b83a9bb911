package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, owner_id, user_package_id, schedule_slot_id, session_type, status, notes, cancelled_reason, reminder_sent, created_at, updated_at`

type BookingRepository struct {
	db base.Querier
}

func NewBookingRepository(db base.Querier) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.OwnerID,
		&booking.UserPackageID,
		&booking.ScheduleSlotID,
		&booking.SessionType,
		&booking.Status,
		&booking.Notes,
		&booking.CancelledReason,
		&booking.ReminderSent,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func collectBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}

// Create создаёт новое бронирование
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (owner_id, user_package_id, schedule_slot_id, session_type, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, reminder_sent, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		booking.OwnerID,
		booking.UserPackageID,
		booking.ScheduleSlotID,
		booking.SessionType,
		booking.Status,
		booking.Notes,
	).Scan(&booking.ID, &booking.ReminderSent, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// List получает бронирования по фильтру, новые первыми
func (r *BookingRepository) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.OwnerID != 0 {
		add("owner_id = $%d", filter.OwnerID)
	}
	if filter.SlotID != 0 {
		add("schedule_slot_id = $%d", filter.SlotID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return collectBookings(rows)
}

// TransitionStatus меняет статус только если текущий равен from.
// Это и есть защита от двойной компенсации: из двух параллельных отмен строку изменит одна.
func (r *BookingRepository) TransitionStatus(ctx context.Context, id int64, from, to model.BookingStatus, reason *string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3,
		    cancelled_reason = COALESCE($4, cancelled_reason),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query, id, from, to, reason)
	if err != nil {
		return false, fmt.Errorf("transition booking status: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// UpdateDetails обновляет заметки и причину отмены, не трогая статус
func (r *BookingRepository) UpdateDetails(ctx context.Context, id int64, details model.BookingDetails) (bool, error) {
	query := `
		UPDATE bookings
		SET notes = COALESCE($2, notes),
		    cancelled_reason = COALESCE($3, cancelled_reason),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, details.Notes, details.CancelledReason)
	if err != nil {
		return false, fmt.Errorf("update booking details: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// Delete удаляет бронирование и возвращает строку в том виде, в каком она была удалена.
// Статус удалённой строки решает, нужна ли компенсация, без отдельного чтения.
func (r *BookingRepository) Delete(ctx context.Context, id int64) (*model.Booking, error) {
	query := `DELETE FROM bookings WHERE id = $1 RETURNING ` + bookingColumns

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("delete booking: %w", err)
	}

	return booking, nil
}

// ListDueReminders получает подтверждённые бронирования, начинающиеся в [from, to),
// по которым ещё не отправлено напоминание
func (r *BookingRepository) ListDueReminders(ctx context.Context, from, to time.Time, limit int) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.owner_id, b.user_package_id, b.schedule_slot_id, b.session_type, b.status,
		       b.notes, b.cancelled_reason, b.reminder_sent, b.created_at, b.updated_at
		FROM bookings b
		JOIN schedule_slots s ON s.id = b.schedule_slot_id
		WHERE b.status = 'confirmed'
		  AND NOT b.reminder_sent
		  AND s.start_time >= $1
		  AND s.start_time < $2
		ORDER BY s.start_time
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}

	return collectBookings(rows)
}

// MarkReminderSent отмечает напоминание отправленным; false если его уже отметили
func (r *BookingRepository) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE bookings
		SET reminder_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT reminder_sent AND status = 'confirmed'
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
