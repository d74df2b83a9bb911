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

const slotColumns = `id, template_id, start_time, end_time, capacity, booked_count, is_available, created_at`

type SlotRepository struct {
	db base.Querier
}

func NewSlotRepository(db base.Querier) *SlotRepository {
	return &SlotRepository{db: db}
}

func scanSlot(row pgx.Row) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	err := row.Scan(
		&slot.ID,
		&slot.TemplateID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Capacity,
		&slot.BookedCount,
		&slot.IsAvailable,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.ScheduleSlot, error) {
	defer rows.Close()

	var slots []*model.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// Create создаёт новый слот. booked_count всегда начинается с нуля.
func (r *SlotRepository) Create(ctx context.Context, slot *model.ScheduleSlot) error {
	query := `
		INSERT INTO schedule_slots (template_id, start_time, end_time, capacity, booked_count, is_available)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING id, booked_count, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		slot.TemplateID,
		slot.StartTime,
		slot.EndTime,
		slot.Capacity,
		slot.IsAvailable,
	).Scan(&slot.ID, &slot.BookedCount, &slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`

	slot, err := scanSlot(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// List получает слоты по фильтру, отсортированные по времени начала
func (r *SlotRepository) List(ctx context.Context, filter model.SlotFilter) ([]*model.ScheduleSlot, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.TemplateID != 0 {
		add("template_id = $%d", filter.TemplateID)
	}
	if !filter.From.IsZero() {
		add("start_time >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("start_time < $%d", filter.To)
	}
	if filter.OnlyAvailable {
		conds = append(conds, "is_available AND booked_count < capacity")
	}

	query := `SELECT ` + slotColumns + ` FROM schedule_slots`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY start_time, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	return collectSlots(rows)
}

// FindOverlapping ищет слоты шаблона, пересекающиеся с [start, end).
// excludeSlotID исключает сам редактируемый слот (0 - ничего не исключать).
func (r *SlotRepository) FindOverlapping(ctx context.Context, templateID int64, start, end time.Time, excludeSlotID int64) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE template_id = $1
		  AND start_time < $3
		  AND end_time > $2
		  AND id <> $4
		ORDER BY start_time
	`

	rows, err := r.db.Query(ctx, query, templateID, start, end, excludeSlotID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping slots: %w", err)
	}

	return collectSlots(rows)
}

// Update обновляет время, вместимость и доступность слота.
// Вместимость не может стать меньше уже занятых мест: тогда вернётся false.
func (r *SlotRepository) Update(ctx context.Context, slot *model.ScheduleSlot) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET start_time = $2, end_time = $3, capacity = $4, is_available = $5
		WHERE id = $1 AND booked_count <= $4
		RETURNING booked_count
	`

	err := r.db.QueryRow(
		ctx, query,
		slot.ID,
		slot.StartTime,
		slot.EndTime,
		slot.Capacity,
		slot.IsAvailable,
	).Scan(&slot.BookedCount)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("update slot: %w", err)
	}

	return true, nil
}

// ReserveCapacity занимает одно место.
// Проверка и увеличение - один условный UPDATE, без отдельного чтения счётчика.
func (r *SlotRepository) ReserveCapacity(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET booked_count = booked_count + 1
		WHERE id = $1 AND is_available AND booked_count < capacity
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("reserve capacity: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// ReleaseCapacity освобождает одно место, не опускаясь ниже нуля.
// false означает что слота больше нет.
func (r *SlotRepository) ReleaseCapacity(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET booked_count = GREATEST(booked_count - 1, 0)
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("release capacity: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// DeleteIfUnbooked удаляет слот, если на нём нет неотменённых бронирований
func (r *SlotRepository) DeleteIfUnbooked(ctx context.Context, id int64) (bool, error) {
	query := `
		DELETE FROM schedule_slots
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE schedule_slot_id = $1 AND status <> 'cancelled'
		  )
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
