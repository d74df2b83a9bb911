package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
)

const templateColumns = `id, name, session_type, default_capacity, duration_minutes, is_active, created_at`

type TemplateRepository struct {
	db base.Querier
}

func NewTemplateRepository(db base.Querier) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create создаёт новый шаблон расписания
func (r *TemplateRepository) Create(ctx context.Context, template *model.ScheduleTemplate) error {
	query := `
		INSERT INTO schedule_templates (name, session_type, default_capacity, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		template.Name,
		template.SessionType,
		template.DefaultCapacity,
		template.DurationMinutes,
		template.IsActive,
	).Scan(&template.ID, &template.CreatedAt)

	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	return nil
}

// GetByID получает шаблон по ID
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*model.ScheduleTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM schedule_templates WHERE id = $1`
	return r.get(ctx, query, id)
}

// LockByID получает шаблон и блокирует строку до конца транзакции.
// Так создание слотов одного шаблона выполняется последовательно и проверка пересечений не гонится.
func (r *TemplateRepository) LockByID(ctx context.Context, id int64) (*model.ScheduleTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM schedule_templates WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *TemplateRepository) get(ctx context.Context, query string, id int64) (*model.ScheduleTemplate, error) {
	var t model.ScheduleTemplate
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.SessionType,
		&t.DefaultCapacity,
		&t.DurationMinutes,
		&t.IsActive,
		&t.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get template by id: %w", err)
	}

	return &t, nil
}
