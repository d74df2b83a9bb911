package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
)

type UserRepository struct {
	db base.Querier
}

func NewUserRepository(db base.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID получает контакты пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, telegram_id, phone, first_name, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Phone,
		&user.FirstName,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Контакты ещё не заданы
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

// Upsert создаёт или обновляет контакты пользователя.
// ID приходит из внешней аутентификации, поэтому задаётся явно.
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, telegram_id, phone, first_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET telegram_id = EXCLUDED.telegram_id,
		    phone = EXCLUDED.phone,
		    first_name = EXCLUDED.first_name
		RETURNING created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		user.ID,
		user.TelegramID,
		user.Phone,
		user.FirstName,
	).Scan(&user.CreatedAt)

	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}
