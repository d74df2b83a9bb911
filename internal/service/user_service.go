package service

import (
	"context"
	"strings"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"go.uber.org/zap"
)

// UserService хранит контакты владельцев для уведомлений
type UserService struct {
	users  repository.UserStore
	logger *zap.Logger
}

func NewUserService(users repository.UserStore, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

type ContactInput struct {
	TelegramID *int64
	Phone      string
	FirstName  string
}

// UpdateContacts создаёт или обновляет контакты пользователя
func (s *UserService) UpdateContacts(ctx context.Context, userID int64, in ContactInput) (*model.User, error) {
	if userID <= 0 {
		return nil, newError(KindValidation, "user id is required")
	}
	if in.TelegramID != nil && *in.TelegramID <= 0 {
		return nil, newError(KindValidation, "telegram id must be positive")
	}

	user := &model.User{
		ID:         userID,
		TelegramID: in.TelegramID,
		Phone:      strings.TrimSpace(in.Phone),
		FirstName:  strings.TrimSpace(in.FirstName),
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		s.logger.Error("Failed to save contacts", zap.Int64("user_id", userID), zap.Error(err))
		return nil, internal("upsert user", err)
	}

	s.logger.Info("Contacts updated",
		zap.Int64("user_id", userID),
		zap.Bool("has_telegram", user.TelegramID != nil),
		zap.Bool("has_phone", user.Phone != ""),
	)

	return user, nil
}

// GetContacts получает контакты пользователя
func (s *UserService) GetContacts(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, internal("get user", err)
	}
	if user == nil {
		return nil, newError(KindBookingNotFound, "contacts not found")
	}
	return user, nil
}
