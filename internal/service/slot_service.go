package service

import (
	"context"
	"strings"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"go.uber.org/zap"
)

type SlotService struct {
	store   repository.Store
	overlap OverlapValidator
	now     Clock
	logger  *zap.Logger
}

func NewSlotService(store repository.Store, clock Clock, logger *zap.Logger) *SlotService {
	if clock == nil {
		clock = time.Now
	}
	return &SlotService{
		store:  store,
		now:    clock,
		logger: logger,
	}
}

type CreateTemplateInput struct {
	Name            string
	SessionType     string
	DefaultCapacity int
	DurationMinutes int
}

type CreateSlotInput struct {
	TemplateID int64
	StartTime  time.Time
	EndTime    time.Time // нулевое - начало плюс длительность шаблона
	Capacity   int       // 0 - взять вместимость по умолчанию из шаблона
}

// UpdateSlotInput - nil означает "не менять"
type UpdateSlotInput struct {
	StartTime   *time.Time
	EndTime     *time.Time
	Capacity    *int
	IsAvailable *bool
}

// CreateTemplate создаёт шаблон занятий
func (s *SlotService) CreateTemplate(ctx context.Context, in CreateTemplateInput) (*model.ScheduleTemplate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newError(KindValidation, "template name is required")
	}
	if strings.TrimSpace(in.SessionType) == "" {
		return nil, newError(KindValidation, "session type is required")
	}
	if in.DefaultCapacity < 1 {
		return nil, newError(KindValidation, "default capacity must be at least 1")
	}
	if in.DurationMinutes < 1 {
		return nil, newError(KindValidation, "duration must be at least 1 minute")
	}

	template := &model.ScheduleTemplate{
		Name:            name,
		SessionType:     strings.TrimSpace(in.SessionType),
		DefaultCapacity: in.DefaultCapacity,
		DurationMinutes: in.DurationMinutes,
		IsActive:        true,
	}

	if err := s.store.Templates().Create(ctx, template); err != nil {
		return nil, internal("create template", err)
	}

	s.logger.Info("Template created",
		zap.Int64("template_id", template.ID),
		zap.String("session_type", template.SessionType),
	)

	return template, nil
}

// CreateSlot создаёт слот в активном шаблоне, проверяя пересечения под блокировкой шаблона
func (s *SlotService) CreateSlot(ctx context.Context, in CreateSlotInput) (*model.ScheduleSlot, error) {
	if in.StartTime.IsZero() {
		return nil, newError(KindValidation, "start time is required")
	}
	if !in.EndTime.IsZero() && !in.StartTime.Before(in.EndTime) {
		return nil, ErrInvalidRange
	}
	if in.Capacity < 0 {
		return nil, newError(KindValidation, "capacity must be at least 1")
	}

	var slot *model.ScheduleSlot
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		template, err := tx.Templates().LockByID(ctx, in.TemplateID)
		if err != nil {
			return err
		}
		if template == nil {
			return ErrTemplateNotFound
		}
		if !template.IsActive {
			return newError(KindConflict, "template %d is inactive", template.ID)
		}

		end := in.EndTime
		if end.IsZero() {
			end = in.StartTime.Add(time.Duration(template.DurationMinutes) * time.Minute)
		}

		capacity := in.Capacity
		if capacity == 0 {
			capacity = template.DefaultCapacity
		}
		if capacity < 1 {
			return newError(KindValidation, "capacity must be at least 1")
		}

		if err := s.overlap.Check(ctx, tx.Slots(), template.ID, in.StartTime, end, 0); err != nil {
			return err
		}

		slot = &model.ScheduleSlot{
			TemplateID:  template.ID,
			StartTime:   in.StartTime,
			EndTime:     end,
			Capacity:    capacity,
			IsAvailable: true,
		}
		return tx.Slots().Create(ctx, slot)
	})
	if err != nil {
		return nil, s.fail("create slot", err)
	}

	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("template_id", slot.TemplateID),
		zap.Time("start_time", slot.StartTime),
		zap.Int("capacity", slot.Capacity),
	)

	return slot, nil
}

// UpdateSlot меняет время, вместимость или доступность слота.
// Вместимость не может опуститься ниже числа занятых мест.
func (s *SlotService) UpdateSlot(ctx context.Context, id int64, in UpdateSlotInput) (*model.ScheduleSlot, error) {
	if in.Capacity != nil && *in.Capacity < 1 {
		return nil, newError(KindValidation, "capacity must be at least 1")
	}

	var slot *model.ScheduleSlot
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		current, err := tx.Slots().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrSlotNotFound
		}

		updated := *current
		if in.StartTime != nil {
			updated.StartTime = *in.StartTime
		}
		if in.EndTime != nil {
			updated.EndTime = *in.EndTime
		}
		if in.Capacity != nil {
			updated.Capacity = *in.Capacity
		}
		if in.IsAvailable != nil {
			updated.IsAvailable = *in.IsAvailable
		}

		if !updated.StartTime.Before(updated.EndTime) {
			return ErrInvalidRange
		}

		if in.StartTime != nil || in.EndTime != nil {
			if _, err := tx.Templates().LockByID(ctx, updated.TemplateID); err != nil {
				return err
			}
			if err := s.overlap.Check(ctx, tx.Slots(), updated.TemplateID, updated.StartTime, updated.EndTime, updated.ID); err != nil {
				return err
			}
		}

		ok, err := tx.Slots().Update(ctx, &updated)
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindConflict, "capacity %d is below the number of booked places", updated.Capacity)
		}

		slot = &updated
		return nil
	})
	if err != nil {
		return nil, s.fail("update slot", err)
	}

	s.logger.Info("Slot updated",
		zap.Int64("slot_id", slot.ID),
		zap.Int("capacity", slot.Capacity),
		zap.Bool("is_available", slot.IsAvailable),
	)

	return slot, nil
}

// DeleteSlot удаляет слот, если на него нет действующих бронирований
func (s *SlotService) DeleteSlot(ctx context.Context, id int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		deleted, err := tx.Slots().DeleteIfUnbooked(ctx, id)
		if err != nil {
			return err
		}
		if deleted {
			return nil
		}

		slot, err := tx.Slots().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if slot == nil {
			return ErrSlotNotFound
		}
		return newError(KindConflict, "slot %d has active bookings", id)
	})
	if err != nil {
		return s.fail("delete slot", err)
	}

	s.logger.Info("Slot deleted", zap.Int64("slot_id", id))
	return nil
}

// GetSlot получает слот по ID
func (s *SlotService) GetSlot(ctx context.Context, id int64) (*model.ScheduleSlot, error) {
	slot, err := s.store.Slots().GetByID(ctx, id)
	if err != nil {
		return nil, internal("get slot", err)
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}

// ListSlots получает слоты по фильтру
func (s *SlotService) ListSlots(ctx context.Context, filter model.SlotFilter) ([]*model.ScheduleSlot, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, ErrInvalidRange
	}

	slots, err := s.store.Slots().List(ctx, filter)
	if err != nil {
		return nil, internal("list slots", err)
	}
	return slots, nil
}

func (s *SlotService) fail(op string, err error) error {
	err = asDomain(op, err)
	if KindOf(err) == KindInternal {
		s.logger.Error("Slot operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

// checkSlot проверяет что на слот можно записаться в момент now
func checkSlot(slot *model.ScheduleSlot, now time.Time) error {
	switch {
	case slot == nil:
		return ErrSlotNotFound
	case !slot.IsAvailable:
		return ErrSlotUnavailable
	case slot.HasStarted(now):
		return newError(KindSlotUnavailable, "slot %d has already started", slot.ID)
	case slot.Remaining() <= 0:
		return ErrSlotFull
	}
	return nil
}

// reserveCapacity занимает место одним условным UPDATE
func reserveCapacity(ctx context.Context, slots repository.SlotStore, slotID int64) error {
	ok, err := slots.ReserveCapacity(ctx, slotID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotFull
	}
	return nil
}

// releaseCapacity освобождает место; пропавший слот - конфликт, транзакция откатывается
func releaseCapacity(ctx context.Context, slots repository.SlotStore, slotID int64) error {
	ok, err := slots.ReleaseCapacity(ctx, slotID)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindConflict, "slot %d no longer exists", slotID)
	}
	return nil
}
