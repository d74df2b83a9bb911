package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var bookingTracer = otel.Tracer("session_booking.internal.service.booking")

const (
	defaultOTPTimeout    = 2 * time.Second
	defaultNotifyTimeout = 5 * time.Second
)

// BookingService координирует слот, пакет и бронирование в одной транзакции
type BookingService struct {
	store         repository.Store
	verifier      OTPVerifier
	notifier      Notifier
	now           Clock
	otpTimeout    time.Duration
	notifyTimeout time.Duration
	logger        *zap.Logger
}

type BookingOptions struct {
	OTPTimeout    time.Duration
	NotifyTimeout time.Duration
	Clock         Clock
}

// NewBookingService создаёт координатор. verifier и notifier могут быть nil:
// без verifier запрос с кодом отклоняется как Unavailable, без notifier уведомления не шлются.
func NewBookingService(
	store repository.Store,
	verifier OTPVerifier,
	notifier Notifier,
	logger *zap.Logger,
	opts BookingOptions,
) *BookingService {
	if opts.OTPTimeout <= 0 {
		opts.OTPTimeout = defaultOTPTimeout
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &BookingService{
		store:         store,
		verifier:      verifier,
		notifier:      notifier,
		now:           opts.Clock,
		otpTimeout:    opts.OTPTimeout,
		notifyTimeout: opts.NotifyTimeout,
		logger:        logger,
	}
}

type CreateBookingInput struct {
	OwnerID        int64
	UserPackageID  int64
	ScheduleSlotID int64
	SessionType    string
	Notes          string
	PhoneNumber    string // обязателен вместе с OTPCode
	OTPCode        string
}

func (in CreateBookingInput) validate() error {
	switch {
	case in.OwnerID <= 0:
		return newError(KindValidation, "owner id is required")
	case in.UserPackageID <= 0:
		return newError(KindValidation, "user package id is required")
	case in.ScheduleSlotID <= 0:
		return newError(KindValidation, "schedule slot id is required")
	case strings.TrimSpace(in.SessionType) == "":
		return newError(KindValidation, "session type is required")
	case in.OTPCode != "" && strings.TrimSpace(in.PhoneNumber) == "":
		return newError(KindValidation, "phone number is required with a one-time code")
	case in.OTPCode == "" && in.PhoneNumber != "":
		return newError(KindValidation, "one-time code is required with a phone number")
	}
	return nil
}

// UpdateBookingInput - nil означает "не менять"
type UpdateBookingInput struct {
	ID              int64
	Status          *model.BookingStatus
	Notes           *string
	CancelledReason *string
}

// CreateBooking записывает владельца на слот за один кредит пакета.
// Место, кредит и бронирование фиксируются вместе или не фиксируются вовсе.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (_ *model.Booking, err error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.Int64("booking.owner_id", in.OwnerID),
		attribute.Int64("booking.slot_id", in.ScheduleSlotID),
		attribute.Int64("booking.package_id", in.UserPackageID),
	))
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	if in.OTPCode != "" {
		if err := s.verifyOTP(ctx, in.PhoneNumber, in.OTPCode); err != nil {
			return nil, s.fail("verify otp", err)
		}
	}

	now := s.now()

	pkg, err := s.store.Packages().GetByID(ctx, in.UserPackageID)
	if err != nil {
		return nil, s.fail("get package", err)
	}
	if err := checkPackage(pkg, in.OwnerID, now); err != nil {
		return nil, err
	}

	slot, err := s.store.Slots().GetByID(ctx, in.ScheduleSlotID)
	if err != nil {
		return nil, s.fail("get slot", err)
	}
	if err := checkSlot(slot, now); err != nil {
		return nil, err
	}

	var booking *model.Booking
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		// Порядок блокировок всегда слот, затем пакет
		if err := reserveCapacity(ctx, tx.Slots(), slot.ID); err != nil {
			return err
		}
		if err := consumeCredit(ctx, tx.Packages(), pkg.ID, in.OwnerID, now); err != nil {
			return err
		}

		booking = &model.Booking{
			OwnerID:        in.OwnerID,
			UserPackageID:  pkg.ID,
			ScheduleSlotID: slot.ID,
			SessionType:    strings.TrimSpace(in.SessionType),
			Status:         model.BookingStatusConfirmed,
			Notes:          in.Notes,
		}
		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return err
		}

		return attach(ctx, tx, booking)
	})
	if err != nil {
		return nil, s.fail("create booking", err)
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("owner_id", booking.OwnerID),
		zap.Int64("slot_id", booking.ScheduleSlotID),
		zap.Int64("package_id", booking.UserPackageID),
	)

	s.notify(ctx, model.NoticeBookingCreated, booking)
	return booking, nil
}

// CancelBooking отменяет бронирование и возвращает место и кредит.
// Повторная отмена ничего не возвращает и не считается ошибкой.
func (s *BookingService) CancelBooking(ctx context.Context, actor model.Actor, id int64, reason string) (_ *model.Booking, err error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.Int64("booking.id", id),
	))
	defer func() { endSpan(span, err) }()

	var reasonPtr *string
	if r := strings.TrimSpace(reason); r != "" {
		reasonPtr = &r
	}

	var (
		booking   *model.Booking
		cancelled bool
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		current, err := s.loadOwned(ctx, tx, actor, id)
		if err != nil {
			return err
		}

		cancelled, err = cancelInTx(ctx, tx, current, reasonPtr)
		if err != nil {
			return err
		}

		booking, err = reload(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, s.fail("cancel booking", err)
	}

	if cancelled {
		s.logger.Info("Booking cancelled",
			zap.Int64("booking_id", id),
			zap.Int64("actor_id", actor.UserID),
		)
		s.notify(ctx, model.NoticeBookingCancelled, booking)
	}

	return booking, nil
}

// UpdateBooking меняет статус и/или заметки.
// Клиент может только отменить бронирование или поправить заметки.
func (s *BookingService) UpdateBooking(ctx context.Context, actor model.Actor, in UpdateBookingInput) (_ *model.Booking, err error) {
	ctx, span := bookingTracer.Start(ctx, "booking.update", trace.WithAttributes(
		attribute.Int64("booking.id", in.ID),
	))
	defer func() { endSpan(span, err) }()

	if in.Status != nil && !in.Status.Valid() {
		return nil, newError(KindValidation, "unknown booking status %q", *in.Status)
	}

	var (
		booking   *model.Booking
		cancelled bool
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		current, err := s.loadOwned(ctx, tx, actor, in.ID)
		if err != nil {
			return err
		}

		details := model.BookingDetails{Notes: in.Notes, CancelledReason: in.CancelledReason}

		if in.Status != nil && *in.Status != current.Status {
			to := *in.Status
			if !actor.IsAdmin() && to != model.BookingStatusCancelled {
				return newError(KindForbidden, "only administrators may set status %s", to)
			}
			if !model.CanTransition(current.Status, to) {
				return newError(KindInvalidTransition, "cannot change status from %s to %s", current.Status, to)
			}

			if to.Compensates() {
				cancelled, err = cancelInTx(ctx, tx, current, in.CancelledReason)
				details.CancelledReason = nil
			} else {
				err = transitionInTx(ctx, tx, current.ID, to)
			}
			if err != nil {
				return err
			}
		}

		if !details.Empty() {
			if _, err := tx.Bookings().UpdateDetails(ctx, current.ID, details); err != nil {
				return err
			}
		}

		booking, err = reload(ctx, tx, in.ID)
		return err
	})
	if err != nil {
		return nil, s.fail("update booking", err)
	}

	s.logger.Info("Booking updated",
		zap.Int64("booking_id", booking.ID),
		zap.String("status", string(booking.Status)),
		zap.Int64("actor_id", actor.UserID),
	)

	if cancelled {
		s.notify(ctx, model.NoticeBookingCancelled, booking)
	}

	return booking, nil
}

// DeleteBooking удаляет бронирование (только администратор).
// Место и кредит возвращаются, если бронирование не было отменено до удаления.
func (s *BookingService) DeleteBooking(ctx context.Context, actor model.Actor, id int64) (err error) {
	ctx, span := bookingTracer.Start(ctx, "booking.delete", trace.WithAttributes(
		attribute.Int64("booking.id", id),
	))
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() {
		return newError(KindForbidden, "only administrators may delete bookings")
	}

	var deleted *model.Booking
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Scope) error {
		var err error
		deleted, err = tx.Bookings().Delete(ctx, id)
		if err != nil {
			return err
		}
		if deleted == nil {
			return ErrBookingNotFound
		}
		if !deleted.Status.Compensates() {
			return compensate(ctx, tx, deleted)
		}
		return nil
	})
	if err != nil {
		return s.fail("delete booking", err)
	}

	s.logger.Info("Booking deleted",
		zap.Int64("booking_id", id),
		zap.String("status", string(deleted.Status)),
		zap.Bool("compensated", !deleted.Status.Compensates()),
	)
	return nil
}

// GetBooking получает бронирование со слотом и пакетом
func (s *BookingService) GetBooking(ctx context.Context, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := s.loadOwned(ctx, s.store, actor, id)
	if err != nil {
		return nil, s.fail("get booking", err)
	}
	if err := attach(ctx, s.store, booking); err != nil {
		return nil, s.fail("get booking", err)
	}
	return booking, nil
}

// ListBookings получает бронирования; клиент видит только свои
func (s *BookingService) ListBookings(ctx context.Context, actor model.Actor, filter model.BookingFilter) ([]*model.Booking, error) {
	if !actor.IsAdmin() {
		filter.OwnerID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, newError(KindValidation, "unknown booking status %q", filter.Status)
	}

	bookings, err := s.store.Bookings().List(ctx, filter)
	if err != nil {
		return nil, s.fail("list bookings", err)
	}
	return bookings, nil
}

func (s *BookingService) loadOwned(ctx context.Context, scope repository.Scope, actor model.Actor, id int64) (*model.Booking, error) {
	booking, err := scope.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if !actor.IsAdmin() && booking.OwnerID != actor.UserID {
		return nil, ErrForbidden
	}
	return booking, nil
}

// verifyOTP проверяет код с таймаутом; любая недоступность хранилища - отказ
func (s *BookingService) verifyOTP(ctx context.Context, phone, code string) error {
	if s.verifier == nil {
		return newError(KindUnavailable, "one-time code verification is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.otpTimeout)
	defer cancel()

	result, err := s.verifier.Verify(ctx, strings.TrimSpace(phone), code)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindUnavailable, Message: "one-time code verification timed out", Err: err}
		}
		return &Error{Kind: KindUnavailable, Message: "one-time code verification failed", Err: err}
	}

	if !result.Valid(s.now()) {
		return ErrInvalidOTP
	}
	return nil
}

// notify отправляет уведомление после коммита. Ошибки только логируются.
func (s *BookingService) notify(ctx context.Context, event model.NoticeEvent, booking *model.Booking) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	owner, err := s.store.Users().GetByID(ctx, booking.OwnerID)
	if err != nil {
		s.logger.Warn("Failed to load booking owner contacts",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
	}

	notice := model.BookingNotice{Event: event, Booking: booking, Owner: owner}
	if err := s.notifier.Notify(ctx, notice); err != nil {
		s.logger.Warn("Failed to dispatch booking notice",
			zap.String("event", string(event)),
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
	}
}

func (s *BookingService) fail(op string, err error) error {
	err = asDomain(op, err)
	if kind := KindOf(err); kind == KindInternal || kind == KindUnavailable {
		s.logger.Error("Booking operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

// cancelInTx переводит confirmed -> cancelled и компенсирует счётчики.
// Возвращает false без ошибки, если бронирование уже было отменено.
func cancelInTx(ctx context.Context, tx repository.Scope, booking *model.Booking, reason *string) (bool, error) {
	ok, err := tx.Bookings().TransitionStatus(ctx, booking.ID, model.BookingStatusConfirmed, model.BookingStatusCancelled, reason)
	if err != nil {
		return false, err
	}

	if !ok {
		current, err := tx.Bookings().GetByID(ctx, booking.ID)
		if err != nil {
			return false, err
		}
		if current == nil {
			return false, ErrBookingNotFound
		}
		if current.Status == model.BookingStatusCancelled {
			return false, nil
		}
		return false, newError(KindInvalidTransition, "booking is %s and cannot be cancelled", current.Status)
	}

	if err := compensate(ctx, tx, booking); err != nil {
		return false, err
	}
	return true, nil
}

// transitionInTx переводит confirmed в completed или no-show без изменения счётчиков
func transitionInTx(ctx context.Context, tx repository.Scope, id int64, to model.BookingStatus) error {
	ok, err := tx.Bookings().TransitionStatus(ctx, id, model.BookingStatusConfirmed, to, nil)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	current, err := tx.Bookings().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrBookingNotFound
	}
	if current.Status == to {
		return nil
	}
	return newError(KindInvalidTransition, "cannot change status from %s to %s", current.Status, to)
}

// compensate возвращает место в слоте и кредит в пакет
func compensate(ctx context.Context, tx repository.Scope, booking *model.Booking) error {
	if err := releaseCapacity(ctx, tx.Slots(), booking.ScheduleSlotID); err != nil {
		return err
	}
	return restoreCredit(ctx, tx.Packages(), booking.UserPackageID)
}

func reload(ctx context.Context, scope repository.Scope, id int64) (*model.Booking, error) {
	booking, err := scope.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, attach(ctx, scope, booking)
}

// attach подгружает слот и пакет бронирования для ответа
func attach(ctx context.Context, scope repository.Scope, booking *model.Booking) error {
	slot, err := scope.Slots().GetByID(ctx, booking.ScheduleSlotID)
	if err != nil {
		return err
	}
	pkg, err := scope.Packages().GetByID(ctx, booking.UserPackageID)
	if err != nil {
		return err
	}
	booking.Slot = slot
	booking.Package = pkg
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	span.End()
}
