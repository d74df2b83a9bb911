package service

import (
	"errors"
	"fmt"
)

// Kind - машиночитаемый тип ошибки, который видит клиент API
type Kind string

const (
	KindValidation        Kind = "ValidationFailed"
	KindInvalidRange      Kind = "InvalidRange"
	KindSlotNotFound      Kind = "SlotNotFound"
	KindPackageNotFound   Kind = "PackageNotFound"
	KindTemplateNotFound  Kind = "TemplateNotFound"
	KindBookingNotFound   Kind = "NotFound"
	KindSlotFull          Kind = "SlotFull"
	KindSlotUnavailable   Kind = "SlotUnavailable"
	KindNoCredits         Kind = "NoCreditsRemaining"
	KindPackageInactive   Kind = "PackageInactive"
	KindOwnerMismatch     Kind = "OwnerMismatch"
	KindInvalidOTP        Kind = "InvalidOtp"
	KindConflict          Kind = "Conflict"
	KindInvalidTransition Kind = "InvalidTransition"
	KindForbidden         Kind = "Forbidden"
	KindUnavailable       Kind = "Unavailable"
	KindInternal          Kind = "InternalError"
)

// Error - доменная ошибка с типом и сообщением для пользователя.
// Err хранит исходную причину для логов и не показывается клиенту.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по типу, поэтому errors.Is(err, ErrSlotFull) работает для любого сообщения
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Эталонные ошибки для errors.Is
var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidRange      = &Error{Kind: KindInvalidRange, Message: "start time must be before end time"}
	ErrSlotNotFound      = &Error{Kind: KindSlotNotFound, Message: "slot not found"}
	ErrPackageNotFound   = &Error{Kind: KindPackageNotFound, Message: "package not found"}
	ErrTemplateNotFound  = &Error{Kind: KindTemplateNotFound, Message: "template not found"}
	ErrBookingNotFound   = &Error{Kind: KindBookingNotFound, Message: "booking not found"}
	ErrSlotFull          = &Error{Kind: KindSlotFull, Message: "slot has no remaining capacity"}
	ErrSlotUnavailable   = &Error{Kind: KindSlotUnavailable, Message: "slot is not available"}
	ErrNoCredits         = &Error{Kind: KindNoCredits, Message: "package has no remaining credits"}
	ErrPackageInactive   = &Error{Kind: KindPackageInactive, Message: "package is not active"}
	ErrOwnerMismatch     = &Error{Kind: KindOwnerMismatch, Message: "package belongs to another user"}
	ErrInvalidOTP        = &Error{Kind: KindInvalidOTP, Message: "one-time code is invalid or expired"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflicting state"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "status transition is not allowed"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrUnavailable       = &Error{Kind: KindUnavailable, Message: "dependency unavailable"}
	ErrInternal          = &Error{Kind: KindInternal, Message: "internal error"}
)

// KindOf возвращает тип доменной ошибки или KindInternal для всех прочих
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// internal оборачивает инфраструктурную ошибку; клиент увидит только общее сообщение
func internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: fmt.Errorf("%s: %w", op, err)}
}

// asDomain возвращает доменную ошибку как есть, остальные превращает в InternalError
func asDomain(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internal(op, err)
}
