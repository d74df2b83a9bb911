package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorBody struct {
	Kind    service.Kind `json:"kind"`
	Message string       `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor переводит тип доменной ошибки в HTTP статус
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation,
		service.KindInvalidRange,
		service.KindSlotFull,
		service.KindSlotUnavailable,
		service.KindNoCredits,
		service.KindPackageInactive,
		service.KindOwnerMismatch,
		service.KindInvalidOTP:
		return http.StatusBadRequest
	case service.KindSlotNotFound,
		service.KindPackageNotFound,
		service.KindTemplateNotFound,
		service.KindBookingNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict, service.KindInvalidTransition:
		return http.StatusConflict
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает телом {"error": {"kind", "message"}}.
// Для внутренних ошибок клиент получает только общее сообщение.
func writeError(c echo.Context, logger *zap.Logger, err error, status int) error {
	var domain *service.Error
	if !errors.As(err, &domain) {
		domain = &service.Error{Kind: service.KindInternal, Message: "internal error", Err: err}
	}

	if status == 0 {
		status = statusFor(domain.Kind)
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.String("kind", string(domain.Kind)),
			zap.Error(err),
		)
	}

	return c.JSON(status, errorResponse{Error: errorBody{Kind: domain.Kind, Message: domain.Message}})
}

func validationError(format string, args ...any) error {
	return &service.Error{Kind: service.KindValidation, Message: fmt.Sprintf(format, args...)}
}

// describeValidation превращает ошибки validator в одно читаемое сообщение
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError("invalid request: %v", err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return validationError("%s", strings.Join(parts, "; "))
}
