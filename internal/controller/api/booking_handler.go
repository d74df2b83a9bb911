package api

import (
	"net/http"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/labstack/echo/v4"
)

type createBookingRequest struct {
	OwnerID        int64  `json:"ownerId" validate:"omitempty,gt=0"` // только для администратора
	UserPackageID  int64  `json:"userPackageId" validate:"required,gt=0"`
	ScheduleSlotID int64  `json:"scheduleSlotId" validate:"required,gt=0"`
	SessionType    string `json:"sessionType" validate:"required,max=64"`
	Notes          string `json:"notes" validate:"max=2000"`
	PhoneNumber    string `json:"phoneNumber" validate:"omitempty,e164"`
	OTPCode        string `json:"otpCode" validate:"omitempty,numeric,min=4,max=8"`
}

type updateBookingRequest struct {
	ID              int64   `json:"id" validate:"required,gt=0"`
	Status          *string `json:"status" validate:"omitempty,bookingstatus"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
	CancelledReason *string `json:"cancelledReason" validate:"omitempty,max=500"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CreateBooking - POST /v1/bookings
func (h *handler) CreateBooking(c echo.Context) error {
	actor := mustActor(c)

	var req createBookingRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	ownerID := actor.UserID
	if req.OwnerID != 0 && req.OwnerID != actor.UserID {
		if !actor.IsAdmin() {
			return h.fail(c, service.ErrForbidden)
		}
		ownerID = req.OwnerID
	}

	booking, err := h.svc.Bookings.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		OwnerID:        ownerID,
		UserPackageID:  req.UserPackageID,
		ScheduleSlotID: req.ScheduleSlotID,
		SessionType:    req.SessionType,
		Notes:          req.Notes,
		PhoneNumber:    req.PhoneNumber,
		OTPCode:        req.OTPCode,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusCreated, booking)
}

// ListBookings - GET /v1/bookings?status=&slotId=&ownerId=&limit=
func (h *handler) ListBookings(c echo.Context) error {
	var (
		filter model.BookingFilter
		status string
	)
	err := echo.QueryParamsBinder(c).
		Int64("ownerId", &filter.OwnerID).
		Int64("slotId", &filter.SlotID).
		String("status", &status).
		Int("limit", &filter.Limit).
		BindError()
	if err != nil {
		return h.fail(c, validationError("invalid query parameters"))
	}
	filter.Status = model.BookingStatus(status)

	bookings, err := h.svc.Bookings.ListBookings(c.Request().Context(), mustActor(c), filter)
	if err != nil {
		return h.fail(c, err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return c.JSON(http.StatusOK, bookings)
}

// GetBooking - GET /v1/bookings/:id
func (h *handler) GetBooking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	booking, err := h.svc.Bookings.GetBooking(c.Request().Context(), mustActor(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

// UpdateBooking - PUT /v1/bookings
func (h *handler) UpdateBooking(c echo.Context) error {
	var req updateBookingRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	in := service.UpdateBookingInput{
		ID:              req.ID,
		Notes:           req.Notes,
		CancelledReason: req.CancelledReason,
	}
	if req.Status != nil {
		status := model.BookingStatus(*req.Status)
		in.Status = &status
	}

	booking, err := h.svc.Bookings.UpdateBooking(c.Request().Context(), mustActor(c), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

// CancelBooking - POST /v1/bookings/:id/cancel
func (h *handler) CancelBooking(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req cancelBookingRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	booking, err := h.svc.Bookings.CancelBooking(c.Request().Context(), mustActor(c), id, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

// DeleteBooking - DELETE /v1/bookings?id=
// Конфликт при компенсации здесь отдаётся как 400.
func (h *handler) DeleteBooking(c echo.Context) error {
	var id int64
	if err := echo.QueryParamsBinder(c).MustInt64("id", &id).BindError(); err != nil || id <= 0 {
		return h.fail(c, validationError("query parameter id is required"))
	}

	err := h.svc.Bookings.DeleteBooking(c.Request().Context(), mustActor(c), id)
	if err != nil {
		status := 0
		if service.KindOf(err) == service.KindConflict {
			status = http.StatusBadRequest
		}
		return writeError(c, h.logger, err, status)
	}
	return c.JSON(http.StatusOK, echo.Map{})
}
