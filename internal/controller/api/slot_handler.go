package api

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/labstack/echo/v4"
)

type createTemplateRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	SessionType     string `json:"sessionType" validate:"required,max=64"`
	DefaultCapacity int    `json:"defaultCapacity" validate:"required,gt=0"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,gt=0"`
}

type createSlotRequest struct {
	TemplateID int64     `json:"templateId" validate:"required,gt=0"`
	StartTime  time.Time `json:"startTime" validate:"required"`
	EndTime    time.Time `json:"endTime"` // пусто - по длительности шаблона
	Capacity   int       `json:"capacity" validate:"omitempty,gt=0"`
}

type updateSlotRequest struct {
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Capacity    *int       `json:"capacity" validate:"omitempty,gt=0"`
	IsAvailable *bool      `json:"isAvailable"`
}

// CreateTemplate - POST /v1/admin/templates
func (h *handler) CreateTemplate(c echo.Context) error {
	var req createTemplateRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	template, err := h.svc.Slots.CreateTemplate(c.Request().Context(), service.CreateTemplateInput{
		Name:            req.Name,
		SessionType:     req.SessionType,
		DefaultCapacity: req.DefaultCapacity,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, template)
}

// CreateSlot - POST /v1/admin/slots
func (h *handler) CreateSlot(c echo.Context) error {
	var req createSlotRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	slot, err := h.svc.Slots.CreateSlot(c.Request().Context(), service.CreateSlotInput{
		TemplateID: req.TemplateID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Capacity:   req.Capacity,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

// UpdateSlot - PUT /v1/admin/slots/:id
func (h *handler) UpdateSlot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req updateSlotRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	slot, err := h.svc.Slots.UpdateSlot(c.Request().Context(), id, service.UpdateSlotInput{
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// DeleteSlot - DELETE /v1/admin/slots/:id
func (h *handler) DeleteSlot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.svc.Slots.DeleteSlot(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

// GetSlot - GET /v1/slots/:id
func (h *handler) GetSlot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	slot, err := h.svc.Slots.GetSlot(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// ListSlots - GET /v1/slots?templateId=&from=&to=&onlyAvailable=&limit=
func (h *handler) ListSlots(c echo.Context) error {
	var filter model.SlotFilter
	err := echo.QueryParamsBinder(c).
		Int64("templateId", &filter.TemplateID).
		Time("from", &filter.From, time.RFC3339).
		Time("to", &filter.To, time.RFC3339).
		Bool("onlyAvailable", &filter.OnlyAvailable).
		Int("limit", &filter.Limit).
		BindError()
	if err != nil {
		return h.fail(c, validationError("invalid query parameters"))
	}

	slots, err := h.svc.Slots.ListSlots(c.Request().Context(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	if slots == nil {
		slots = []*model.ScheduleSlot{}
	}
	return c.JSON(http.StatusOK, slots)
}
