package api

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type grantPackageRequest struct {
	OwnerID            int64      `json:"ownerId" validate:"required,gt=0"`
	PurchaseID         string     `json:"purchaseId" validate:"omitempty,uuid"`
	SessionsPerPackage int        `json:"sessionsPerPackage" validate:"required,gt=0"`
	Quantity           int        `json:"quantity" validate:"required,gt=0"`
	ExpiresAt          *time.Time `json:"expiresAt"`
}

type contactRequest struct {
	TelegramID *int64 `json:"telegramId" validate:"omitempty,gt=0"`
	Phone      string `json:"phone" validate:"omitempty,e164"`
	FirstName  string `json:"firstName" validate:"max=100"`
}

// GrantPackage - POST /v1/admin/packages.
// Новая покупка отвечает 201, повтор той же покупки - 200 с существующим пакетом.
func (h *handler) GrantPackage(c echo.Context) error {
	var req grantPackageRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	var purchaseID uuid.UUID
	if req.PurchaseID != "" {
		purchaseID = uuid.MustParse(req.PurchaseID) // формат уже проверен тегом uuid
	}

	pkg, created, err := h.svc.Packages.GrantPackage(c.Request().Context(), service.GrantPackageInput{
		OwnerID:            req.OwnerID,
		PurchaseID:         purchaseID,
		SessionsPerPackage: req.SessionsPerPackage,
		Quantity:           req.Quantity,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		return h.fail(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, pkg)
}

// ListPackages - GET /v1/packages?onlyActive=&ownerId=
func (h *handler) ListPackages(c echo.Context) error {
	var filter model.PackageFilter
	err := echo.QueryParamsBinder(c).
		Int64("ownerId", &filter.OwnerID).
		Bool("onlyActive", &filter.OnlyActive).
		BindError()
	if err != nil {
		return h.fail(c, validationError("invalid query parameters"))
	}

	packages, err := h.svc.Packages.ListPackages(c.Request().Context(), mustActor(c), filter)
	if err != nil {
		return h.fail(c, err)
	}
	if packages == nil {
		packages = []*model.UserPackage{}
	}
	return c.JSON(http.StatusOK, packages)
}

// GetPackage - GET /v1/packages/:id
func (h *handler) GetPackage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	pkg, err := h.svc.Packages.GetPackage(c.Request().Context(), mustActor(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// DeactivatePackage - POST /v1/admin/packages/:id/deactivate
func (h *handler) DeactivatePackage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.svc.Packages.DeactivatePackage(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

// DeletePackage - DELETE /v1/admin/packages/:id
func (h *handler) DeletePackage(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.svc.Packages.DeletePackage(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{})
}

// GetContact - GET /v1/me/contact
func (h *handler) GetContact(c echo.Context) error {
	user, err := h.svc.Users.GetContacts(c.Request().Context(), mustActor(c).UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateContact - PUT /v1/me/contact, куда слать уведомления
func (h *handler) UpdateContact(c echo.Context) error {
	var req contactRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	user, err := h.svc.Users.UpdateContacts(c.Request().Context(), mustActor(c).UserID, service.ContactInput{
		TelegramID: req.TelegramID,
		Phone:      req.Phone,
		FirstName:  req.FirstName,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
