package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Pinger - проверка доступности базы для /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services - зависимости обработчиков
type Services struct {
	Bookings *service.BookingService
	Slots    *service.SlotService
	Packages *service.PackageService
	Users    *service.UserService
	DB       Pinger
}

type Server struct {
	echo   *echo.Echo
	addr   string
	logger *zap.Logger
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

func newValidator() (*requestValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("bookingstatus", func(fl validator.FieldLevel) bool {
		return model.BookingStatus(fl.Field().String()).Valid()
	})
	if err != nil {
		return nil, fmt.Errorf("register bookingstatus validation: %w", err)
	}
	return &requestValidator{v: v}, nil
}

// NewServer собирает echo с маршрутами /v1 и /healthz
func NewServer(addr, jwtSecret string, svc Services, logger *zap.Logger) (*Server, error) {
	rv, err := newValidator()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = rv

	e.Use(echomw.Recover())
	e.Use(RequestLogger(logger))

	h := &handler{svc: svc, logger: logger}

	e.GET("/healthz", h.Health)

	v1 := e.Group("/v1", JWTAuth(jwtSecret))

	v1.POST("/bookings", h.CreateBooking)
	v1.GET("/bookings", h.ListBookings)
	v1.GET("/bookings/:id", h.GetBooking)
	v1.PUT("/bookings", h.UpdateBooking)
	v1.POST("/bookings/:id/cancel", h.CancelBooking)
	v1.DELETE("/bookings", h.DeleteBooking, RequireRole(model.RoleAdmin))

	v1.GET("/slots", h.ListSlots)
	v1.GET("/slots/:id", h.GetSlot)

	v1.GET("/packages", h.ListPackages)
	v1.GET("/packages/:id", h.GetPackage)

	v1.GET("/me/contact", h.GetContact)
	v1.PUT("/me/contact", h.UpdateContact)

	admin := v1.Group("/admin", RequireRole(model.RoleAdmin))
	admin.POST("/templates", h.CreateTemplate)
	admin.POST("/slots", h.CreateSlot)
	admin.PUT("/slots/:id", h.UpdateSlot)
	admin.DELETE("/slots/:id", h.DeleteSlot)
	admin.POST("/packages", h.GrantPackage)
	admin.POST("/packages/:id/deactivate", h.DeactivatePackage)
	admin.DELETE("/packages/:id", h.DeletePackage)

	return &Server{echo: e, addr: addr, logger: logger}, nil
}

// Handler возвращает http.Handler, в тестах используется с httptest
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type handler struct {
	svc    Services
	logger *zap.Logger
}

func (h *handler) fail(c echo.Context, err error) error {
	return writeError(c, h.logger, err, 0)
}

// Health проверяет базу с коротким таймаутом
func (h *handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.DB.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// bind разбирает тело и проверяет его тегами validate
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return validationError("invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return describeValidation(err)
	}
	return nil
}

func pathID(c echo.Context) (int64, error) {
	var id int64
	if err := echo.PathParamsBinder(c).MustInt64("id", &id).BindError(); err != nil || id <= 0 {
		return 0, validationError("invalid id")
	}
	return id, nil
}

func mustActor(c echo.Context) model.Actor {
	actor, _ := actorFrom(c)
	return actor
}
