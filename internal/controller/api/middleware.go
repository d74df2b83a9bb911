package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const actorKey = "actor"

// Claims - поля токена, выданного внешним сервисом аутентификации
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth проверяет Bearer токен (HS256) и кладёт model.Actor в контекст запроса
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || raw == "" {
				return unauthorized(c, "missing bearer token")
			}

			var claims Claims
			_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				return []byte(secret), nil
			})
			if err != nil {
				return unauthorized(c, "invalid token")
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || userID <= 0 {
				return unauthorized(c, "invalid subject")
			}

			role := model.Role(claims.Role)
			if role != model.RoleClient && role != model.RoleAdmin {
				return unauthorized(c, "unknown role")
			}

			c.Set(actorKey, model.Actor{UserID: userID, Role: role})
			return next(c)
		}
	}
}

// RequireRole пропускает только запросы с одной из ролей
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := actorFrom(c)
			if !ok || !allowed[actor.Role] {
				return c.JSON(http.StatusForbidden, errorResponse{Error: errorBody{
					Kind:    service.KindForbidden,
					Message: "forbidden",
				}})
			}
			return next(c)
		}
	}
}

// RequestLogger пишет в zap метод, путь, статус и время ответа
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			logger.Info("HTTP request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}

func actorFrom(c echo.Context) (model.Actor, bool) {
	actor, ok := c.Get(actorKey).(model.Actor)
	return actor, ok
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: errorBody{
		Kind:    "Unauthorized",
		Message: message,
	}})
}
