// Package middleware содержит HTTP middleware платёжного сервиса.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/onboarding-platform/pkg/jwt"
	"example.com/onboarding-platform/pkg/logger"
)

// Ключи Gin-контекста, которые проставляет аутентификация.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextElevated = "elevated"
)

// TokenValidator — интерфейс для валидации токенов.
// Позволяет мокировать в тестах вместо реального jwt.Manager.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware — middleware для проверки JWT токенов.
// Токены выдаёт сервис аутентификации платформы; здесь проверяются
// подпись (RS256, публичный ключ), срок действия и blacklist в Redis.
type AuthMiddleware struct {
	validator TokenValidator
	blacklist *jwt.Blacklist
}

// NewAuthMiddleware создаёт новый middleware для аутентификации.
// blacklist может быть nil — тогда проверка отозванных токенов пропускается.
func NewAuthMiddleware(validator TokenValidator, blacklist *jwt.Blacklist) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		blacklist: blacklist,
	}
}

// Handle возвращает Gin handler function для middleware.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := extractBearerToken(c)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется авторизация",
			})
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка валидации токена")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Невалидный токен",
			})
			return
		}

		if m.blacklist != nil && claims.ID != "" {
			revoked, err := m.blacklist.Check(ctx, claims.ID)
			if err != nil {
				// Redis недоступен — пропускаем проверку, подпись уже сверена
				log.Warn().Err(err).Msg("Ошибка проверки blacklist токенов")
			} else if revoked {
				log.Debug().Str("jti", claims.ID).Msg("Токен отозван")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "unauthorized",
					"message": "Токен недействителен",
				})
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextElevated, claims.IsElevated())

		log.Debug().
			Str("user_id", claims.UserID).
			Str("role", claims.Role).
			Msg("Пользователь аутентифицирован")

		c.Next()
	}
}

// RequireElevated пропускает только роли с расширенным доступом
// (admin, support). Вешается после Handle на админские маршруты.
func (m *AuthMiddleware) RequireElevated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextElevated) {
			logger.FromContext(c.Request.Context()).Warn().
				Str("user_id", c.GetString(ContextUserID)).
				Str("path", c.Request.URL.Path).
				Msg("Попытка доступа без расширенных прав")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Недостаточно прав",
			})
			return
		}
		c.Next()
	}
}

// extractBearerToken извлекает токен из заголовка Authorization.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
