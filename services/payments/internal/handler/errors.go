// Package handler содержит HTTP обработчики для REST API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/services/payments/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleDomainError преобразует доменную ошибку в HTTP ответ.
// Используется всеми handlers для единообразной обработки ошибок.
// ВАЖНО: err не должен быть nil — это баг в вызывающем коде.
func HandleDomainError(c *gin.Context, err error, method string) {
	if err == nil {
		logger.Error().Str("method", method).Msg("HandleDomainError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	log := logger.FromContext(c.Request.Context())

	var httpStatus int
	var errorCode string

	switch {
	case errors.Is(err, domain.ErrTransactionNotFound), errors.Is(err, domain.ErrUserNotFound):
		httpStatus = http.StatusNotFound
		errorCode = "not_found"
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrNotSandbox):
		httpStatus = http.StatusForbidden
		errorCode = "permission_denied"
	case errors.Is(err, domain.ErrWrongStage), errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrNotRefundable):
		httpStatus = http.StatusConflict
		errorCode = "failed_precondition"
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrUnknownGateway),
		errors.Is(err, domain.ErrUnknownEnvironment), errors.Is(err, domain.ErrUserRequired),
		errors.Is(err, domain.ErrGatewayRequired):
		httpStatus = http.StatusBadRequest
		errorCode = "invalid_argument"
	case errors.Is(err, domain.ErrInvalidSignature):
		httpStatus = http.StatusUnauthorized
		errorCode = "invalid_signature"
	default:
		httpStatus = http.StatusInternalServerError
		errorCode = "internal_error"
		log.Error().Err(err).Str("method", method).Msg("Внутренняя ошибка")
	}

	c.JSON(httpStatus, ErrorResponse{
		Error:   errorCode,
		Message: err.Error(),
	})
}
