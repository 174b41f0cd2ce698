// Package handler содержит HTTP обработчики для REST API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/repository"
)

// SettingsHandler — административное управление настройками шлюза.
type SettingsHandler struct {
	settings repository.SettingsRepository
}

// NewSettingsHandler создаёт обработчик настроек платежей.
func NewSettingsHandler(settings repository.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// === Request/Response DTOs ===

// CredentialsStatus — наличие учётных данных без раскрытия секретов.
type CredentialsStatus struct {
	Sandbox    bool `json:"sandbox"`
	Production bool `json:"production"`
}

// SettingsResponse — текущие настройки. Секреты не возвращаются:
// админка видит только активный шлюз, окружение и факт наличия ключей.
type SettingsResponse struct {
	Gateway     string            `json:"gateway"`
	Environment string            `json:"environment"`
	MercadoPago CredentialsStatus `json:"mercadopago"`
	PagSeguro   CredentialsStatus `json:"pagseguro"`
}

// UpdateSettingsRequest — запрос на изменение настроек. Пустое поле
// учётных данных оставляет сохранённое значение без изменений.
type UpdateSettingsRequest struct {
	Gateway     string `json:"gateway" binding:"required,oneof=mercadopago pagseguro"`
	Environment string `json:"environment" binding:"required,oneof=sandbox production"`

	MercadoPagoSandbox    *MercadoPagoCredentialsDTO `json:"mercadopago_sandbox,omitempty"`
	MercadoPagoProduction *MercadoPagoCredentialsDTO `json:"mercadopago_production,omitempty"`
	PagSeguroSandbox      *PagSeguroCredentialsDTO   `json:"pagseguro_sandbox,omitempty"`
	PagSeguroProduction   *PagSeguroCredentialsDTO   `json:"pagseguro_production,omitempty"`
}

// MercadoPagoCredentialsDTO — учётные данные Mercado Pago.
type MercadoPagoCredentialsDTO struct {
	AccessToken string `json:"access_token"`
	PublicKey   string `json:"public_key"`
}

// PagSeguroCredentialsDTO — учётные данные PagSeguro.
type PagSeguroCredentialsDTO struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// === Handlers ===

// Get обрабатывает GET /api/v1/payments/settings (admin).
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			settings = domain.DefaultPaymentSettings()
		} else {
			HandleDomainError(c, err, "GetSettings")
			return
		}
	}

	c.JSON(http.StatusOK, settingsResponse(settings))
}

// Update обрабатывает PUT /api/v1/payments/settings (admin).
func (h *SettingsHandler) Update(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_argument",
			Message: "Некорректное тело запроса",
		})
		return
	}

	ctx := c.Request.Context()

	current, err := h.settings.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			HandleDomainError(c, err, "UpdateSettings")
			return
		}
		current = domain.DefaultPaymentSettings()
	}

	current.Gateway = domain.GatewayName(req.Gateway)
	current.Environment = domain.Environment(req.Environment)

	if req.MercadoPagoSandbox != nil {
		current.MercadoPagoSandbox = domain.MercadoPagoCredentials{
			AccessToken: req.MercadoPagoSandbox.AccessToken,
			PublicKey:   req.MercadoPagoSandbox.PublicKey,
		}
	}
	if req.MercadoPagoProduction != nil {
		current.MercadoPagoProduction = domain.MercadoPagoCredentials{
			AccessToken: req.MercadoPagoProduction.AccessToken,
			PublicKey:   req.MercadoPagoProduction.PublicKey,
		}
	}
	if req.PagSeguroSandbox != nil {
		current.PagSeguroSandbox = domain.PagSeguroCredentials{
			Email: req.PagSeguroSandbox.Email,
			Token: req.PagSeguroSandbox.Token,
		}
	}
	if req.PagSeguroProduction != nil {
		current.PagSeguroProduction = domain.PagSeguroCredentials{
			Email: req.PagSeguroProduction.Email,
			Token: req.PagSeguroProduction.Token,
		}
	}

	if err := h.settings.Save(ctx, current); err != nil {
		HandleDomainError(c, err, "UpdateSettings")
		return
	}

	logger.FromContext(ctx).Info().
		Str("gateway", string(current.Gateway)).
		Str("environment", string(current.Environment)).
		Msg("Настройки платёжного шлюза обновлены")

	c.JSON(http.StatusOK, settingsResponse(current))
}

func settingsResponse(s *domain.PaymentSettings) SettingsResponse {
	return SettingsResponse{
		Gateway:     string(s.Gateway),
		Environment: string(s.Environment),
		MercadoPago: CredentialsStatus{
			Sandbox:    s.MercadoPagoSandbox.Configured(),
			Production: s.MercadoPagoProduction.Configured(),
		},
		PagSeguro: CredentialsStatus{
			Sandbox:    s.PagSeguroSandbox.Configured(),
			Production: s.PagSeguroProduction.Configured(),
		},
	}
}
