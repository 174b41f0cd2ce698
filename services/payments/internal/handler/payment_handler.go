// Package handler содержит HTTP обработчики для REST API.
package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/services/payments/internal/middleware"
	"example.com/onboarding-platform/services/payments/internal/service"
)

// HeaderWebhookSignature — заголовок HMAC подписи вебхука.
// Значение — hex HMAC-SHA256 сырого тела, допускается префикс "sha256=".
const HeaderWebhookSignature = "X-Hub-Signature"

// PaymentHandler — обработчик платёжных операций.
type PaymentHandler struct {
	payments service.PaymentService
	webhooks service.WebhookService
}

// NewPaymentHandler создаёт новый обработчик платежей.
func NewPaymentHandler(payments service.PaymentService, webhooks service.WebhookService) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		webhooks: webhooks,
	}
}

// === Request/Response DTOs ===

// CreatePaymentResponse — ответ на создание платежа.
type CreatePaymentResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
	Status        string `json:"status,omitempty"`
	Reused        bool   `json:"reused,omitempty"`
	Message       string `json:"message,omitempty"`
}

// StatusResponse — статус транзакции для владельца.
type StatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"` // pending / confirmed / failed
	CheckoutURL   string `json:"checkout_url,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
	Gateway       string `json:"gateway"`
	Environment   string `json:"environment"`
	PaidAt        *int64 `json:"paid_at,omitempty"`
}

// RefundRequest — запрос на возврат. Пустая или нулевая сумма — полный возврат.
type RefundRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"min=0"`
}

// RefundResponse — результат возврата.
type RefundResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WebhookResponse — подтверждение вебхука провайдеру.
type WebhookResponse struct {
	Outcome string `json:"outcome"`
}

// === Handlers ===

// CreatePayment обрабатывает POST /api/v1/payments/create-payment.
// Пользователь берётся из токена: платёж всегда создаётся для себя.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	result, err := h.payments.CreatePayment(c.Request.Context(), userID)
	if err != nil {
		HandleDomainError(c, err, "CreatePayment")
		return
	}

	resp := CreatePaymentResponse{
		Success:       result.Success,
		TransactionID: result.TransactionID,
		CheckoutURL:   result.CheckoutURL,
		Status:        result.Status,
		Reused:        result.Reused,
		Message:       result.Message,
	}

	if !result.Success {
		// Отказ провайдера — не ошибка клиента, но и не 200
		c.JSON(http.StatusBadGateway, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStatus обрабатывает GET /api/v1/payments/status/:transaction_id.
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	transactionID := c.Param("transaction_id")
	requesterID := c.GetString(middleware.ContextUserID)
	elevated := c.GetBool(middleware.ContextElevated)

	info, err := h.payments.GetStatus(c.Request.Context(), transactionID, requesterID, elevated)
	if err != nil {
		HandleDomainError(c, err, "GetStatus")
		return
	}

	c.JSON(http.StatusOK, statusResponse(info))
}

// SimulatePayment обрабатывает POST /api/v1/payments/simulate-payment/:transaction_id.
// Работает только в sandbox окружении.
func (h *PaymentHandler) SimulatePayment(c *gin.Context) {
	transactionID := c.Param("transaction_id")
	requesterID := c.GetString(middleware.ContextUserID)

	info, err := h.payments.SimulatePayment(c.Request.Context(), transactionID, requesterID)
	if err != nil {
		HandleDomainError(c, err, "SimulatePayment")
		return
	}

	c.JSON(http.StatusOK, statusResponse(info))
}

// Refund обрабатывает POST /api/v1/payments/refund/:transaction_id (admin).
func (h *PaymentHandler) Refund(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	var req RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_argument",
				Message: "Некорректное тело запроса",
			})
			return
		}
	}

	result, err := h.payments.Refund(c.Request.Context(), transactionID, req.AmountCents)
	if err != nil {
		HandleDomainError(c, err, "Refund")
		return
	}

	resp := RefundResponse{Success: result.Success, Message: result.Message}
	if !result.Success {
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Webhook обрабатывает POST /api/v1/payments/webhook.
// Единственный не-2xx ответ — неверная подпись: провайдеры перепосылают
// уведомления при ошибке, а повторная доставка тут бессмысленна.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		log.Warn().Err(err).Msg("Ошибка чтения тела вебхука")
		c.JSON(http.StatusOK, WebhookResponse{Outcome: "unreadable"})
		return
	}

	if err := h.webhooks.VerifySignature(body, c.GetHeader(HeaderWebhookSignature)); err != nil {
		log.Warn().Msg("Вебхук с неверной подписью отклонён")
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_signature",
			Message: "Неверная подпись",
		})
		return
	}

	result, err := h.webhooks.Process(c.Request.Context(), body)
	if err != nil {
		// Внутренняя ошибка (БД) — пусть провайдер повторит доставку
		HandleDomainError(c, err, "Webhook")
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{Outcome: result.Outcome})
}

func statusResponse(info *service.StatusInfo) StatusResponse {
	resp := StatusResponse{
		TransactionID: info.Transaction.ID,
		Status:        info.UserStatus,
		CheckoutURL:   info.Transaction.CheckoutURL,
		AmountCents:   info.Transaction.AmountCents,
		Gateway:       info.Transaction.Gateway,
		Environment:   info.Transaction.Environment,
		PaidAt:        unixTime(info.Transaction.PaidAt),
	}
	return resp
}

func unixTime(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}
