// Package gateway определяет провайдеро-независимый интерфейс платёжного
// шлюза и общие типы запросов/результатов адаптеров.
//
// Контракт ошибок: бизнес-отказы провайдера (отклонённый платёж,
// отсутствующие учётные данные, not found) и транспортные сбои
// возвращаются структурированным результатом (Success=false, статус
// FAILED, человекочитаемое сообщение). Возврат error зарезервирован
// для некорректного локального ввода. Адаптеры — чистые сетевые
// клиенты без локальной персистентности: результаты сохраняет вызывающий.
package gateway

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/onboarding-platform/pkg/circuitbreaker"
	"example.com/onboarding-platform/services/payments/internal/domain"
)

// CheckoutRequest — параметры создания checkout-сессии.
type CheckoutRequest struct {
	Title       string
	Description string
	AmountCents int64  // Сумма в сентаво
	PayerEmail  string // Опционально
	PayerName   string // Опционально
}

// CheckoutResult — результат создания checkout-сессии.
type CheckoutResult struct {
	Success      bool
	Status       domain.PaymentStatus
	CheckoutURL  string // URL страницы оплаты провайдера
	PreferenceID string // ID сессии на стороне провайдера
	Message      string
}

// StatusResult — результат запроса статуса платежа.
type StatusResult struct {
	Success              bool
	Status               domain.PaymentStatus
	RawStatus            string // Статус в словаре провайдера (для аудита)
	GatewayTransactionID string
	Message              string
}

// PaymentInfo — один платёж провайдера, привязанный к транзакции.
// Одна транзакция может породить несколько провайдерских платежей
// (пользователь повторяет попытку оплаты в той же сессии).
type PaymentInfo struct {
	ID          string
	RawStatus   string
	Status      domain.PaymentStatus
	AmountCents int64
}

// SearchResult — результат поиска платежей по external reference.
type SearchResult struct {
	Success  bool
	Payments []PaymentInfo
	Message  string
}

// RefundResult — результат возврата платежа.
type RefundResult struct {
	Success bool
	Message string
}

// Gateway — интерфейс возможностей платёжного провайдера.
// Все операции — блокирующие сетевые вызовы с таймаутом из конфига;
// вызывать без удержания внутрипроцессных блокировок.
type Gateway interface {
	// Name возвращает идентификатор шлюза.
	Name() domain.GatewayName

	// CreateCheckout создаёт hosted checkout-сессию. transactionID
	// передаётся провайдеру как external reference.
	CreateCheckout(ctx context.Context, transactionID string, req CheckoutRequest) (*CheckoutResult, error)

	// CheckStatus запрашивает текущий статус платежа по провайдерскому id.
	CheckStatus(ctx context.Context, gatewayTransactionID string) (*StatusResult, error)

	// SearchByReference ищет все платежи, привязанные к транзакции.
	SearchByReference(ctx context.Context, reference string) (*SearchResult, error)

	// Refund выполняет возврат: полный при amountCents == 0, иначе частичный.
	Refund(ctx context.Context, gatewayTransactionID string, amountCents int64) (*RefundResult, error)
}

// =============================================================================
// Общие помощники адаптеров
// =============================================================================

// IsLocalBaseURL возвращает true, если адрес пустой или указывает на
// loopback. Внешний провайдер не может достучаться до localhost:
// отправка такого URL приводит к тихой потере вебхуков, поэтому
// redirect/notification поля в этом случае опускаются целиком.
func IsLocalBaseURL(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	host := u.Hostname()
	if host == "" || host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}

// NewHTTPClient создаёт HTTP клиент для вызовов провайдера: явный
// таймаут и circuit breaker вокруг транспорта.
func NewHTTPClient(timeout time.Duration, breaker *circuitbreaker.Breaker) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := http.DefaultTransport
	if breaker != nil {
		transport = circuitbreaker.RoundTripper(breaker, transport)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// FailedCheckout строит структурированный отказ создания checkout.
func FailedCheckout(message string) *CheckoutResult {
	return &CheckoutResult{Success: false, Status: domain.StatusFailed, Message: message}
}

// FailedStatus строит структурированный отказ запроса статуса.
func FailedStatus(message string) *StatusResult {
	return &StatusResult{Success: false, Status: domain.StatusFailed, Message: message}
}

// FailedSearch строит структурированный отказ поиска.
func FailedSearch(message string) *SearchResult {
	return &SearchResult{Success: false, Message: message}
}

// FailedRefund строит структурированный отказ возврата.
func FailedRefund(message string) *RefundResult {
	return &RefundResult{Success: false, Message: message}
}
