// Package domain содержит бизнес-сущности платёжного ядра онбординга.
package domain

import (
	"time"
)

// PaymentStatus — внутренний статус платёжной транзакции.
// Провайдеры сообщают успех по-разному (approved / authorized / paid),
// поэтому успешные статусы хранятся раздельно, но бизнес-логика
// трактует любой из них как "оплачено" (IsPaid).
type PaymentStatus string

const (
	// StatusPending — транзакция создана, оплата не началась.
	StatusPending PaymentStatus = "PENDING"

	// StatusProcessing — провайдер обрабатывает платёж.
	StatusProcessing PaymentStatus = "PROCESSING"

	// StatusApproved — платёж одобрен провайдером.
	StatusApproved PaymentStatus = "APPROVED"

	// StatusAuthorized — платёж авторизован (средства заблокированы).
	StatusAuthorized PaymentStatus = "AUTHORIZED"

	// StatusPaid — платёж завершён.
	StatusPaid PaymentStatus = "PAID"

	// StatusDeclined — платёж отклонён провайдером.
	StatusDeclined PaymentStatus = "DECLINED"

	// StatusFailed — ошибка обработки (транспорт, конфигурация).
	StatusFailed PaymentStatus = "FAILED"

	// StatusRefunded — платёж возвращён. Терминальный статус.
	StatusRefunded PaymentStatus = "REFUNDED"

	// StatusCancelled — платёж отменён.
	StatusCancelled PaymentStatus = "CANCELLED"
)

// IsPaid возвращает true для статусов, означающих успешную оплату.
func (s PaymentStatus) IsPaid() bool {
	return s == StatusApproved || s == StatusAuthorized || s == StatusPaid
}

// IsValid проверяет, что значение входит во внутренний словарь статусов.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusApproved, StatusAuthorized,
		StatusPaid, StatusDeclined, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// Transaction — доменная сущность
// =============================================================================

// Transaction — платёжная попытка пользователя онбординга.
// ID генерируется при создании и передаётся провайдеру как external
// reference; провайдер возвращает его в вебхуках для корреляции.
// Транзакции никогда не удаляются (финансовая запись).
type Transaction struct {
	ID                   string        // UUID, внешний reference для провайдера
	UserID               string        // Владелец транзакции
	AmountCents          int64         // Сумма в сентаво (минимальные единицы)
	Status               PaymentStatus // Текущий статус
	Gateway              string        // Шлюз, создавший транзакцию (фиксируется при создании)
	Environment          string        // sandbox / production на момент создания
	GatewayTransactionID string        // ID платежа на стороне провайдера
	PreferenceID         string        // ID checkout-сессии провайдера
	CheckoutURL          string        // URL страницы оплаты
	Metadata             []byte        // Последний raw payload вебхука (аудит)
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PaidAt               *time.Time // Время перехода в оплаченный статус
	RefundedAt           *time.Time // Время возврата
}

// ApplyProviderStatus применяет статус, полученный от провайдера, с учётом
// монотонности: порядок доставки вебхуков не гарантирован, и устаревший
// "pending" может прийти после "paid". Оплаченный статус никогда не
// перезаписывается неоплаченным, кроме перехода в REFUNDED; REFUNDED
// терминален. Возвращает true, если статус изменился.
func (t *Transaction) ApplyProviderStatus(newStatus PaymentStatus, now time.Time) bool {
	if !newStatus.IsValid() || newStatus == t.Status {
		return false
	}

	// REFUNDED — терминальное состояние
	if t.Status == StatusRefunded {
		return false
	}

	// Оплаченный статус не откатывается устаревшим вебхуком
	if t.Status.IsPaid() && !newStatus.IsPaid() && newStatus != StatusRefunded {
		return false
	}

	t.Status = newStatus
	t.UpdatedAt = now

	if newStatus.IsPaid() && t.PaidAt == nil {
		paidAt := now
		t.PaidAt = &paidAt
	}
	if newStatus == StatusRefunded && t.RefundedAt == nil {
		refundedAt := now
		t.RefundedAt = &refundedAt
	}
	return true
}

// Validate проверяет корректность полей транзакции.
func (t *Transaction) Validate() error {
	if t.UserID == "" {
		return ErrUserRequired
	}
	if t.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if t.Gateway == "" {
		return ErrGatewayRequired
	}
	return nil
}
