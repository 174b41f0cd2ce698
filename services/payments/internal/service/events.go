// Package service содержит бизнес-логику платёжного ядра.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"example.com/onboarding-platform/pkg/kafka"
	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/pkg/outbox"
	"example.com/onboarding-platform/services/payments/internal/domain"
)

// Типы событий топика payment.events.
const (
	EventPaymentPaid     = "payment.paid"
	EventPaymentRefunded = "payment.refunded"
)

// PaymentEvent — payload события платёжного ядра.
// Потребители: нотификации/чат и LMS-зачисление.
type PaymentEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	AmountCents   int64     `json:"amount_cents"`
	Gateway       string    `json:"gateway"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// newOutboxEvent строит outbox-запись для события транзакции.
// Ключ партиционирования — user_id: события одного пользователя
// попадают в одну партицию и сохраняют порядок.
func newOutboxEvent(ctx context.Context, eventType string, tx *domain.Transaction) *outbox.Outbox {
	event := PaymentEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		AmountCents:   tx.AmountCents,
		Gateway:       tx.Gateway,
		Status:        string(tx.Status),
		OccurredAt:    time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		// Структура сериализуема всегда; ветка достижима только при порче типа
		logger.Error().Err(err).Str("event_type", eventType).Msg("Ошибка сериализации события")
		return nil
	}

	headers := map[string]string{}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers[kafka.HeaderTraceID] = traceID
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		headers[kafka.HeaderCorrelationID] = correlationID
	}

	return &outbox.Outbox{
		AggregateType: "transaction",
		AggregateID:   tx.ID,
		EventType:     eventType,
		Topic:         kafka.TopicPaymentEvents,
		MessageKey:    tx.UserID,
		Payload:       payload,
		Headers:       headers,
	}
}
