package service

import (
	"context"
	"strings"
	"time"

	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway/mercadopago"
	"example.com/onboarding-platform/services/payments/internal/gateway/pagseguro"
	"example.com/onboarding-platform/services/payments/internal/repository"
)

// statusUpdater — общая точка применения провайдерского статуса к
// транзакции. Через неё проходят и вебхуки, и on-demand проверка
// статуса, и sandbox-симуляция: один state machine на все пути.
type statusUpdater struct {
	txRepo   repository.TransactionRepository
	userRepo repository.UserRepository
}

// applyResult — итог применения статуса.
type applyResult struct {
	Changed       bool // Статус транзакции изменился
	StageAdvanced bool // Этап пользователя продвинулся (pagamento → acolhimento)
}

// apply применяет новый статус с учётом монотонности и фиксирует
// результат в БД. rawPayload (если не nil) сохраняется в metadata для
// аудита даже при неизменном статусе.
func (u *statusUpdater) apply(ctx context.Context, tx *domain.Transaction, newStatus domain.PaymentStatus, rawPayload []byte) (*applyResult, error) {
	log := logger.Ctx(ctx)

	changed := tx.ApplyProviderStatus(newStatus, time.Now())
	if rawPayload != nil {
		tx.Metadata = rawPayload
	}

	if !changed {
		if rawPayload == nil {
			return &applyResult{}, nil
		}
		// Статус не изменился, но payload сохраняем
		if err := u.txRepo.UpdateStatus(ctx, tx); err != nil {
			return nil, err
		}
		return &applyResult{}, nil
	}

	switch {
	case tx.Status.IsPaid():
		event := newOutboxEvent(ctx, EventPaymentPaid, tx)
		stageAdvanced, err := u.txRepo.MarkPaid(ctx, tx, event)
		if err != nil {
			return nil, err
		}
		if stageAdvanced {
			log.Info().
				Str("transaction_id", tx.ID).
				Str("user_id", tx.UserID).
				Msg("Оплата подтверждена, этап онбординга продвинут")
		} else {
			log.Info().
				Str("transaction_id", tx.ID).
				Str("user_id", tx.UserID).
				Msg("Оплата подтверждена, этап уже был продвинут ранее")
		}
		return &applyResult{Changed: true, StageAdvanced: stageAdvanced}, nil

	case tx.Status == domain.StatusRefunded:
		event := newOutboxEvent(ctx, EventPaymentRefunded, tx)
		if err := u.txRepo.MarkRefunded(ctx, tx, event); err != nil {
			return nil, err
		}
		return &applyResult{Changed: true}, nil

	default:
		if err := u.txRepo.UpdateStatus(ctx, tx); err != nil {
			return nil, err
		}
		// Отклонение фиксируется на пользователе, этап не трогаем:
		// пользователь остаётся на pagamento и может попробовать снова
		if tx.Status == domain.StatusDeclined || tx.Status == domain.StatusFailed || tx.Status == domain.StatusCancelled {
			if err := u.userRepo.MarkPaymentFailed(ctx, tx.UserID); err != nil {
				log.Error().Err(err).Str("user_id", tx.UserID).Msg("Ошибка пометки неудачной оплаты")
			}
		}
		return &applyResult{Changed: true}, nil
	}
}

// mapProviderStatus нормализует raw статус по словарю шлюза транзакции.
// Значения вне провайдерского словаря сверяются с внутренним enum
// (путь sandbox-симуляции), иначе PENDING.
func mapProviderStatus(gw domain.GatewayName, raw string) domain.PaymentStatus {
	switch gw {
	case domain.GatewayMercadoPago:
		if status, ok := mercadopago.LookupStatus(raw); ok {
			return status
		}
	case domain.GatewayPagSeguro:
		if status, ok := pagseguro.LookupStatus(raw); ok {
			return status
		}
	}
	if status := domain.PaymentStatus(strings.ToUpper(raw)); status.IsValid() {
		return status
	}
	return domain.StatusPending
}

// UserVisibleStatus сводит внутренний статус к словарю конечного
// пользователя: pending / confirmed / failed. Провайдерские детали
// наружу не выходят.
func UserVisibleStatus(s domain.PaymentStatus) string {
	switch {
	case s.IsPaid():
		return "confirmed"
	case s == domain.StatusDeclined, s == domain.StatusFailed,
		s == domain.StatusCancelled, s == domain.StatusRefunded:
		return "failed"
	default:
		return "pending"
	}
}
