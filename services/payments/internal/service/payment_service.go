package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"example.com/onboarding-platform/pkg/config"
	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/pkg/metrics"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway"
	"example.com/onboarding-platform/services/payments/internal/repository"
)

// GatewayResolver — фасад платёжных шлюзов (для подмены в тестах).
type GatewayResolver interface {
	ActiveCredentials(ctx context.Context) (*domain.PaymentSettings, error)
	Service(ctx context.Context) (gateway.Gateway, error)
	ServiceFor(ctx context.Context, name domain.GatewayName) (gateway.Gateway, error)
}

// =============================================================================
// Интерфейс сервиса
// =============================================================================

// CreatePaymentResult — результат создания платежа.
type CreatePaymentResult struct {
	Success       bool
	TransactionID string
	CheckoutURL   string
	Status        string // Словарь конечного пользователя: pending / confirmed / failed
	Reused        bool   // true, если возвращена существующая PENDING транзакция
	Message       string // Причина отказа (при !Success)
}

// StatusInfo — статус транзакции для владельца или админа.
type StatusInfo struct {
	Transaction *domain.Transaction
	UserStatus  string // pending / confirmed / failed
}

// PaymentService — бизнес-логика платежей онбординга.
type PaymentService interface {
	// CreatePayment создаёт checkout-сессию для пользователя на этапе
	// оплаты. Существующая PENDING транзакция переиспользуется.
	CreatePayment(ctx context.Context, userID string) (*CreatePaymentResult, error)

	// GetStatus возвращает статус транзакции, по возможности обновив
	// его запросом к провайдеру. Доступ: владелец или elevated роль.
	GetStatus(ctx context.Context, transactionID, requesterID string, elevated bool) (*StatusInfo, error)

	// SimulatePayment подтверждает оплату без провайдера.
	// Только sandbox окружение и только владелец транзакции.
	SimulatePayment(ctx context.Context, transactionID, requesterID string) (*StatusInfo, error)

	// Refund выполняет возврат: полный при amountCents == 0.
	// Только elevated роль (гейтится в handler).
	Refund(ctx context.Context, transactionID string, amountCents int64) (*gateway.RefundResult, error)
}

// =============================================================================
// Реализация сервиса
// =============================================================================

// paymentService — реализация PaymentService.
type paymentService struct {
	statusUpdater

	resolver GatewayResolver
	cfg      config.PaymentConfig
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(
	txRepo repository.TransactionRepository,
	userRepo repository.UserRepository,
	resolver GatewayResolver,
	cfg config.PaymentConfig,
) PaymentService {
	return &paymentService{
		statusUpdater: statusUpdater{txRepo: txRepo, userRepo: userRepo},
		resolver:      resolver,
		cfg:           cfg,
	}
}

// CreatePayment создаёт checkout-сессию.
func (s *paymentService) CreatePayment(ctx context.Context, userID string) (*CreatePaymentResult, error) {
	log := logger.Ctx(ctx)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.CanStartPayment(); err != nil {
		return nil, err
	}

	// Инвариант "одна активная транзакция на пользователя" уникальным
	// индексом не закреплён: существующая PENDING переиспользуется
	existing, err := s.txRepo.GetPendingByUser(ctx, userID)
	if err == nil && existing.CheckoutURL != "" {
		log.Info().
			Str("user_id", userID).
			Str("transaction_id", existing.ID).
			Msg("Переиспользована существующая PENDING транзакция")
		return &CreatePaymentResult{
			Success:       true,
			TransactionID: existing.ID,
			CheckoutURL:   existing.CheckoutURL,
			Status:        UserVisibleStatus(existing.Status),
			Reused:        true,
		}, nil
	}
	if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, err
	}

	settings, err := s.resolver.ActiveCredentials(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := s.resolver.Service(ctx)
	if err != nil {
		return nil, err
	}

	transactionID := uuid.New().String()
	checkout, err := svc.CreateCheckout(ctx, transactionID, gateway.CheckoutRequest{
		Title:       "Taxa de adesão",
		Description: "Taxa de adesão ao programa de franquia",
		AmountCents: s.cfg.OnboardingFeeCents,
		PayerEmail:  user.Email,
		PayerName:   user.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("создание checkout: %w", err)
	}
	if !checkout.Success {
		log.Warn().
			Str("user_id", userID).
			Str("gateway", string(svc.Name())).
			Str("message", checkout.Message).
			Msg("Провайдер отклонил создание checkout")
		return &CreatePaymentResult{
			Success: false,
			Status:  UserVisibleStatus(domain.StatusFailed),
			Message: checkout.Message,
		}, nil
	}

	tx := &domain.Transaction{
		ID:           transactionID,
		UserID:       userID,
		AmountCents:  s.cfg.OnboardingFeeCents,
		Status:       domain.StatusPending,
		Gateway:      string(svc.Name()),
		Environment:  string(settings.Environment),
		PreferenceID: checkout.PreferenceID,
		CheckoutURL:  checkout.CheckoutURL,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("сохранение транзакции: %w", err)
	}
	if err := s.userRepo.SetPendingTransaction(ctx, userID, transactionID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Ошибка привязки транзакции к пользователю")
	}

	metrics.RecordPaymentCreated(tx.Gateway, tx.Environment)
	log.Info().
		Str("user_id", userID).
		Str("transaction_id", transactionID).
		Str("gateway", tx.Gateway).
		Msg("Создана платёжная транзакция")

	return &CreatePaymentResult{
		Success:       true,
		TransactionID: transactionID,
		CheckoutURL:   checkout.CheckoutURL,
		Status:        UserVisibleStatus(domain.StatusPending),
	}, nil
}

// GetStatus возвращает статус транзакции с on-demand обновлением от
// провайдера. Обновление идёт через тот же state machine, что и
// вебхуки: монотонность и идемпотентность сохраняются.
func (s *paymentService) GetStatus(ctx context.Context, transactionID, requesterID string, elevated bool) (*StatusInfo, error) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != requesterID && !elevated {
		return nil, domain.ErrAccessDenied
	}

	s.refreshFromProvider(ctx, tx)

	return &StatusInfo{Transaction: tx, UserStatus: UserVisibleStatus(tx.Status)}, nil
}

// refreshFromProvider запрашивает провайдера и применяет свежий статус.
// Ошибки обновления не валят запрос: вернётся последний известный статус.
func (s *paymentService) refreshFromProvider(ctx context.Context, tx *domain.Transaction) {
	log := logger.Ctx(ctx)

	// REFUNDED терминален, освежать нечего
	if tx.Status == domain.StatusRefunded {
		return
	}

	// Адаптер шлюза, создавшего транзакцию, а не активного:
	// смена настроек не влияет на транзакции в полёте
	svc, err := s.resolver.ServiceFor(ctx, domain.GatewayName(tx.Gateway))
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Шлюз транзакции недоступен")
		return
	}

	var (
		raw     string
		gwTxID  string
		fetched bool
	)
	if tx.GatewayTransactionID != "" {
		status, err := svc.CheckStatus(ctx, tx.GatewayTransactionID)
		if err != nil || !status.Success {
			log.Warn().Str("transaction_id", tx.ID).Msg("Не удалось освежить статус у провайдера")
			return
		}
		raw, gwTxID, fetched = status.RawStatus, status.GatewayTransactionID, true
	} else {
		search, err := svc.SearchByReference(ctx, tx.ID)
		if err != nil || !search.Success || len(search.Payments) == 0 {
			return
		}
		// Берём последний платёж: предыдущие попытки могли быть отклонены
		last := search.Payments[len(search.Payments)-1]
		raw, gwTxID, fetched = last.RawStatus, last.ID, true
	}

	if !fetched {
		return
	}
	if gwTxID != "" {
		tx.GatewayTransactionID = gwTxID
	}

	mapped := mapProviderStatus(domain.GatewayName(tx.Gateway), raw)
	if _, err := s.apply(ctx, tx, mapped, nil); err != nil {
		log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Ошибка применения статуса провайдера")
	}
}

// SimulatePayment подтверждает оплату в обход провайдера.
// Защита: окружение строго sandbox, вызывающий владеет транзакцией.
func (s *paymentService) SimulatePayment(ctx context.Context, transactionID, requesterID string) (*StatusInfo, error) {
	settings, err := s.resolver.ActiveCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if settings.Environment != domain.EnvironmentSandbox {
		return nil, domain.ErrNotSandbox
	}

	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != requesterID {
		return nil, domain.ErrAccessDenied
	}

	if _, err := s.apply(ctx, tx, domain.StatusPaid, []byte(`{"simulated":true}`)); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("transaction_id", transactionID).
		Str("user_id", requesterID).
		Msg("Оплата подтверждена симуляцией (sandbox)")

	return &StatusInfo{Transaction: tx, UserStatus: UserVisibleStatus(tx.Status)}, nil
}

// Refund выполняет возврат оплаченной транзакции.
func (s *paymentService) Refund(ctx context.Context, transactionID string, amountCents int64) (*gateway.RefundResult, error) {
	tx, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.Status.IsPaid() {
		return nil, domain.ErrNotRefundable
	}

	svc, err := s.resolver.ServiceFor(ctx, domain.GatewayName(tx.Gateway))
	if err != nil {
		return nil, err
	}

	result, err := svc.Refund(ctx, tx.GatewayTransactionID, amountCents)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, nil
	}

	// Частичный возврат не меняет статус транзакции
	if amountCents == 0 {
		if _, err := s.apply(ctx, tx, domain.StatusRefunded, nil); err != nil {
			return nil, err
		}
	}

	logger.Ctx(ctx).Info().
		Str("transaction_id", transactionID).
		Int64("amount_cents", amountCents).
		Msg("Возврат выполнен")
	return result, nil
}
