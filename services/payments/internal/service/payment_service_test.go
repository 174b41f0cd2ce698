package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/onboarding-platform/pkg/config"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway"
)

func paymentCfg() config.PaymentConfig {
	return config.PaymentConfig{OnboardingFeeCents: 150000}
}

func sandboxSettings() *domain.PaymentSettings {
	return &domain.PaymentSettings{
		Gateway:     domain.GatewayPagSeguro,
		Environment: domain.EnvironmentSandbox,
	}
}

func newFixture() (*mockUserRepo, *mockTxRepo, *mockResolver, PaymentService) {
	users := newMockUserRepo()
	txs := newMockTxRepo(users)
	resolver := &mockResolver{
		settings: sandboxSettings(),
		gateway: &stubGateway{
			name: domain.GatewayPagSeguro,
			checkoutResult: &gateway.CheckoutResult{
				Success:      true,
				Status:       domain.StatusPending,
				CheckoutURL:  "https://sandbox.pagseguro.test/payment.html?code=ABC",
				PreferenceID: "ABC",
			},
		},
	}
	svc := NewPaymentService(txs, users, resolver, paymentCfg())
	return users, txs, resolver, svc
}

func pagamentoUser(id string) *domain.User {
	return &domain.User{
		ID:            id,
		Email:         "franqueado@example.com",
		Name:          "Franqueado",
		CurrentStage:  domain.StagePagamento,
		PaymentStatus: domain.UserPaymentPending,
	}
}

// =============================================================================
// CreatePayment
// =============================================================================

func TestCreatePayment_Success(t *testing.T) {
	users, txs, _, svc := newFixture()
	users.put(pagamentoUser("user-1"))

	result, err := svc.CreatePayment(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "pending", result.Status)
	assert.NotEmpty(t, result.TransactionID)
	assert.Equal(t, "https://sandbox.pagseguro.test/payment.html?code=ABC", result.CheckoutURL)
	assert.False(t, result.Reused)

	tx := txs.get(result.TransactionID)
	require.NotNil(t, tx, "транзакция сохранена")
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.Equal(t, "pagseguro", tx.Gateway)
	assert.Equal(t, "sandbox", tx.Environment)
	assert.Equal(t, int64(150000), tx.AmountCents)

	u := users.get("user-1")
	assert.Equal(t, result.TransactionID, u.PaymentTransactionID)
}

func TestCreatePayment_WrongStage(t *testing.T) {
	users, _, _, svc := newFixture()
	u := pagamentoUser("user-1")
	u.CurrentStage = domain.StageDocumentosPF
	users.put(u)

	_, err := svc.CreatePayment(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrWrongStage)
}

func TestCreatePayment_AlreadyPaid(t *testing.T) {
	users, _, _, svc := newFixture()
	u := pagamentoUser("user-1")
	u.PaymentStatus = domain.UserPaymentPaid
	users.put(u)

	_, err := svc.CreatePayment(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestCreatePayment_ReusesPending(t *testing.T) {
	users, txs, _, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{
		ID:          "tx-existing",
		UserID:      "user-1",
		Status:      domain.StatusPending,
		Gateway:     "pagseguro",
		CheckoutURL: "https://pay.test/existing",
	})

	result, err := svc.CreatePayment(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Reused)
	assert.Equal(t, "tx-existing", result.TransactionID)
	assert.Equal(t, "https://pay.test/existing", result.CheckoutURL)
}

func TestCreatePayment_ProviderFailure(t *testing.T) {
	users, txs, resolver, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	resolver.gateway.checkoutResult = &gateway.CheckoutResult{
		Success: false,
		Status:  domain.StatusFailed,
		Message: "учётные данные не настроены",
	}

	result, err := svc.CreatePayment(context.Background(), "user-1")
	require.NoError(t, err, "отказ провайдера — структурированный результат, не ошибка")
	assert.False(t, result.Success)
	assert.Equal(t, "failed", result.Status)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, txs.transactions, "при отказе провайдера транзакция не сохраняется")
}

func TestCreatePayment_UserNotFound(t *testing.T) {
	_, _, _, svc := newFixture()

	_, err := svc.CreatePayment(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// =============================================================================
// GetStatus
// =============================================================================

func TestGetStatus_OwnerWithProviderRefresh(t *testing.T) {
	users, txs, resolver, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{
		ID:                   "tx-1",
		UserID:               "user-1",
		AmountCents:          150000,
		Status:               domain.StatusPending,
		Gateway:              "pagseguro",
		GatewayTransactionID: "PS-CODE",
	})
	resolver.gateway.statusResult = &gateway.StatusResult{
		Success:              true,
		Status:               domain.StatusPaid,
		RawStatus:            "3",
		GatewayTransactionID: "PS-CODE",
	}

	info, err := svc.GetStatus(context.Background(), "tx-1", "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", info.UserStatus)
	assert.Equal(t, domain.StatusPaid, info.Transaction.Status)

	// Обновление прошло через общий state machine: этап продвинут
	u := users.get("user-1")
	assert.Equal(t, domain.StageAcolhimento, u.CurrentStage)
	assert.Equal(t, domain.UserPaymentPaid, u.PaymentStatus)
	assert.Equal(t, []string{EventPaymentPaid}, txs.eventTypes())
}

func TestGetStatus_AccessControl(t *testing.T) {
	users, txs, _, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{ID: "tx-1", UserID: "user-1", Status: domain.StatusPending, Gateway: "pagseguro"})

	_, err := svc.GetStatus(context.Background(), "tx-1", "intruder", false)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	// Elevated роль видит чужие транзакции
	_, err = svc.GetStatus(context.Background(), "tx-1", "admin", true)
	assert.NoError(t, err)
}

func TestGetStatus_SearchFallback(t *testing.T) {
	// Без gateway_transaction_id статус ищется по external reference
	users, txs, resolver, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{
		ID:          "tx-1",
		UserID:      "user-1",
		AmountCents: 150000,
		Status:      domain.StatusPending,
		Gateway:     "pagseguro",
	})
	resolver.gateway.searchResult = &gateway.SearchResult{
		Success: true,
		Payments: []gateway.PaymentInfo{
			{ID: "C1", RawStatus: "7", Status: domain.StatusCancelled},
			{ID: "C2", RawStatus: "3", Status: domain.StatusPaid},
		},
	}

	info, err := svc.GetStatus(context.Background(), "tx-1", "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, info.Transaction.Status)
	assert.Equal(t, "C2", info.Transaction.GatewayTransactionID, "берётся последняя попытка оплаты")
}

func TestGetStatus_ProviderUnavailable(t *testing.T) {
	// Ошибка провайдера не валит запрос: вернётся последний известный статус
	users, txs, resolver, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{
		ID:                   "tx-1",
		UserID:               "user-1",
		Status:               domain.StatusProcessing,
		Gateway:              "pagseguro",
		GatewayTransactionID: "PS-CODE",
	})
	resolver.gateway.statusResult = &gateway.StatusResult{
		Success: false,
		Status:  domain.StatusFailed,
		Message: "провайдер недоступен",
	}

	info, err := svc.GetStatus(context.Background(), "tx-1", "user-1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, info.Transaction.Status)
	assert.Equal(t, "pending", info.UserStatus)
}

// =============================================================================
// SimulatePayment
// =============================================================================

func TestSimulatePayment_Sandbox(t *testing.T) {
	users, txs, _, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{
		ID:          "tx-1",
		UserID:      "user-1",
		AmountCents: 150000,
		Status:      domain.StatusPending,
		Gateway:     "pagseguro",
	})

	info, err := svc.SimulatePayment(context.Background(), "tx-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", info.UserStatus)

	u := users.get("user-1")
	assert.Equal(t, domain.StageAcolhimento, u.CurrentStage)

	tx := txs.get("tx-1")
	assert.Equal(t, domain.StatusPaid, tx.Status)
	assert.NotNil(t, tx.PaidAt)
	assert.JSONEq(t, `{"simulated":true}`, string(tx.Metadata))
}

func TestSimulatePayment_ProductionRejected(t *testing.T) {
	users, txs, resolver, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{ID: "tx-1", UserID: "user-1", Status: domain.StatusPending, Gateway: "pagseguro"})
	resolver.settings.Environment = domain.EnvironmentProduction

	_, err := svc.SimulatePayment(context.Background(), "tx-1", "user-1")
	assert.ErrorIs(t, err, domain.ErrNotSandbox)

	tx := txs.get("tx-1")
	assert.Equal(t, domain.StatusPending, tx.Status, "транзакция не тронута")
}

func TestSimulatePayment_NotOwner(t *testing.T) {
	users, txs, _, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{ID: "tx-1", UserID: "user-1", Status: domain.StatusPending, Gateway: "pagseguro"})

	_, err := svc.SimulatePayment(context.Background(), "tx-1", "intruder")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

// =============================================================================
// Refund
// =============================================================================

func TestRefund_Full(t *testing.T) {
	users, txs, resolver, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{
		ID:                   "tx-1",
		UserID:               "user-1",
		AmountCents:          150000,
		Status:               domain.StatusPaid,
		Gateway:              "pagseguro",
		GatewayTransactionID: "PS-CODE",
	})
	resolver.gateway.refundResult = &gateway.RefundResult{Success: true}

	result, err := svc.Refund(context.Background(), "tx-1", 0)
	require.NoError(t, err)
	assert.True(t, result.Success)

	tx := txs.get("tx-1")
	assert.Equal(t, domain.StatusRefunded, tx.Status)
	assert.NotNil(t, tx.RefundedAt)
	assert.Equal(t, []string{EventPaymentRefunded}, txs.eventTypes())
}

func TestRefund_Partial_KeepsStatus(t *testing.T) {
	users, txs, resolver, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{
		ID:                   "tx-1",
		UserID:               "user-1",
		Status:               domain.StatusPaid,
		Gateway:              "pagseguro",
		GatewayTransactionID: "PS-CODE",
	})
	resolver.gateway.refundResult = &gateway.RefundResult{Success: true}

	result, err := svc.Refund(context.Background(), "tx-1", 50000)
	require.NoError(t, err)
	assert.True(t, result.Success)

	tx := txs.get("tx-1")
	assert.Equal(t, domain.StatusPaid, tx.Status, "частичный возврат не меняет статус")
}

func TestRefund_NotPaid(t *testing.T) {
	users, txs, _, svc := newFixture()
	users.put(pagamentoUser("user-1"))
	txs.put(&domain.Transaction{ID: "tx-1", UserID: "user-1", Status: domain.StatusPending, Gateway: "pagseguro"})

	_, err := svc.Refund(context.Background(), "tx-1", 0)
	assert.ErrorIs(t, err, domain.ErrNotRefundable)
}

func TestUserVisibleStatus(t *testing.T) {
	assert.Equal(t, "pending", UserVisibleStatus(domain.StatusPending))
	assert.Equal(t, "pending", UserVisibleStatus(domain.StatusProcessing))
	assert.Equal(t, "confirmed", UserVisibleStatus(domain.StatusApproved))
	assert.Equal(t, "confirmed", UserVisibleStatus(domain.StatusAuthorized))
	assert.Equal(t, "confirmed", UserVisibleStatus(domain.StatusPaid))
	assert.Equal(t, "failed", UserVisibleStatus(domain.StatusDeclined))
	assert.Equal(t, "failed", UserVisibleStatus(domain.StatusFailed))
	assert.Equal(t, "failed", UserVisibleStatus(domain.StatusCancelled))
	assert.Equal(t, "failed", UserVisibleStatus(domain.StatusRefunded))
}
