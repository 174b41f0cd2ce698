package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/onboarding-platform/services/payments/internal/domain"
)

func settingsColumns() []string {
	return []string{
		"id", "gateway", "environment", "created_at", "updated_at",
		"mp_sandbox_access_token", "mp_sandbox_public_key",
		"mp_production_access_token", "mp_production_public_key",
		"ps_sandbox_email", "ps_sandbox_token",
		"ps_production_email", "ps_production_token",
	}
}

func TestSettingsRepository_Get(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(settingsColumns()).
		AddRow("set-1", "mercadopago", "production", now, now,
			"sb-token", "sb-key", "prod-token", "prod-key",
			"sb@example.com", "ps-sb", "prod@example.com", "ps-prod")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `payment_settings`")).
		WillReturnRows(rows)

	got, err := NewSettingsRepository(db).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayMercadoPago, got.Gateway)
	assert.Equal(t, domain.EnvironmentProduction, got.Environment)
	assert.Equal(t, "prod-token", got.MercadoPago().AccessToken)
	assert.Equal(t, "prod@example.com", got.PagSeguro().Email)
}

func TestSettingsRepository_Get_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `payment_settings`")).
		WillReturnRows(sqlmock.NewRows(settingsColumns()))

	_, err := NewSettingsRepository(db).Get(context.Background())
	assert.ErrorIs(t, err, domain.ErrSettingsNotFound)
}

func TestSettingsRepository_Save(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payment_settings`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	settings := &domain.PaymentSettings{
		Gateway:     domain.GatewayPagSeguro,
		Environment: domain.EnvironmentSandbox,
	}
	err := NewSettingsRepository(db).Save(context.Background(), settings)
	require.NoError(t, err)
	assert.NotEmpty(t, settings.ID, "ID генерируется при первом сохранении")
}

func TestSettingsRepository_Save_Invalid(t *testing.T) {
	db, _, cleanup := setupMockDB(t)
	defer cleanup()

	settings := &domain.PaymentSettings{Gateway: "stripe", Environment: domain.EnvironmentSandbox}
	err := NewSettingsRepository(db).Save(context.Background(), settings)
	assert.ErrorIs(t, err, domain.ErrUnknownGateway)
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{
		"id", "email", "name", "current_stage", "payment_status", "payment_transaction_id", "updated_at",
	}).AddRow("user-1", "f@example.com", "Franqueado", "pagamento", "pending", "", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE id = ?")).
		WithArgs("user-1", 1).
		WillReturnRows(rows)

	got, err := NewUserRepository(db).GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StagePagamento, got.CurrentStage)
	assert.Equal(t, domain.UserPaymentPending, got.PaymentStatus)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewUserRepository(db).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_SetPendingTransaction(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewUserRepository(db).SetPendingTransaction(context.Background(), "user-1", "tx-1")
	require.NoError(t, err)
}

func TestUserRepository_MarkPaymentFailed_DoesNotTouchPaid(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	// Оплаченный пользователь не помечается failed: guard в WHERE даёт 0 строк
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := NewUserRepository(db).MarkPaymentFailed(context.Background(), "user-1")
	assert.NoError(t, err, "0 затронутых строк — не ошибка")
}
