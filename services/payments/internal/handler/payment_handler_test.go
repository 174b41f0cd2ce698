package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/onboarding-platform/pkg/jwt"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway"
	"example.com/onboarding-platform/services/payments/internal/middleware"
	"example.com/onboarding-platform/services/payments/internal/service"
)

// === Моки сервисов ===

type mockPaymentService struct {
	createResult   *service.CreatePaymentResult
	createErr      error
	statusInfo     *service.StatusInfo
	statusErr      error
	simulateInfo   *service.StatusInfo
	simulateErr    error
	refundResult   *gateway.RefundResult
	refundErr      error
	gotUserID      string
	gotRequesterID string
	gotElevated    bool
	gotAmountCents int64
}

func (m *mockPaymentService) CreatePayment(_ context.Context, userID string) (*service.CreatePaymentResult, error) {
	m.gotUserID = userID
	return m.createResult, m.createErr
}

func (m *mockPaymentService) GetStatus(_ context.Context, _, requesterID string, elevated bool) (*service.StatusInfo, error) {
	m.gotRequesterID = requesterID
	m.gotElevated = elevated
	return m.statusInfo, m.statusErr
}

func (m *mockPaymentService) SimulatePayment(_ context.Context, _, requesterID string) (*service.StatusInfo, error) {
	m.gotRequesterID = requesterID
	return m.simulateInfo, m.simulateErr
}

func (m *mockPaymentService) Refund(_ context.Context, _ string, amountCents int64) (*gateway.RefundResult, error) {
	m.gotAmountCents = amountCents
	return m.refundResult, m.refundErr
}

type mockWebhookService struct {
	secret     string
	result     *service.WebhookResult
	processErr error
	gotBody    []byte
}

func (m *mockWebhookService) VerifySignature(body []byte, signature string) error {
	if m.secret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(m.secret))
	mac.Write(body)
	if hex.EncodeToString(mac.Sum(nil)) != signature {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (m *mockWebhookService) Process(_ context.Context, body []byte) (*service.WebhookResult, error) {
	m.gotBody = body
	return m.result, m.processErr
}

// stubValidator пускает любой токен как указанного пользователя.
type stubValidator struct {
	claims *jwt.Claims
	err    error
}

func (v *stubValidator) ValidateToken(string) (*jwt.Claims, error) {
	return v.claims, v.err
}

func newTestRouter(payments *mockPaymentService, webhooks *mockWebhookService, claims *jwt.Claims) *gin.Engine {
	validator := &stubValidator{claims: claims}
	if claims == nil {
		validator.err = errors.New("нет токена")
	}

	r := NewRouter(RouterConfig{
		Payments: payments,
		Webhooks: webhooks,
		AuthMW:   middleware.NewAuthMiddleware(validator, nil),
	})
	return r.Engine()
}

func perform(engine *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	engine.ServeHTTP(w, req)
	return w
}

// === CreatePayment ===

func TestCreatePaymentHandler_Success(t *testing.T) {
	payments := &mockPaymentService{
		createResult: &service.CreatePaymentResult{
			Success:       true,
			TransactionID: "tx-1",
			CheckoutURL:   "https://sandbox.pagseguro.uol.com.br/v2/checkout/payment.html?code=ABC",
			Status:        "pending",
		},
	}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "user-1", Role: jwt.RoleFranchisee})

	w := perform(engine, http.MethodPost, "/api/v1/payments/create-payment", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", payments.gotUserID, "пользователь берётся из токена")

	var resp CreatePaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "tx-1", resp.TransactionID)
	assert.Contains(t, resp.CheckoutURL, "pagseguro")
}

func TestCreatePaymentHandler_ProviderFailure(t *testing.T) {
	payments := &mockPaymentService{
		createResult: &service.CreatePaymentResult{
			Success: false,
			Status:  "failed",
			Message: "Учётные данные не настроены",
		},
	}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "user-1"})

	w := perform(engine, http.MethodPost, "/api/v1/payments/create-payment", nil, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCreatePaymentHandler_WrongStage(t *testing.T) {
	payments := &mockPaymentService{createErr: domain.ErrWrongStage}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "user-1"})

	w := perform(engine, http.MethodPost, "/api/v1/payments/create-payment", nil, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreatePaymentHandler_Unauthenticated(t *testing.T) {
	engine := newTestRouter(&mockPaymentService{}, &mockWebhookService{}, nil)

	w := perform(engine, http.MethodPost, "/api/v1/payments/create-payment", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// === GetStatus ===

func TestGetStatusHandler(t *testing.T) {
	payments := &mockPaymentService{
		statusInfo: &service.StatusInfo{
			Transaction: &domain.Transaction{
				ID:          "tx-1",
				UserID:      "user-1",
				AmountCents: 150000,
				Status:      domain.StatusPaid,
				Gateway:     "pagseguro",
				Environment: "sandbox",
			},
			UserStatus: "confirmed",
		},
	}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "user-1", Role: jwt.RoleAdmin})

	w := perform(engine, http.MethodGet, "/api/v1/payments/status/tx-1", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, payments.gotElevated, "роль admin даёт elevated доступ")

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status, "наружу уходит словарь пользователя, не внутренний enum")
	assert.Equal(t, int64(150000), resp.AmountCents)
}

func TestGetStatusHandler_AccessDenied(t *testing.T) {
	payments := &mockPaymentService{statusErr: domain.ErrAccessDenied}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "intruder"})

	w := perform(engine, http.MethodGet, "/api/v1/payments/status/tx-1", nil, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// === SimulatePayment ===

func TestSimulatePaymentHandler(t *testing.T) {
	payments := &mockPaymentService{
		simulateInfo: &service.StatusInfo{
			Transaction: &domain.Transaction{ID: "tx-1", Status: domain.StatusPaid},
			UserStatus:  "confirmed",
		},
	}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "user-1"})

	w := perform(engine, http.MethodPost, "/api/v1/payments/simulate-payment/tx-1", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", payments.gotRequesterID)
}

func TestSimulatePaymentHandler_Production(t *testing.T) {
	payments := &mockPaymentService{simulateErr: domain.ErrNotSandbox}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "user-1"})

	w := perform(engine, http.MethodPost, "/api/v1/payments/simulate-payment/tx-1", nil, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// === Refund ===

func TestRefundHandler_AdminOnly(t *testing.T) {
	payments := &mockPaymentService{refundResult: &gateway.RefundResult{Success: true}}

	t.Run("франчайзи получает 403", func(t *testing.T) {
		engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "user-1", Role: jwt.RoleFranchisee})
		w := perform(engine, http.MethodPost, "/api/v1/payments/refund/tx-1", nil, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("админ выполняет возврат", func(t *testing.T) {
		engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "admin-1", Role: jwt.RoleAdmin})
		body := []byte(`{"amount_cents": 50000}`)
		w := perform(engine, http.MethodPost, "/api/v1/payments/refund/tx-1", body, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(50000), payments.gotAmountCents)
	})

	t.Run("пустое тело — полный возврат", func(t *testing.T) {
		engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "admin-1", Role: jwt.RoleAdmin})
		w := perform(engine, http.MethodPost, "/api/v1/payments/refund/tx-1", nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(0), payments.gotAmountCents)
	})
}

func TestRefundHandler_NotPaid(t *testing.T) {
	payments := &mockPaymentService{refundErr: domain.ErrNotRefundable}
	engine := newTestRouter(payments, &mockWebhookService{}, &jwt.Claims{UserID: "admin-1", Role: jwt.RoleAdmin})

	w := perform(engine, http.MethodPost, "/api/v1/payments/refund/tx-1", nil, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// === Webhook ===

func TestWebhookHandler_NoAuthRequired(t *testing.T) {
	webhooks := &mockWebhookService{result: &service.WebhookResult{Outcome: "processed"}}
	engine := newTestRouter(&mockPaymentService{}, webhooks, nil)

	body := []byte(`reference=tx-1&status=3`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(body))
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "вебхук не требует JWT")
	assert.Equal(t, body, webhooks.gotBody)

	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processed", resp.Outcome)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	webhooks := &mockWebhookService{secret: "top-secret"}
	engine := newTestRouter(&mockPaymentService{}, webhooks, nil)

	w := perform(engine, http.MethodPost, "/api/v1/payments/webhook",
		[]byte(`reference=tx-1&status=3`), map[string]string{HeaderWebhookSignature: "deadbeef"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, webhooks.gotBody, "payload не обрабатывается при неверной подписи")
}

func TestWebhookHandler_ValidSignature(t *testing.T) {
	webhooks := &mockWebhookService{secret: "top-secret", result: &service.WebhookResult{Outcome: "processed"}}
	engine := newTestRouter(&mockPaymentService{}, webhooks, nil)

	body := []byte(`reference=tx-1&status=3`)
	mac := hmac.New(sha256.New, []byte("top-secret"))
	mac.Write(body)

	w := perform(engine, http.MethodPost, "/api/v1/payments/webhook", body,
		map[string]string{HeaderWebhookSignature: hex.EncodeToString(mac.Sum(nil))})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandler_ProcessError(t *testing.T) {
	webhooks := &mockWebhookService{processErr: errors.New("соединение с БД потеряно")}
	engine := newTestRouter(&mockPaymentService{}, webhooks, nil)

	w := perform(engine, http.MethodPost, "/api/v1/payments/webhook", []byte(`reference=tx-1`), nil)

	// Не-2xx заставит провайдера повторить доставку
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// === Health endpoints ===

func TestHealthEndpoints(t *testing.T) {
	engine := newTestRouter(&mockPaymentService{}, &mockWebhookService{}, nil)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestReadyzWithFailingCheck(t *testing.T) {
	r := NewRouter(RouterConfig{
		Payments: &mockPaymentService{},
		Webhooks: &mockWebhookService{},
		ReadinessCheck: func(ctx context.Context) error {
			return errors.New("БД недоступна")
		},
	})

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
