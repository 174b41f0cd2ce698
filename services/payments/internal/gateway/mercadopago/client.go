// Package mercadopago реализует адаптер платёжного шлюза Mercado Pago
// (JSON/REST API: checkout preferences + payment resources).
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/pkg/metrics"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway"
)

const defaultBaseURL = "https://api.mercadopago.com"

// providerName — метка для логов и метрик.
const providerName = "mercadopago"

// Config — зависимости адаптера.
type Config struct {
	Credentials     domain.MercadoPagoCredentials
	FrontendBaseURL string // Публичный адрес фронтенда для back_urls
	WebhookBaseURL  string // Публичный адрес для notification_url
	HTTPClient      *http.Client
	BaseURL         string // Переопределяется в тестах
}

// Client — адаптер Mercado Pago.
type Client struct {
	creds           domain.MercadoPagoCredentials
	httpClient      *http.Client
	baseURL         string
	frontendBaseURL string
	webhookBaseURL  string
}

// New создаёт адаптер. Клиент конструируется на каждый запрос настроек
// (никакого процессного кэша — учётные данные могут смениться через админку).
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = gateway.NewHTTPClient(15*time.Second, nil)
	}
	return &Client{
		creds:           cfg.Credentials,
		httpClient:      httpClient,
		baseURL:         baseURL,
		frontendBaseURL: cfg.FrontendBaseURL,
		webhookBaseURL:  cfg.WebhookBaseURL,
	}
}

// Name возвращает идентификатор шлюза.
func (c *Client) Name() domain.GatewayName {
	return domain.GatewayMercadoPago
}

// =============================================================================
// Wire-типы Mercado Pago
// =============================================================================

type preferenceItem struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	CurrencyID  string  `json:"currency_id"`
	UnitPrice   float64 `json:"unit_price"`
}

type preferencePayer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type preferenceBackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type preferenceRequest struct {
	Items             []preferenceItem    `json:"items"`
	ExternalReference string              `json:"external_reference"`
	Payer             *preferencePayer    `json:"payer,omitempty"`
	BackURLs          *preferenceBackURLs `json:"back_urls,omitempty"`
	AutoReturn        string              `json:"auto_return,omitempty"`
	NotificationURL   string              `json:"notification_url,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type paymentResponse struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
}

type searchResponse struct {
	Results []paymentResponse `json:"results"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// =============================================================================
// Операции
// =============================================================================

// CreateCheckout создаёт checkout preference.
// POST /checkout/preferences.
func (c *Client) CreateCheckout(ctx context.Context, transactionID string, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transaction_id обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedCheckout("учётные данные Mercado Pago не настроены"), nil
	}

	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:       req.Title,
			Description: req.Description,
			Quantity:    1,
			CurrencyID:  "BRL",
			UnitPrice:   float64(req.AmountCents) / 100,
		}},
		ExternalReference: transactionID,
	}
	if req.PayerEmail != "" || req.PayerName != "" {
		body.Payer = &preferencePayer{Email: req.PayerEmail, Name: req.PayerName}
	}

	// localhost-адреса подавляются целиком: провайдер не достучится
	if !gateway.IsLocalBaseURL(c.frontendBaseURL) {
		body.BackURLs = &preferenceBackURLs{
			Success: c.frontendBaseURL + "/pagamento/sucesso",
			Failure: c.frontendBaseURL + "/pagamento/erro",
			Pending: c.frontendBaseURL + "/pagamento/pendente",
		}
		body.AutoReturn = "approved"
	}
	if !gateway.IsLocalBaseURL(c.webhookBaseURL) {
		body.NotificationURL = c.webhookBaseURL + "/api/v1/payments/webhook"
	}

	var resp preferenceResponse
	if failMsg := c.doJSON(ctx, http.MethodPost, "/checkout/preferences", "create_checkout", body, &resp); failMsg != "" {
		return gateway.FailedCheckout(failMsg), nil
	}

	checkoutURL := resp.InitPoint
	if checkoutURL == "" {
		checkoutURL = resp.SandboxInitPoint
	}
	if checkoutURL == "" {
		return gateway.FailedCheckout("Mercado Pago не вернул init_point"), nil
	}

	return &gateway.CheckoutResult{
		Success:      true,
		Status:       domain.StatusPending,
		CheckoutURL:  checkoutURL,
		PreferenceID: resp.ID,
	}, nil
}

// CheckStatus запрашивает платёж по id.
// GET /v1/payments/{id}.
func (c *Client) CheckStatus(ctx context.Context, gatewayTransactionID string) (*gateway.StatusResult, error) {
	if gatewayTransactionID == "" {
		return nil, fmt.Errorf("gateway_transaction_id обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedStatus("учётные данные Mercado Pago не настроены"), nil
	}

	var resp paymentResponse
	path := "/v1/payments/" + url.PathEscape(gatewayTransactionID)
	if failMsg := c.doJSON(ctx, http.MethodGet, path, "check_status", nil, &resp); failMsg != "" {
		return gateway.FailedStatus(failMsg), nil
	}

	return &gateway.StatusResult{
		Success:              true,
		Status:               MapStatus(resp.Status),
		RawStatus:            resp.Status,
		GatewayTransactionID: strconv.FormatInt(resp.ID, 10),
	}, nil
}

// SearchByReference ищет платежи по external reference.
// GET /v1/payments/search?external_reference=.
func (c *Client) SearchByReference(ctx context.Context, reference string) (*gateway.SearchResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedSearch("учётные данные Mercado Pago не настроены"), nil
	}

	var resp searchResponse
	path := "/v1/payments/search?external_reference=" + url.QueryEscape(reference)
	if failMsg := c.doJSON(ctx, http.MethodGet, path, "search", nil, &resp); failMsg != "" {
		return gateway.FailedSearch(failMsg), nil
	}

	payments := make([]gateway.PaymentInfo, 0, len(resp.Results))
	for _, p := range resp.Results {
		payments = append(payments, gateway.PaymentInfo{
			ID:          strconv.FormatInt(p.ID, 10),
			RawStatus:   p.Status,
			Status:      MapStatus(p.Status),
			AmountCents: int64(p.TransactionAmount*100 + 0.5),
		})
	}
	return &gateway.SearchResult{Success: true, Payments: payments}, nil
}

// Refund выполняет возврат платежа. Полный при amountCents == 0.
// POST /v1/payments/{id}/refunds.
func (c *Client) Refund(ctx context.Context, gatewayTransactionID string, amountCents int64) (*gateway.RefundResult, error) {
	if gatewayTransactionID == "" {
		return nil, fmt.Errorf("gateway_transaction_id обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedRefund("учётные данные Mercado Pago не настроены"), nil
	}

	var body any
	if amountCents > 0 {
		body = map[string]float64{"amount": float64(amountCents) / 100}
	}

	path := "/v1/payments/" + url.PathEscape(gatewayTransactionID) + "/refunds"
	var resp map[string]any
	if failMsg := c.doJSON(ctx, http.MethodPost, path, "refund", body, &resp); failMsg != "" {
		return gateway.FailedRefund(failMsg), nil
	}
	return &gateway.RefundResult{Success: true, Message: "возврат принят провайдером"}, nil
}

// =============================================================================
// Транспорт
// =============================================================================

// doJSON выполняет запрос к API. Непустая строка результата — готовое
// сообщение об ошибке для структурированного отказа: транспортные сбои
// и не-2xx ответы провайдера не поднимаются как error.
func (c *Client) doJSON(ctx context.Context, method, path, operation string, reqBody, respBody any) string {
	start := time.Now()
	defer func() {
		metrics.RecordProviderRequest(providerName, operation, time.Since(start))
	}()

	log := logger.FromContext(ctx).With().
		Str("provider", providerName).
		Str("operation", operation).
		Logger()

	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Sprintf("сериализация запроса: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Sprintf("построение запроса: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Транспортная ошибка Mercado Pago")
		return fmt.Sprintf("ошибка связи с Mercado Pago: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Error().Err(err).Msg("Ошибка чтения ответа Mercado Pago")
		return fmt.Sprintf("чтение ответа Mercado Pago: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(data, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Warn().Int("status_code", resp.StatusCode).Str("message", msg).Msg("Mercado Pago вернул ошибку")
		return fmt.Sprintf("Mercado Pago: %s (HTTP %d)", msg, resp.StatusCode)
	}

	if respBody != nil {
		if err := json.Unmarshal(data, respBody); err != nil {
			log.Error().Err(err).Msg("Некорректный JSON от Mercado Pago")
			return fmt.Sprintf("некорректный ответ Mercado Pago: %v", err)
		}
	}
	return ""
}
