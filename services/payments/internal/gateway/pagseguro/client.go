// Package pagseguro реализует адаптер платёжного шлюза PagSeguro
// (legacy API: form-encoded запросы, XML ответы).
package pagseguro

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/pkg/metrics"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway"
)

const (
	sandboxAPIBaseURL    = "https://ws.sandbox.pagseguro.uol.com.br"
	productionAPIBaseURL = "https://ws.pagseguro.uol.com.br"

	sandboxPaymentBaseURL    = "https://sandbox.pagseguro.uol.com.br"
	productionPaymentBaseURL = "https://pagseguro.uol.com.br"
)

// providerName — метка для логов и метрик.
const providerName = "pagseguro"

// Config — зависимости адаптера.
type Config struct {
	Credentials     domain.PagSeguroCredentials
	Environment     domain.Environment
	FrontendBaseURL string // Публичный адрес фронтенда для redirectURL
	WebhookBaseURL  string // Публичный адрес для notificationURL
	HTTPClient      *http.Client
	BaseURL         string // API endpoint, переопределяется в тестах
	PaymentBaseURL  string // Хост страницы оплаты, переопределяется в тестах
}

// Client — адаптер PagSeguro.
type Client struct {
	creds           domain.PagSeguroCredentials
	httpClient      *http.Client
	baseURL         string
	paymentBaseURL  string
	frontendBaseURL string
	webhookBaseURL  string
}

// New создаёт адаптер. Хосты выбираются по окружению, если не
// переопределены явно.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	paymentBaseURL := cfg.PaymentBaseURL
	if baseURL == "" {
		if cfg.Environment == domain.EnvironmentProduction {
			baseURL = productionAPIBaseURL
		} else {
			baseURL = sandboxAPIBaseURL
		}
	}
	if paymentBaseURL == "" {
		if cfg.Environment == domain.EnvironmentProduction {
			paymentBaseURL = productionPaymentBaseURL
		} else {
			paymentBaseURL = sandboxPaymentBaseURL
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = gateway.NewHTTPClient(15*time.Second, nil)
	}
	return &Client{
		creds:           cfg.Credentials,
		httpClient:      httpClient,
		baseURL:         baseURL,
		paymentBaseURL:  paymentBaseURL,
		frontendBaseURL: cfg.FrontendBaseURL,
		webhookBaseURL:  cfg.WebhookBaseURL,
	}
}

// Name возвращает идентификатор шлюза.
func (c *Client) Name() domain.GatewayName {
	return domain.GatewayPagSeguro
}

// =============================================================================
// Wire-типы PagSeguro (XML)
// =============================================================================

type checkoutResponse struct {
	XMLName xml.Name `xml:"checkout"`
	Code    string   `xml:"code"`
	Date    string   `xml:"date"`
}

type transactionResponse struct {
	XMLName     xml.Name `xml:"transaction"`
	Code        string   `xml:"code"`
	Reference   string   `xml:"reference"`
	Status      string   `xml:"status"`
	GrossAmount string   `xml:"grossAmount"`
}

type searchResponse struct {
	XMLName      xml.Name `xml:"transactionSearchResult"`
	Transactions struct {
		Transaction []transactionResponse `xml:"transaction"`
	} `xml:"transactions"`
}

type errorsResponse struct {
	XMLName xml.Name `xml:"errors"`
	Errors  []struct {
		Code    string `xml:"code"`
		Message string `xml:"message"`
	} `xml:"error"`
}

// =============================================================================
// Операции
// =============================================================================

// CreateCheckout создаёт checkout-сессию.
// POST /v2/checkout (form), в ответе XML с кодом сессии; страница
// оплаты строится как {payment_host}/v2/checkout/payment.html?code=.
func (c *Client) CreateCheckout(ctx context.Context, transactionID string, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transaction_id обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedCheckout("учётные данные PagSeguro не настроены"), nil
	}

	form := url.Values{}
	form.Set("email", c.creds.Email)
	form.Set("token", c.creds.Token)
	form.Set("currency", "BRL")
	form.Set("reference", transactionID)
	form.Set("itemId1", "1")
	form.Set("itemDescription1", req.Title)
	form.Set("itemAmount1", formatAmount(req.AmountCents))
	form.Set("itemQuantity1", "1")
	if req.PayerEmail != "" {
		form.Set("senderEmail", req.PayerEmail)
	}
	if req.PayerName != "" {
		form.Set("senderName", req.PayerName)
	}

	// localhost-адреса подавляются целиком: провайдер не достучится
	if !gateway.IsLocalBaseURL(c.frontendBaseURL) {
		form.Set("redirectURL", c.frontendBaseURL+"/pagamento/retorno")
	}
	if !gateway.IsLocalBaseURL(c.webhookBaseURL) {
		form.Set("notificationURL", c.webhookBaseURL+"/api/v1/payments/webhook")
	}

	var resp checkoutResponse
	if failMsg := c.doForm(ctx, http.MethodPost, "/v2/checkout", "create_checkout", form, &resp); failMsg != "" {
		return gateway.FailedCheckout(failMsg), nil
	}
	if resp.Code == "" {
		return gateway.FailedCheckout("PagSeguro не вернул код checkout"), nil
	}

	return &gateway.CheckoutResult{
		Success:      true,
		Status:       domain.StatusPending,
		CheckoutURL:  c.paymentBaseURL + "/v2/checkout/payment.html?code=" + resp.Code,
		PreferenceID: resp.Code,
	}, nil
}

// CheckStatus запрашивает транзакцию по коду.
// GET /v3/transactions/{code}.
func (c *Client) CheckStatus(ctx context.Context, gatewayTransactionID string) (*gateway.StatusResult, error) {
	if gatewayTransactionID == "" {
		return nil, fmt.Errorf("gateway_transaction_id обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedStatus("учётные данные PagSeguro не настроены"), nil
	}

	path := "/v3/transactions/" + url.PathEscape(gatewayTransactionID) +
		"?email=" + url.QueryEscape(c.creds.Email) + "&token=" + url.QueryEscape(c.creds.Token)

	var resp transactionResponse
	if failMsg := c.doForm(ctx, http.MethodGet, path, "check_status", nil, &resp); failMsg != "" {
		return gateway.FailedStatus(failMsg), nil
	}

	return &gateway.StatusResult{
		Success:              true,
		Status:               MapStatus(resp.Status),
		RawStatus:            resp.Status,
		GatewayTransactionID: resp.Code,
	}, nil
}

// SearchByReference ищет транзакции по reference.
// GET /v2/transactions?reference=.
func (c *Client) SearchByReference(ctx context.Context, reference string) (*gateway.SearchResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedSearch("учётные данные PagSeguro не настроены"), nil
	}

	path := "/v2/transactions?reference=" + url.QueryEscape(reference) +
		"&email=" + url.QueryEscape(c.creds.Email) + "&token=" + url.QueryEscape(c.creds.Token)

	var resp searchResponse
	if failMsg := c.doForm(ctx, http.MethodGet, path, "search", nil, &resp); failMsg != "" {
		return gateway.FailedSearch(failMsg), nil
	}

	payments := make([]gateway.PaymentInfo, 0, len(resp.Transactions.Transaction))
	for _, tx := range resp.Transactions.Transaction {
		payments = append(payments, gateway.PaymentInfo{
			ID:          tx.Code,
			RawStatus:   tx.Status,
			Status:      MapStatus(tx.Status),
			AmountCents: parseAmount(tx.GrossAmount),
		})
	}
	return &gateway.SearchResult{Success: true, Payments: payments}, nil
}

// Refund выполняет возврат. Полный при amountCents == 0.
// POST /v2/transactions/refunds (form).
func (c *Client) Refund(ctx context.Context, gatewayTransactionID string, amountCents int64) (*gateway.RefundResult, error) {
	if gatewayTransactionID == "" {
		return nil, fmt.Errorf("gateway_transaction_id обязателен")
	}
	if !c.creds.Configured() {
		return gateway.FailedRefund("учётные данные PagSeguro не настроены"), nil
	}

	form := url.Values{}
	form.Set("email", c.creds.Email)
	form.Set("token", c.creds.Token)
	form.Set("transactionCode", gatewayTransactionID)
	if amountCents > 0 {
		form.Set("refundValue", formatAmount(amountCents))
	}

	if failMsg := c.doForm(ctx, http.MethodPost, "/v2/transactions/refunds", "refund", form, nil); failMsg != "" {
		return gateway.FailedRefund(failMsg), nil
	}
	return &gateway.RefundResult{Success: true, Message: "возврат принят провайдером"}, nil
}

// =============================================================================
// Транспорт
// =============================================================================

// doForm выполняет запрос к API (form-encoded запрос, XML ответ).
// Непустая строка результата — готовое сообщение для структурированного
// отказа.
func (c *Client) doForm(ctx context.Context, method, path, operation string, form url.Values, respBody any) string {
	start := time.Now()
	defer func() {
		metrics.RecordProviderRequest(providerName, operation, time.Since(start))
	}()

	log := logger.FromContext(ctx).With().
		Str("provider", providerName).
		Str("operation", operation).
		Logger()

	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Sprintf("построение запроса: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Транспортная ошибка PagSeguro")
		return fmt.Sprintf("ошибка связи с PagSeguro: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Error().Err(err).Msg("Ошибка чтения ответа PagSeguro")
		return fmt.Sprintf("чтение ответа PagSeguro: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parseErrorMessage(data)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Warn().Int("status_code", resp.StatusCode).Str("message", msg).Msg("PagSeguro вернул ошибку")
		return fmt.Sprintf("PagSeguro: %s (HTTP %d)", msg, resp.StatusCode)
	}

	if respBody != nil {
		if err := xml.Unmarshal(data, respBody); err != nil {
			log.Error().Err(err).Msg("Некорректный XML от PagSeguro")
			return fmt.Sprintf("некорректный ответ PagSeguro: %v", err)
		}
	}
	return ""
}

// parseErrorMessage извлекает первое сообщение из XML-конверта ошибок.
func parseErrorMessage(data []byte) string {
	var envelope errorsResponse
	if err := xml.Unmarshal(data, &envelope); err != nil || len(envelope.Errors) == 0 {
		return ""
	}
	first := envelope.Errors[0]
	if first.Code != "" {
		return fmt.Sprintf("%s: %s", first.Code, first.Message)
	}
	return first.Message
}

// formatAmount форматирует сентаво в строку вида "1500.00".
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// parseAmount разбирает строку вида "1500.00" в сентаво.
func parseAmount(raw string) int64 {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(value*100 + 0.5)
}
