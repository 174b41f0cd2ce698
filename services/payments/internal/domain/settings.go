package domain

// GatewayName — идентификатор платёжного шлюза.
type GatewayName string

const (
	// GatewayMercadoPago — Mercado Pago (JSON/REST API).
	GatewayMercadoPago GatewayName = "mercadopago"

	// GatewayPagSeguro — PagSeguro (form-encoded/XML API).
	GatewayPagSeguro GatewayName = "pagseguro"
)

// IsValid проверяет, что шлюз известен системе.
func (g GatewayName) IsValid() bool {
	return g == GatewayMercadoPago || g == GatewayPagSeguro
}

// Environment — окружение провайдера.
type Environment string

const (
	// EnvironmentSandbox — тестовое окружение провайдера.
	EnvironmentSandbox Environment = "sandbox"

	// EnvironmentProduction — боевое окружение провайдера.
	EnvironmentProduction Environment = "production"
)

// IsValid проверяет, что окружение известно системе.
func (e Environment) IsValid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// MercadoPagoCredentials — учётные данные Mercado Pago для одного окружения.
type MercadoPagoCredentials struct {
	AccessToken string
	PublicKey   string
}

// Configured возвращает true, если учётные данные заполнены.
func (c MercadoPagoCredentials) Configured() bool {
	return c.AccessToken != ""
}

// PagSeguroCredentials — учётные данные PagSeguro для одного окружения.
type PagSeguroCredentials struct {
	Email string
	Token string
}

// Configured возвращает true, если учётные данные заполнены.
func (c PagSeguroCredentials) Configured() bool {
	return c.Email != "" && c.Token != ""
}

// PaymentSettings — синглтон-настройки платёжного ядра.
// В любой момент активны ровно один шлюз и одно окружение; учётные
// данные sandbox и production хранятся раздельно, чтобы тестовые ключи
// не попадали в боевые вызовы. Смена настроек не влияет на транзакции
// в полёте: шлюз транзакции фиксируется при её создании.
type PaymentSettings struct {
	ID          string
	Gateway     GatewayName
	Environment Environment

	MercadoPagoSandbox    MercadoPagoCredentials
	MercadoPagoProduction MercadoPagoCredentials
	PagSeguroSandbox      PagSeguroCredentials
	PagSeguroProduction   PagSeguroCredentials
}

// DefaultPaymentSettings возвращает настройки по умолчанию, создаваемые
// при первом обращении, если запись отсутствует: PagSeguro + sandbox.
func DefaultPaymentSettings() *PaymentSettings {
	return &PaymentSettings{
		Gateway:     GatewayPagSeguro,
		Environment: EnvironmentSandbox,
	}
}

// MercadoPago возвращает учётные данные Mercado Pago активного окружения.
func (s *PaymentSettings) MercadoPago() MercadoPagoCredentials {
	if s.Environment == EnvironmentProduction {
		return s.MercadoPagoProduction
	}
	return s.MercadoPagoSandbox
}

// PagSeguro возвращает учётные данные PagSeguro активного окружения.
func (s *PaymentSettings) PagSeguro() PagSeguroCredentials {
	if s.Environment == EnvironmentProduction {
		return s.PagSeguroProduction
	}
	return s.PagSeguroSandbox
}

// Validate проверяет корректность настроек.
func (s *PaymentSettings) Validate() error {
	if !s.Gateway.IsValid() {
		return ErrUnknownGateway
	}
	if !s.Environment.IsValid() {
		return ErrUnknownEnvironment
	}
	return nil
}
