// Package factory собирает конкретные адаптеры платёжных шлюзов.
// Единственное место, где перечислены оба провайдера.
package factory

import (
	"example.com/onboarding-platform/pkg/circuitbreaker"
	"example.com/onboarding-platform/pkg/config"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway"
	"example.com/onboarding-platform/services/payments/internal/gateway/mercadopago"
	"example.com/onboarding-platform/services/payments/internal/gateway/pagseguro"
)

// New возвращает фабрику адаптеров с circuit breaker на каждого
// провайдера: сбои одного не должны размыкать цепь другого. Сами
// HTTP клиенты конструируются на каждый вызов (учётные данные могут
// смениться через админку), breaker'ы переживают пересоздание.
func New(cfg config.PaymentConfig) gateway.AdapterFactory {
	mpBreaker := circuitbreaker.New("mercadopago")
	psBreaker := circuitbreaker.New("pagseguro")

	return func(settings *domain.PaymentSettings, name domain.GatewayName) (gateway.Gateway, error) {
		switch name {
		case domain.GatewayMercadoPago:
			return mercadopago.New(mercadopago.Config{
				Credentials:     settings.MercadoPago(),
				FrontendBaseURL: cfg.FrontendBaseURL,
				WebhookBaseURL:  cfg.WebhookBaseURL,
				HTTPClient:      gateway.NewHTTPClient(cfg.ProviderTimeout, mpBreaker),
			}), nil

		case domain.GatewayPagSeguro:
			return pagseguro.New(pagseguro.Config{
				Credentials:     settings.PagSeguro(),
				Environment:     settings.Environment,
				FrontendBaseURL: cfg.FrontendBaseURL,
				WebhookBaseURL:  cfg.WebhookBaseURL,
				HTTPClient:      gateway.NewHTTPClient(cfg.ProviderTimeout, psBreaker),
			}), nil

		default:
			return nil, domain.ErrUnknownGateway
		}
	}
}
