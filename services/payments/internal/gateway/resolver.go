package gateway

import (
	"context"
	"errors"
	"fmt"

	"example.com/onboarding-platform/pkg/config"
	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/services/payments/internal/domain"
)

// SettingsStore — хранилище синглтона payment_settings.
type SettingsStore interface {
	Get(ctx context.Context) (*domain.PaymentSettings, error)
	Save(ctx context.Context, settings *domain.PaymentSettings) error
}

// AdapterFactory строит адаптер по настройкам. Вынесена в поле
// Resolver, чтобы тесты сервисного слоя подменяли сетевые клиенты.
type AdapterFactory func(settings *domain.PaymentSettings, name domain.GatewayName) (Gateway, error)

// Resolver — фасад платёжных шлюзов. Единственный компонент, знающий
// об обоих адаптерах: остальной код зависит только от интерфейса
// Gateway, что позволяет добавлять провайдеров, не трогая вебхуки
// и state machine онбординга.
type Resolver struct {
	store   SettingsStore
	cfg     config.PaymentConfig
	factory AdapterFactory
}

// NewResolver создаёт фасад.
func NewResolver(store SettingsStore, cfg config.PaymentConfig, factory AdapterFactory) *Resolver {
	return &Resolver{
		store:   store,
		cfg:     cfg,
		factory: factory,
	}
}

// ActiveCredentials возвращает актуальные настройки платёжного ядра.
// Если запись отсутствует — создаёт запись по умолчанию: система
// никогда не работает с неопределённой конфигурацией. Пустые
// credential-бандлы дополняются из переменных окружения процесса.
func (r *Resolver) ActiveCredentials(ctx context.Context) (*domain.PaymentSettings, error) {
	settings, err := r.store.Get(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSettingsNotFound):
		settings = r.defaultSettings()
		if saveErr := r.store.Save(ctx, settings); saveErr != nil {
			return nil, fmt.Errorf("создание настроек по умолчанию: %w", saveErr)
		}
		logger.FromContext(ctx).Info().
			Str("gateway", string(settings.Gateway)).
			Str("environment", string(settings.Environment)).
			Msg("Создана запись payment_settings по умолчанию")
	default:
		return nil, fmt.Errorf("чтение payment_settings: %w", err)
	}

	r.fillFromProcessConfig(settings)
	return settings, nil
}

// Service возвращает адаптер активного шлюза.
func (r *Resolver) Service(ctx context.Context) (Gateway, error) {
	settings, err := r.ActiveCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return r.adapter(settings, settings.Gateway)
}

// ServiceFor возвращает адаптер указанного шлюза. Используется на пути
// вебхуков и проверок статуса: шлюз транзакции фиксируется при её
// создании, и смена активного шлюза не должна ломать поиск статуса
// старых транзакций.
func (r *Resolver) ServiceFor(ctx context.Context, name domain.GatewayName) (Gateway, error) {
	if !name.IsValid() {
		return nil, domain.ErrUnknownGateway
	}
	settings, err := r.ActiveCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return r.adapter(settings, name)
}

func (r *Resolver) adapter(settings *domain.PaymentSettings, name domain.GatewayName) (Gateway, error) {
	if r.factory == nil {
		return nil, fmt.Errorf("фабрика адаптеров не задана")
	}
	return r.factory(settings, name)
}

// defaultSettings строит настройки по умолчанию из конфигурации процесса.
func (r *Resolver) defaultSettings() *domain.PaymentSettings {
	settings := domain.DefaultPaymentSettings()
	if g := domain.GatewayName(r.cfg.DefaultGateway); g.IsValid() {
		settings.Gateway = g
	}
	if e := domain.Environment(r.cfg.DefaultEnvironment); e.IsValid() {
		settings.Environment = e
	}
	return settings
}

// fillFromProcessConfig дополняет пустые credential-бандлы значениями
// из переменных окружения. Заполненные через админку бандлы имеют
// приоритет; слияние происходит при чтении и не персистится.
func (r *Resolver) fillFromProcessConfig(settings *domain.PaymentSettings) {
	if !settings.MercadoPagoSandbox.Configured() {
		settings.MercadoPagoSandbox = domain.MercadoPagoCredentials{
			AccessToken: r.cfg.MercadoPago.SandboxAccessToken,
			PublicKey:   r.cfg.MercadoPago.SandboxPublicKey,
		}
	}
	if !settings.MercadoPagoProduction.Configured() {
		settings.MercadoPagoProduction = domain.MercadoPagoCredentials{
			AccessToken: r.cfg.MercadoPago.ProductionAccessToken,
			PublicKey:   r.cfg.MercadoPago.ProductionPublicKey,
		}
	}
	if !settings.PagSeguroSandbox.Configured() {
		settings.PagSeguroSandbox = domain.PagSeguroCredentials{
			Email: r.cfg.PagSeguro.SandboxEmail,
			Token: r.cfg.PagSeguro.SandboxToken,
		}
	}
	if !settings.PagSeguroProduction.Configured() {
		settings.PagSeguroProduction = domain.PagSeguroCredentials{
			Email: r.cfg.PagSeguro.ProductionEmail,
			Token: r.cfg.PagSeguro.ProductionToken,
		}
	}
}
