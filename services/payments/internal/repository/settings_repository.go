package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/onboarding-platform/services/payments/internal/domain"
)

// SettingsRepository — хранилище синглтона payment_settings.
type SettingsRepository interface {
	// Get возвращает настройки; domain.ErrSettingsNotFound, если записи нет.
	Get(ctx context.Context) (*domain.PaymentSettings, error)

	// Save создаёт или обновляет единственную запись настроек.
	Save(ctx context.Context, settings *domain.PaymentSettings) error
}

// =============================================================================
// GORM модель
// =============================================================================

// SettingsModel — GORM модель таблицы payment_settings (одна строка).
type SettingsModel struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Gateway     string    `gorm:"column:gateway;type:varchar(20);not null"`
	Environment string    `gorm:"column:environment;type:varchar(20);not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	MPSandboxAccessToken    string `gorm:"column:mp_sandbox_access_token;type:varchar(255)"`
	MPSandboxPublicKey      string `gorm:"column:mp_sandbox_public_key;type:varchar(255)"`
	MPProductionAccessToken string `gorm:"column:mp_production_access_token;type:varchar(255)"`
	MPProductionPublicKey   string `gorm:"column:mp_production_public_key;type:varchar(255)"`

	PSSandboxEmail    string `gorm:"column:ps_sandbox_email;type:varchar(255)"`
	PSSandboxToken    string `gorm:"column:ps_sandbox_token;type:varchar(255)"`
	PSProductionEmail string `gorm:"column:ps_production_email;type:varchar(255)"`
	PSProductionToken string `gorm:"column:ps_production_token;type:varchar(255)"`
}

// TableName возвращает имя таблицы в БД.
func (SettingsModel) TableName() string {
	return "payment_settings"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *SettingsModel) toDomain() *domain.PaymentSettings {
	return &domain.PaymentSettings{
		ID:          m.ID,
		Gateway:     domain.GatewayName(m.Gateway),
		Environment: domain.Environment(m.Environment),
		MercadoPagoSandbox: domain.MercadoPagoCredentials{
			AccessToken: m.MPSandboxAccessToken,
			PublicKey:   m.MPSandboxPublicKey,
		},
		MercadoPagoProduction: domain.MercadoPagoCredentials{
			AccessToken: m.MPProductionAccessToken,
			PublicKey:   m.MPProductionPublicKey,
		},
		PagSeguroSandbox: domain.PagSeguroCredentials{
			Email: m.PSSandboxEmail,
			Token: m.PSSandboxToken,
		},
		PagSeguroProduction: domain.PagSeguroCredentials{
			Email: m.PSProductionEmail,
			Token: m.PSProductionToken,
		},
	}
}

// settingsModelFromDomain конвертирует доменную сущность в GORM модель.
func settingsModelFromDomain(s *domain.PaymentSettings) *SettingsModel {
	return &SettingsModel{
		ID:                      s.ID,
		Gateway:                 string(s.Gateway),
		Environment:             string(s.Environment),
		MPSandboxAccessToken:    s.MercadoPagoSandbox.AccessToken,
		MPSandboxPublicKey:      s.MercadoPagoSandbox.PublicKey,
		MPProductionAccessToken: s.MercadoPagoProduction.AccessToken,
		MPProductionPublicKey:   s.MercadoPagoProduction.PublicKey,
		PSSandboxEmail:          s.PagSeguroSandbox.Email,
		PSSandboxToken:          s.PagSeguroSandbox.Token,
		PSProductionEmail:       s.PagSeguroProduction.Email,
		PSProductionToken:       s.PagSeguroProduction.Token,
	}
}

// =============================================================================
// Реализация репозитория
// =============================================================================

// settingsRepository — GORM реализация SettingsRepository.
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository создаёт репозиторий настроек.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get возвращает единственную запись настроек.
func (r *settingsRepository) Get(ctx context.Context) (*domain.PaymentSettings, error) {
	var model SettingsModel

	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// Save создаёт или обновляет запись. Upsert по первичному ключу:
// запись одна, конкурентное создание разруливает primary key.
func (r *settingsRepository) Save(ctx context.Context, settings *domain.PaymentSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}

	model := settingsModelFromDomain(settings)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	return nil
}
